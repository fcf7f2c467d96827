package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"freelance-match/internal/app"
	"freelance-match/internal/config"
	"freelance-match/internal/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	lg := logger.NewZapAdapter(zl)
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bootstrap, cleanup, err := app.Bootstrap(ctx, cfg, lg)
	if err != nil {
		lg.Error("failed to bootstrap app", map[string]interface{}{"error": err})
		os.Exit(1)
	}
	defer func() {
		if err := cleanup(); err != nil {
			lg.Warn("cleanup error", map[string]interface{}{"error": err})
		}
	}()

	addr, err := app.ListenAddr(cfg.App.HTTPPort)
	if err != nil {
		lg.Error("invalid HTTP port", map[string]interface{}{"error": err})
		return
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- bootstrap.Fiber.Listen(addr)
	}()
	lg.Info("server started", map[string]interface{}{
		"addr":        addr,
		"environment": cfg.App.Environment,
	})

	select {
	case err := <-errCh:
		if err != nil {
			lg.Error("server error", map[string]interface{}{"error": err})
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := bootstrap.Fiber.ShutdownWithContext(shutdownCtx); err != nil {
			lg.Warn("shutdown error", map[string]interface{}{"error": err})
		}
		lg.Info("server stopped", nil)
	}
}
