package app

import (
	"context"
	"fmt"
	"strings"

	"freelance-match/internal/config"
	"freelance-match/internal/delivery/http/handler"
	"freelance-match/internal/delivery/http/middleware"
	"freelance-match/internal/delivery/http/routes"
	"freelance-match/internal/pkg/jwt"
	"freelance-match/internal/pkg/logger"

	"github.com/gofiber/fiber/v3"
)

type App struct {
	Fiber     *fiber.App
	Container *Container
}

// New builds the fiber app on a wired container.
func New(c *Container) *App {
	cfg := c.Config
	f := fiber.New(fiber.Config{AppName: cfg.App.Name})

	registerGlobalMiddleware(f, c)

	var protect fiber.Handler
	if cfg.Auth.JWT.Enabled {
		protect = middleware.NewAuthMiddleware(jwt.NewHMACService(cfg.Auth.JWT.AccessSecret)).Middleware()
	}

	health := handler.NewHealthHandler(c.DB, c.Redis, cfg.Database.Redis.Enabled)
	recommendation := handler.NewRecommendationHandler(c.Query)

	routes.NewRegistry(health, recommendation, c.Metrics.Handler(), protect).Register(f)

	return &App{Fiber: f, Container: c}
}

func Bootstrap(ctx context.Context, cfg config.Config, log logger.Logger) (*App, func() error, error) {
	c, err := NewContainer(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return New(c), c.Close, nil
}

func registerGlobalMiddleware(app *fiber.App, c *Container) {
	if app == nil {
		return
	}

	app.Use(middleware.NewAccessLogMiddleware(c.Log.WithFields(map[string]interface{}{"component": "http"})).Middleware())
	if c.Metrics != nil {
		app.Use(middleware.Metrics(c.Metrics))
	}
	app.Use(middleware.NewErrorMiddleware(c.Log).Middleware())
}

func ListenAddr(port string) (string, error) {
	p := strings.TrimSpace(port)
	if p == "" {
		return "", fmt.Errorf("empty HTTP port")
	}
	if strings.HasPrefix(p, ":") {
		return p, nil
	}
	return ":" + p, nil
}
