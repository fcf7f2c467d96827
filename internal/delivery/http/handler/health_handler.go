package handler

import (
	"context"
	"time"

	"freelance-match/internal/delivery/http/dto"
	"freelance-match/internal/pkg/response"

	"github.com/gofiber/fiber/v3"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports database and cache reachability. The cache is
// optional: an unreachable cache degrades the report but not the status.
type HealthHandler struct {
	db           Pinger
	cache        Pinger
	cacheEnabled bool
}

func NewHealthHandler(db Pinger, cache Pinger, cacheEnabled bool) *HealthHandler {
	return &HealthHandler{db: db, cache: cache, cacheEnabled: cacheEnabled}
}

func (h *HealthHandler) RegisterRoutes(r fiber.Router) {
	if r == nil {
		return
	}
	r.Get("/health", h.Health)
}

func (h *HealthHandler) Health(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	out := dto.HealthResponse{Database: "ok", Cache: "disabled"}
	status := fiber.StatusOK

	if h.db == nil || h.db.Ping(ctx) != nil {
		out.Database = "unavailable"
		status = fiber.StatusServiceUnavailable
	}
	if h.cacheEnabled {
		out.Cache = "ok"
		if h.cache == nil || h.cache.Ping(ctx) != nil {
			out.Cache = "unavailable"
		}
	}

	if status != fiber.StatusOK {
		return response.Error(c, status, response.MessageServiceUnavailable, out)
	}
	return response.Success(c, status, response.MessageOK, out)
}
