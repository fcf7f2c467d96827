package routes

import (
	"net/http"

	"freelance-match/internal/delivery/http/handler"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
)

type Registry struct {
	health         *handler.HealthHandler
	recommendation *handler.RecommendationHandler
	metrics        http.Handler
	protect        fiber.Handler
}

// NewRegistry wires the route tree. protect guards the recalculation route
// and may be nil when auth is disabled; metrics may be nil to skip /metrics.
func NewRegistry(health *handler.HealthHandler, recommendation *handler.RecommendationHandler, metrics http.Handler, protect fiber.Handler) *Registry {
	return &Registry{health: health, recommendation: recommendation, metrics: metrics, protect: protect}
}

func (r *Registry) Register(app *fiber.App) {
	if app == nil {
		return
	}

	if r.health != nil {
		r.health.RegisterRoutes(app)
	}
	if r.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(r.metrics))
	}
	r.registerAPI(app)
}

func (r *Registry) registerAPI(app *fiber.App) {
	v1 := app.Group("/api").Group("/v1")
	if r.recommendation != nil {
		r.recommendation.RegisterRoutes(v1, r.protect)
	}
}
