package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/evaluation-service/internal/api/http/handlers"
	"github.com/spec-kit/evaluation-service/internal/auth"
	"github.com/spec-kit/evaluation-service/internal/ratelimit"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health      *handlers.HealthHandler
	Evaluations *handlers.EvaluationsHandler
	APIKey      *auth.APIKeyMiddleware
	RateLimiter *ratelimit.Limiter
}

// RegisterRoutes wires HTTP routes. Create and list form the back-office
// surface behind the shared API secret; validate and update are public for
// survey respondents and rate limited per address.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	api := app.Group("/api")

	api.Post("/evaluations", cfg.APIKey.Handle, cfg.Evaluations.Create)
	api.Get("/evaluations", cfg.APIKey.Handle, cfg.Evaluations.List)

	limited := RateLimitMiddleware(cfg.RateLimiter)
	api.Get("/evaluations/:id/validate", limited, cfg.Evaluations.Validate)
	api.Put("/evaluations/:id", limited, cfg.Evaluations.Update)
}
