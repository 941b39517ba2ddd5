package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/portfolio-service/internal/api/http/handlers"
	"github.com/spec-kit/portfolio-service/internal/auth"
	"github.com/spec-kit/portfolio-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Assignments    *handlers.AssignmentHandler
	Ownership      *handlers.OwnershipHandler
	Batches        *handlers.BatchHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())

	api.Post("/assignments/bulk", auth.RequireCapability(auth.CanAssign), cfg.Assignments.BulkAssign)
	api.Post("/classifications", auth.RequireCapability(auth.CanClassify), cfg.Assignments.Classify)

	api.Get("/entities/:id/owner", cfg.Ownership.Owner)
	api.Get("/entities/:id/assignments", cfg.Ownership.History)
	api.Get("/portfolio", cfg.Ownership.MyPortfolio)
	api.Get("/users/:id/portfolio", cfg.Ownership.UserPortfolio)
	api.Get("/scope", cfg.Ownership.Scope)

	batches := api.Group("/batches", auth.RequireCapability(auth.CanReadAudit))
	batches.Get("/", cfg.Batches.List)
	batches.Get("/:id", cfg.Batches.Detail)
}
