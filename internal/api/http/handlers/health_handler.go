package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

const readinessTimeout = 2 * time.Second

// Pinger is a dependency that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

type dependency struct {
	name     string
	pinger   Pinger
	required bool
}

// HealthHandler responds to liveness and readiness probes. Postgres holds the ledger and is
// required. Redis only backs the entity lock and the scope cache, which both degrade to
// local behavior, so its failure is reported without failing readiness.
type HealthHandler struct {
	serviceName  string
	version      string
	dependencies []dependency
}

// NewHealthHandler returns a new handler instance. A nil redis pinger reports "disabled".
func NewHealthHandler(serviceName, version string, postgres, redis Pinger) *HealthHandler {
	return &HealthHandler{
		serviceName: serviceName,
		version:     version,
		dependencies: []dependency{
			{name: "postgres", pinger: postgres, required: true},
			{name: "redis", pinger: redis},
		},
	}
}

// Live reports service liveness.
func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready reports readiness after pinging every dependency.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	statuses := fiber.Map{}
	ready := true
	for _, dep := range h.dependencies {
		status, ok := check(ctx, dep)
		statuses[dep.name] = status
		if !ok && dep.required {
			ready = false
		}
	}

	if !ready {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "DEPENDENCY_UNAVAILABLE",
				"message": "ledger store unavailable",
				"details": statuses,
			},
		})
	}
	return c.JSON(fiber.Map{
		"status":       "ready",
		"service":      h.serviceName,
		"dependencies": statuses,
	})
}

func check(ctx context.Context, dep dependency) (string, bool) {
	if dep.pinger == nil {
		if dep.required {
			return "missing", false
		}
		return "disabled", true
	}
	if err := dep.pinger.Ping(ctx); err != nil {
		if dep.required {
			return err.Error(), false
		}
		return "degraded: " + err.Error(), false
	}
	return "ok", true
}
