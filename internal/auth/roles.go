package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/portfolio-service/internal/domain"
)

// Capability selects one flag of domain.Capabilities.
type Capability func(domain.Capabilities) bool

var (
	CanAssign   Capability = domain.Capabilities.CanAssign
	CanClassify Capability = func(c domain.Capabilities) bool { return c.CanClassify }
	// CanReadAudit covers global assigners and team supervisors.
	CanReadAudit Capability = func(c domain.Capabilities) bool { return c.CanAssignGlobally || c.CanSuperviseTeam }
)

// RequireCapability ensures the caller's role grants every listed capability.
func RequireCapability(required ...Capability) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		caps := principal.Capabilities()
		for _, has := range required {
			if !has(caps) {
				return fiber.NewError(http.StatusForbidden, "insufficient role")
			}
		}
		return c.Next()
	}
}

// RequireAnyRole ensures caller is authenticated.
func RequireAnyRole() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		return c.Next()
	}
}
