package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/services"
)

const principalContextKey = "principal"

// Authenticator resolves a bearer token to the calling customer.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (services.Principal, error)
}

// Authenticate validates the bearer token and stores the caller's Principal
// in the request locals.
func Authenticate(auth Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "No token, authorization denied")
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "No token, authorization denied")
		}

		principal, err := auth.Authenticate(c.UserContext(), strings.TrimSpace(parts[1]))
		if err != nil {
			return err
		}

		c.Locals(principalContextKey, principal)
		return c.Next()
	}
}

// RequireAdmin rejects callers that are not admins. It must run after
// Authenticate.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := CurrentPrincipal(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "No token, authorization denied")
		}
		if err := principal.RequireAdmin(); err != nil {
			return err
		}
		return c.Next()
	}
}

// CurrentPrincipal extracts the authenticated caller from context.
func CurrentPrincipal(c *fiber.Ctx) (services.Principal, bool) {
	principal, ok := c.Locals(principalContextKey).(services.Principal)
	return principal, ok
}
