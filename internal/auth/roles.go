package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/tracklane/ticket-tracker/pkg/util/errorutil"
)

// RequireAuthenticated rejects anonymous callers.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if ActorFromContext(c) == nil {
			return apperrors.NewUnauthenticated("authentication required")
		}
		return c.Next()
	}
}

// RequireAnonymous rejects callers that already hold a session.
func RequireAnonymous() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if ActorFromContext(c) != nil {
			return apperrors.NewForbidden("already authenticated")
		}
		return c.Next()
	}
}
