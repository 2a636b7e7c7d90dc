package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/tracklane/ticket-tracker/internal/domain"
	"github.com/tracklane/ticket-tracker/internal/observability"
	apperrors "github.com/tracklane/ticket-tracker/pkg/util/errorutil"
)

const actorKey = "auth_actor"

// SessionMiddleware resolves the request's session once and publishes the actor.
type SessionMiddleware struct {
	store      *SessionStore
	cookieName string
}

// NewSessionMiddleware constructs middleware.
func NewSessionMiddleware(store *SessionStore, cookieName string) *SessionMiddleware {
	return &SessionMiddleware{store: store, cookieName: cookieName}
}

// Handle attaches the actor, if any, to the request. Requests without a valid
// session continue anonymously; route guards decide what they may reach.
func (m *SessionMiddleware) Handle(c *fiber.Ctx) error {
	actor, err := m.store.Resolve(c.UserContext(), m.Token(c))
	if err != nil {
		return apperrors.NewUpstreamUnavailable(err)
	}
	if actor != nil {
		c.Locals(actorKey, actor)
		c.Locals(observability.ActorIDLocal, actor.UserID)
	}
	return c.Next()
}

// Token extracts the session token from the cookie, falling back to a bearer header.
func (m *SessionMiddleware) Token(c *fiber.Ctx) string {
	if token := c.Cookies(m.cookieName); token != "" {
		return token
	}
	parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}

// ActorFromContext returns the authenticated actor, or nil for anonymous requests.
func ActorFromContext(c *fiber.Ctx) *domain.Actor {
	actor, _ := c.Locals(actorKey).(*domain.Actor)
	return actor
}
