package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/tracklane/ticket-tracker/internal/api/http/handlers"
	"github.com/tracklane/ticket-tracker/internal/auth"
	"github.com/tracklane/ticket-tracker/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health      *handlers.HealthHandler
	Auth        *handlers.AuthHandler
	Users       *handlers.UsersHandler
	Tickets     *handlers.TicketsHandler
	Assignments *handlers.AssignmentsHandler
	Comments    *handlers.CommentsHandler
	Sessions    *auth.SessionMiddleware
	Metrics     *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	api := app.Group("/api", cfg.Sessions.Handle)

	api.Post("/register", auth.RequireAnonymous(), cfg.Auth.Register)
	api.Post("/login", auth.RequireAnonymous(), cfg.Auth.Login)
	api.Post("/logout", cfg.Auth.Logout)

	authed := auth.RequireAuthenticated()
	api.Get("/session", authed, cfg.Auth.Session)

	api.Get("/users", authed, cfg.Users.List)
	api.Get("/users/:id", authed, cfg.Users.Get)

	api.Post("/tickets", authed, cfg.Tickets.CreateTicket)
	api.Get("/tickets", authed, cfg.Tickets.ListTickets)
	api.Get("/tickets/:id", authed, cfg.Tickets.GetTicket)
	api.Patch("/tickets/:id", authed, cfg.Tickets.UpdateTicket)
	api.Get("/tickets/:id/assignments", authed, cfg.Assignments.List)
	api.Post("/tickets/:id/assignments", authed, cfg.Assignments.Add)
	api.Delete("/tickets/:id/assignments/:userID", authed, cfg.Assignments.Remove)
	api.Get("/tickets/:id/comments", authed, cfg.Comments.List)
	api.Post("/tickets/:id/comments", authed, cfg.Comments.Create)

	api.Delete("/comments/:id", authed, cfg.Comments.Delete)
}
