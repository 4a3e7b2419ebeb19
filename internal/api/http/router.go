package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-console/internal/api/http/handlers"
	"github.com/spec-kit/support-console/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health  *handlers.HealthHandler
	Tickets *handlers.TicketsHandler
	Session *auth.SessionMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	tickets := app.Group("/tickets", cfg.Session.Handle)
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/timeline", cfg.Tickets.GetTimeline)
	tickets.Get("/:id/thread", cfg.Tickets.GetThread)
	tickets.Post("/:id/messages", cfg.Tickets.PostMessage)

	admin := tickets.Group("", auth.RequireAdmin())
	admin.Post("/:id/accept", cfg.Tickets.AcceptTicket)
	admin.Post("/:id/reject", cfg.Tickets.RejectTicket)
	admin.Post("/:id/resolve", cfg.Tickets.ResolveTicket)
	admin.Post("/:id/reopen", cfg.Tickets.ReopenTicket)
}
