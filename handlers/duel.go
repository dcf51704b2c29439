package handlers

import (
	"github.com/Demideni/beavbet1-sub000/middleware"
	"github.com/Demideni/beavbet1-sub000/services"
	"github.com/gofiber/fiber/v2"
)

func SetupDuelRoutes(app *fiber.App, duels *services.DuelService, resolver *services.ResolverService) {
	// Public reads — gateway auth only, no user context required.
	app.Get("/duels/:id", duels.Get)

	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Get("/duels", duels.List)
	secured.Post("/duels", duels.Create)
	secured.Post("/duels/:id/join", duels.Join)
	secured.Post("/duels/:id/ready", duels.MarkReady)
	secured.Post("/duels/:id/report", resolver.ReportDuelHTTP)

	admin := secured.Group("/admin", middleware.RequireRole("admin"))
	admin.Post("/duels/:id/finalize", resolver.AdminFinalizeDuel)
}
