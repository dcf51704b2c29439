package handlers

import (
	"github.com/Demideni/beavbet1-sub000/middleware"
	"github.com/Demideni/beavbet1-sub000/services"
	"github.com/gofiber/fiber/v2"
)

func SetupTournamentRoutes(app *fiber.App, tournaments *services.TournamentService, bracket *services.BracketService, resolver *services.ResolverService) {
	app.Get("/tournaments", tournaments.ListHTTP)
	app.Get("/tournaments/:id", tournaments.GetHTTP)

	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Post("/tournaments/:id/join", tournaments.JoinHTTP)
	secured.Post("/matches/:id/ready", bracket.MarkMatchReady)
	secured.Post("/matches/:id/report", resolver.ReportMatchHTTP)

	admin := secured.Group("/admin", middleware.RequireRole("admin"))
	admin.Post("/tournaments", tournaments.Create)
	admin.Post("/matches/:id/finalize", resolver.AdminFinalizeMatch)
}
