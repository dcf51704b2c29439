package handlers

import (
	"github.com/Demideni/beavbet1-sub000/middleware"
	"github.com/Demideni/beavbet1-sub000/services"
	"github.com/gofiber/fiber/v2"
)

func SetupProfileRoutes(app *fiber.App, ratings *services.RatingService) {
	app.Get("/leaderboard", ratings.GetLeaderboard)
	app.Get("/profiles/:user_id", ratings.GetProfile)

	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Get("/profile", ratings.GetProfile)
}
