package handlers

import (
	"github.com/Demideni/beavbet1-sub000/middleware"
	"github.com/Demideni/beavbet1-sub000/services"
	"github.com/gofiber/fiber/v2"
)

func SetupWalletRoutes(app *fiber.App, wallet *services.WalletService) {
	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Get("/wallet", wallet.GetBalance)
	secured.Get("/wallet/transactions", wallet.GetTransactions)

	admin := secured.Group("/admin", middleware.RequireRole("admin"))
	admin.Post("/wallet/deposit", wallet.AdminDeposit)
}
