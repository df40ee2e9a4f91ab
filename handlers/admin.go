package handlers

import (
	"duel-arena/middleware"
	"duel-arena/services"

	"github.com/gofiber/fiber/v2"
)

func SetupAdminRoutes(app *fiber.App, adminService *services.AdminService) {
	// 🔐 Admin only
	admin := app.Group("/admin", middleware.UserContextMiddleware(), middleware.RequireRole("admin"))

	admin.Put("/config", adminService.UpdateConfig)
	admin.Post("/pause", adminService.Pause)
	admin.Post("/unpause", adminService.Unpause)
	admin.Post("/fees/withdraw", adminService.WithdrawFees)
	admin.Get("/matches/:id/archive", adminService.GetMatchArchive)
}
