package handlers

import (
	"duel-arena/middleware"
	"duel-arena/services"

	"github.com/gofiber/fiber/v2"
)

func SetupPlayerRoutes(app *fiber.App, playerService *services.PlayerService) {
	// 🔓 Public
	app.Get("/pilots/search", playerService.SearchPilots)
	app.Get("/players/:id", playerService.GetPlayer)
	app.Get("/players/:id/matches", playerService.GetPlayerMatches)
	app.Get("/ratings", playerService.GetRatings)
	app.Get("/house", playerService.GetHouse)

	// 🔐 Authenticated
	app.Post("/players/register", middleware.UserContextMiddleware(), playerService.RegisterPlayer)
}
