package handlers

import (
	"slices"

	"duel-arena/middleware"
	"duel-arena/services"

	"github.com/gofiber/fiber/v2"
)

// SetupDuelRoutes mounts the match lifecycle. A nil authClient leaves the match
// stream public and skips the per-pilot stream; a nil limiter disables rate
// limiting on the secured routes.
func SetupDuelRoutes(app *fiber.App, duelService *services.DuelService, authClient middleware.TokenValidator, limiter fiber.Handler) {
	// 🔓 Public
	app.Get("/matches/:id", duelService.GetMatch)

	// 📡 Streams
	if authClient != nil {
		app.Get("/matches/:id/stream", middleware.SSEAuthMiddleware(authClient), duelService.StreamMatchSSE)
		app.Get("/me/matches/stream", middleware.SSEAuthMiddleware(authClient), duelService.StreamMyMatchesSSE)
	} else {
		app.Get("/matches/:id/stream", duelService.StreamMatchSSE)
	}

	// 🔐 Authenticated
	chain := []fiber.Handler{middleware.UserContextMiddleware()}
	if limiter != nil {
		chain = append(chain, limiter)
	}
	secured := func(h fiber.Handler) []fiber.Handler {
		return append(slices.Clone(chain), h)
	}

	app.Post("/matches/invite", secured(duelService.InviteMatch)...)
	app.Post("/matches/open", secured(duelService.OpenMatch)...)
	app.Post("/matches/:id/accept", secured(duelService.AcceptMatch)...)
	app.Post("/matches/:id/reject", secured(duelService.RejectMatch)...)
	app.Post("/matches/:id/withdraw", secured(duelService.WithdrawMatch)...)
	app.Post("/matches/:id/turn", secured(duelService.PlayTurn)...)
	app.Post("/matches/:id/force-move", secured(duelService.ForceMove)...)
	app.Post("/matches/:id/timeout-draw", secured(duelService.ClaimTimeoutDraw)...)
}
