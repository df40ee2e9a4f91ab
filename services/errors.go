package services

import (
	"errors"
	"log"
	"strconv"

	"duel-arena/engine"

	"github.com/gofiber/fiber/v2"
)

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{engine.ErrMatchNotFound, fiber.StatusNotFound, "match_not_found"},
	{engine.ErrPlayerNotFound, fiber.StatusNotFound, "player_not_found"},
	{engine.ErrNotYourTurn, fiber.StatusForbidden, "not_your_turn"},
	{engine.ErrNotAParticipant, fiber.StatusForbidden, "not_a_participant"},
	{engine.ErrNotInvited, fiber.StatusForbidden, "not_invited"},
	{engine.ErrMatchNotActive, fiber.StatusConflict, "match_not_active"},
	{engine.ErrMatchNotPending, fiber.StatusConflict, "match_not_pending"},
	{engine.ErrAlreadyRegistered, fiber.StatusConflict, "already_registered"},
	{engine.ErrTimeoutNotElapsed, fiber.StatusConflict, "timeout_not_elapsed"},
	{engine.ErrInsufficientStake, fiber.StatusBadRequest, "insufficient_stake"},
	{engine.ErrInsufficientTorpedoes, fiber.StatusBadRequest, "insufficient_torpedoes"},
	{engine.ErrInsufficientMines, fiber.StatusBadRequest, "insufficient_mines"},
	{engine.ErrInsufficientFees, fiber.StatusBadRequest, "insufficient_fees"},
	{engine.ErrSelfPlay, fiber.StatusBadRequest, "self_play"},
	{engine.ErrInvalidThrust, fiber.StatusBadRequest, "invalid_thrust"},
	{engine.ErrInvalidAction, fiber.StatusBadRequest, "invalid_action"},
	{engine.ErrInvalidConfig, fiber.StatusBadRequest, "invalid_config"},
	{engine.ErrSystemPaused, fiber.StatusServiceUnavailable, "system_paused"},
	{engine.ErrTreasury, fiber.StatusBadGateway, "treasury_failure"},
}

// respondError writes the JSON error body for an engine error. Anything not
// listed is an internal failure and is logged.
func respondError(c *fiber.Ctx, err error) error {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return c.Status(m.status).JSON(fiber.Map{"error": err.Error(), "code": m.code})
		}
	}
	log.Printf("❌ [DUEL] %s %s failed: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error", "code": "internal"})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg, "code": "bad_request"})
}

// matchIDParam reads the :id route parameter.
func matchIDParam(c *fiber.Ctx) (uint64, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// callerID returns the identity set by the user context middleware.
func callerID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}
