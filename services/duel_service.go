package services

import (
	"errors"
	"log"
	"time"

	"duel-arena/engine"
	"duel-arena/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// DuelService exposes the match lifecycle over HTTP.
type DuelService struct {
	Engine *engine.Engine
	DB     *gorm.DB // pilot profiles for the ban check; nil skips it

	// StreamInterval is how often match streams poll for changes.
	StreamInterval time.Duration
}

func NewDuelService(e *engine.Engine, db *gorm.DB) *DuelService {
	return &DuelService{Engine: e, DB: db, StreamInterval: 2 * time.Second}
}

type stakeRequest struct {
	Stake uint64 `json:"stake"`
}

type inviteRequest struct {
	Opponent string `json:"opponent"`
	Stake    uint64 `json:"stake"`
}

// banned reports whether the caller's synced profile is banned. Callers
// without a profile are not banned.
func (s *DuelService) banned(caller string) (bool, error) {
	if s.DB == nil {
		return false, nil
	}
	var profile models.PilotProfile
	err := s.DB.Select("is_banned").Where("external_user_id = ?", caller).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return profile.IsBanned, nil
}

func (s *DuelService) rejectBanned(c *fiber.Ctx, caller string) (bool, error) {
	isBanned, err := s.banned(caller)
	if err != nil {
		log.Printf("⚠️ [DUEL] Ban lookup for %s failed: %v", caller, err)
		return true, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error checking pilot", "code": "internal"})
	}
	if isBanned {
		return true, c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "pilot is banned", "code": "pilot_banned"})
	}
	return false, nil
}

func (s *DuelService) GetMatch(c *fiber.Ctx) error {
	id, ok := matchIDParam(c)
	if !ok {
		return badRequest(c, "invalid match id")
	}
	m, err := s.Engine.Match(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(m)
}

func (s *DuelService) InviteMatch(c *fiber.Ctx) error {
	caller := callerID(c)
	var req inviteRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	if stop, err := s.rejectBanned(c, caller); stop {
		return err
	}

	m, err := s.Engine.Invite(c.UserContext(), caller, req.Opponent, req.Stake)
	if err != nil {
		return respondError(c, err)
	}
	log.Printf("⚔️ [DUEL] %s invited %s to match %d (stake %d)", caller, req.Opponent, m.ID, req.Stake)
	return c.Status(fiber.StatusCreated).JSON(m)
}

func (s *DuelService) OpenMatch(c *fiber.Ctx) error {
	caller := callerID(c)
	var req stakeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	if stop, err := s.rejectBanned(c, caller); stop {
		return err
	}

	m, err := s.Engine.JoinOpen(c.UserContext(), caller, req.Stake)
	if err != nil {
		return respondError(c, err)
	}
	if m.Status == engine.Active {
		log.Printf("⚔️ [DUEL] %s joined open match %d against %s", caller, m.ID, m.Player1)
		return c.JSON(m)
	}
	log.Printf("⚔️ [DUEL] %s opened match %d", caller, m.ID)
	return c.Status(fiber.StatusCreated).JSON(m)
}

func (s *DuelService) AcceptMatch(c *fiber.Ctx) error {
	caller := callerID(c)
	id, ok := matchIDParam(c)
	if !ok {
		return badRequest(c, "invalid match id")
	}
	var req stakeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	if stop, err := s.rejectBanned(c, caller); stop {
		return err
	}

	m, err := s.Engine.Accept(c.UserContext(), caller, id, req.Stake)
	if err != nil {
		return respondError(c, err)
	}
	log.Printf("⚔️ [DUEL] Match %d started, %s moves first", m.ID, m.CurrentPlayer)
	return c.JSON(m)
}

func (s *DuelService) RejectMatch(c *fiber.Ctx) error {
	id, ok := matchIDParam(c)
	if !ok {
		return badRequest(c, "invalid match id")
	}
	m, err := s.Engine.Reject(c.UserContext(), callerID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	log.Printf("[DUEL] Match %d rejected by %s", m.ID, m.Player2)
	return c.JSON(m)
}

func (s *DuelService) WithdrawMatch(c *fiber.Ctx) error {
	id, ok := matchIDParam(c)
	if !ok {
		return badRequest(c, "invalid match id")
	}
	m, err := s.Engine.Withdraw(c.UserContext(), callerID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	log.Printf("[DUEL] Match %d withdrawn by %s", m.ID, m.Player1)
	return c.JSON(m)
}

func (s *DuelService) PlayTurn(c *fiber.Ctx) error {
	caller := callerID(c)
	id, ok := matchIDParam(c)
	if !ok {
		return badRequest(c, "invalid match id")
	}
	var in engine.TurnInput
	if err := c.BodyParser(&in); err != nil {
		if errors.Is(err, engine.ErrInvalidAction) {
			return respondError(c, err)
		}
		return badRequest(c, "invalid JSON")
	}
	if stop, err := s.rejectBanned(c, caller); stop {
		return err
	}

	m, err := s.Engine.Turn(c.UserContext(), caller, id, in)
	if err != nil {
		return respondError(c, err)
	}
	logSettled(m)
	return c.JSON(m)
}

func (s *DuelService) ForceMove(c *fiber.Ctx) error {
	id, ok := matchIDParam(c)
	if !ok {
		return badRequest(c, "invalid match id")
	}
	m, err := s.Engine.ForceMove(c.UserContext(), callerID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	log.Printf("[DUEL] Forced move on match %d by %s", m.ID, callerID(c))
	logSettled(m)
	return c.JSON(m)
}

func (s *DuelService) ClaimTimeoutDraw(c *fiber.Ctx) error {
	id, ok := matchIDParam(c)
	if !ok {
		return badRequest(c, "invalid match id")
	}
	m, err := s.Engine.ClaimTimeoutDraw(c.UserContext(), callerID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	logSettled(m)
	return c.JSON(m)
}

func logSettled(m engine.Match) {
	if m.Result == nil {
		return
	}
	r := m.Result
	log.Printf("🏁 [SETTLE] Match %d ended %s (winner=%q, fee=%d, %d payout(s))",
		m.ID, r.Outcome, r.Winner, r.Fee, len(r.Payouts))
}
