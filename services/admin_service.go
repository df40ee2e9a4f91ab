package services

import (
	"errors"
	"log"

	"duel-arena/engine"
	"duel-arena/models"
	"duel-arena/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// AdminService holds the operator endpoints. Routes are gated by the admin role.
type AdminService struct {
	Engine *engine.Engine
	DB     *gorm.DB // match archive index; nil disables archive reads
}

func NewAdminService(e *engine.Engine, db *gorm.DB) *AdminService {
	return &AdminService{Engine: e, DB: db}
}

func (s *AdminService) UpdateConfig(c *fiber.Ctx) error {
	var u engine.ConfigUpdate
	if err := c.BodyParser(&u); err != nil {
		return badRequest(c, "invalid JSON")
	}
	cfg, err := s.Engine.Configure(c.UserContext(), u)
	if err != nil {
		return respondError(c, err)
	}
	log.Printf("🛠️ [ADMIN] %s updated config: stake=%d fee=%d%% k=%d",
		callerID(c), cfg.StakeCost, cfg.FeePercent, cfg.KFactor)
	return c.JSON(cfg)
}

func (s *AdminService) Pause(c *fiber.Ctx) error {
	return s.setPaused(c, true)
}

func (s *AdminService) Unpause(c *fiber.Ctx) error {
	return s.setPaused(c, false)
}

func (s *AdminService) setPaused(c *fiber.Ctx, paused bool) error {
	if err := s.Engine.SetPaused(c.UserContext(), paused); err != nil {
		return respondError(c, err)
	}
	log.Printf("🛠️ [ADMIN] %s set paused=%t", callerID(c), paused)
	return c.JSON(fiber.Map{"paused": paused})
}

func (s *AdminService) WithdrawFees(c *fiber.Ctx) error {
	var req struct {
		To     string `json:"to"`
		Amount uint64 `json:"amount"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid JSON")
	}
	h, err := s.Engine.WithdrawFees(c.UserContext(), req.To, req.Amount)
	if err != nil {
		return respondError(c, err)
	}
	log.Printf("💰 [ADMIN] %s withdrew %d in fees to %s (balance now %d)", callerID(c), req.Amount, req.To, h.FeeBalance)
	return c.JSON(h)
}

// GetMatchArchive reads back the archived copy of a finished match.
func (s *AdminService) GetMatchArchive(c *fiber.Ctx) error {
	id, ok := matchIDParam(c)
	if !ok {
		return badRequest(c, "invalid match id")
	}
	if s.DB == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "archives unavailable", "code": "archive_not_found"})
	}

	var rec models.MatchRecord
	if err := s.DB.Select("id", "archive_key", "archive_sum").First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, engine.ErrMatchNotFound)
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "DB error fetching match", "code": "internal"})
	}
	if rec.ArchiveKey == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "match not archived yet", "code": "archive_not_found"})
	}

	blob, err := utils.LoadArchive(c.UserContext(), rec.ArchiveKey, rec.ArchiveSum)
	if err != nil {
		log.Printf("❌ [ADMIN] Failed to load archive %s: %v", rec.ArchiveKey, err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "failed to load archive", "code": "archive_unavailable"})
	}
	var m engine.Match
	if err := utils.DecodeArchive(blob, &m); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error(), "code": "internal"})
	}
	return c.JSON(fiber.Map{"match": m, "archive_key": rec.ArchiveKey, "archive_sum": rec.ArchiveSum})
}
