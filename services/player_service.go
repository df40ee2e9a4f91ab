package services

import (
	"context"
	"errors"
	"log"
	"strconv"

	"duel-arena/engine"
	"duel-arena/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// PlayerService serves the registry: accounts, their matches, the ratings
// table and the house state.
type PlayerService struct {
	Engine      *engine.Engine
	DB          *gorm.DB     // pilot profiles; nil leaves them out
	Leaderboard *Leaderboard // optional ratings cache
}

func NewPlayerService(e *engine.Engine, db *gorm.DB, lb *Leaderboard) *PlayerService {
	return &PlayerService{Engine: e, DB: db, Leaderboard: lb}
}

// PlayerView is a player with the profile data synced from the profile service.
type PlayerView struct {
	engine.Player
	Username  string  `json:"username,omitempty"`
	Handle    string  `json:"handle,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
	Rank      int64   `json:"rank,omitempty"`
}

func (s *PlayerService) RegisterPlayer(c *fiber.Ctx) error {
	caller := callerID(c)
	p, err := s.Engine.Register(c.UserContext(), caller)
	if err != nil {
		return respondError(c, err)
	}
	log.Printf("[DUEL] Registered pilot %s", caller)
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (s *PlayerService) GetPlayer(c *fiber.Ctx) error {
	id := c.Params("id")
	p, err := s.Engine.Player(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}

	view := PlayerView{Player: p}
	s.attachProfile(&view)
	if s.Leaderboard != nil {
		if rank, err := s.Leaderboard.Rank(c.UserContext(), id); err == nil {
			view.Rank = rank
		} else {
			log.Printf("⚠️ [LEADERBOARD] Rank lookup for %s failed: %v", id, err)
		}
	}
	return c.JSON(view)
}

func (s *PlayerService) attachProfile(view *PlayerView) {
	if s.DB == nil {
		return
	}
	var profile models.PilotProfile
	err := s.DB.Where("external_user_id = ?", view.ID).First(&profile).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("⚠️ [DUEL] Profile lookup for %s failed: %v", view.ID, err)
		}
		return
	}
	view.Username = profile.Username
	view.Handle = profile.Handle
	view.AvatarURL = profile.AvatarURL
}

func (s *PlayerService) GetPlayerMatches(c *fiber.Ctx) error {
	matches, err := s.Engine.MatchesOf(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"matches": matches})
}

// GetRatings serves the leaderboard. The Redis mirror is used when present;
// any failure there falls back to the ledger.
func (s *PlayerService) GetRatings(c *fiber.Ctx) error {
	limit, _ := strconv.ParseInt(c.Query("limit", "100"), 10, 64)
	if limit <= 0 {
		limit = 100
	}

	if s.Leaderboard != nil {
		ratings, err := s.Leaderboard.Top(c.UserContext(), limit)
		if err == nil && len(ratings) > 0 {
			return c.JSON(fiber.Map{"ratings": ratings, "source": "cache"})
		}
		if err != nil {
			log.Printf("⚠️ [LEADERBOARD] Falling back to ledger: %v", err)
		}
	}

	ratings, err := s.Engine.Ratings(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	if int64(len(ratings)) > limit {
		ratings = ratings[:limit]
	}
	return c.JSON(fiber.Map{"ratings": ratings, "source": "ledger"})
}

func (s *PlayerService) GetHouse(c *fiber.Ctx) error {
	h, err := s.Engine.House(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(h)
}

// RefreshLeaderboard republishes the ratings mirror. It is a no-op without one.
func (s *PlayerService) RefreshLeaderboard(ctx context.Context) error {
	if s.Leaderboard == nil {
		return nil
	}
	return s.Leaderboard.Refresh(ctx, s.Engine)
}
