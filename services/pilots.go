// services/pilots.go
package services

import (
	"strconv"
	"strings"

	"duel-arena/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gosimple/unidecode"
)

// SearchPilots searches the synced pilot profiles by username or handle.
func (s *PlayerService) SearchPilots(c *fiber.Ctx) error {
	if s.DB == nil {
		return c.JSON([]fiber.Map{})
	}
	query := c.Query("q", "")
	limit, err := strconv.Atoi(c.Query("limit", "50"))
	if err != nil || limit <= 0 || limit > 100 {
		limit = 50
	}

	var pilots []models.PilotProfile
	db := s.DB.Model(&models.PilotProfile{}).Where("is_banned = ?", false).Order("username ASC").Limit(limit)
	if query = strings.TrimSpace(query); query != "" {
		searchTerm := "%" + strings.ToLower(query) + "%"
		// handles are ascii slugs, so "Zoë" should still find "zoe"
		handleTerm := "%" + strings.ToLower(unidecode.Unidecode(query)) + "%"
		db = db.Where("LOWER(username) LIKE ? OR handle LIKE ?", searchTerm, handleTerm)
	}
	if err := db.Find(&pilots).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "search failed", "code": "internal"})
	}

	// ExternalUserID is the identity the rest of the API uses.
	type PilotSummary struct {
		ExternalUserID string  `json:"external_user_id"`
		Username       string  `json:"username"`
		Handle         string  `json:"handle"`
		AvatarURL      *string `json:"avatar_url,omitempty"`
	}
	res := make([]PilotSummary, len(pilots))
	for i, p := range pilots {
		res[i] = PilotSummary{
			ExternalUserID: p.ExternalUserID,
			Username:       p.Username,
			Handle:         p.Handle,
			AvatarURL:      p.AvatarURL,
		}
	}
	return c.JSON(res)
}
