package services

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"duel-arena/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedPilot(t *testing.T, db *gorm.DB, id, externalID, username, handle string, banned bool) {
	t.Helper()
	require.NoError(t, db.Create(&models.PilotProfile{
		ID:             id,
		ExternalUserID: externalID,
		Username:       username,
		Handle:         handle,
		IsBanned:       banned,
	}).Error)
}

func withCaller(id string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user_id", id)
		return c.Next()
	}
}

func TestPlayerViewIncludesProfile(t *testing.T) {
	arena, ledger, _ := newGormArena(t)
	seedPilot(t, ledger.db, "8d2f1c3e-0000-4000-8000-000000000001", "alice", "Alice Nova", "alice-nova", false)
	_, err := arena.Invite(context.Background(), "alice", "bob", 500)
	require.NoError(t, err)

	svc := NewPlayerService(arena, ledger.db, nil)
	app := fiber.New()
	app.Get("/players/:id", svc.GetPlayer)
	app.Get("/ratings", svc.GetRatings)

	resp, err := app.Test(httptest.NewRequest("GET", "/players/alice", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var view PlayerView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	assert.Equal(t, "Alice Nova", view.Username)
	assert.Equal(t, "alice-nova", view.Handle)
	assert.Equal(t, []uint64{1}, view.Matches)

	// profiles are optional
	resp, err = app.Test(httptest.NewRequest("GET", "/players/bob", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("GET", "/ratings?limit=1", nil))
	require.NoError(t, err)
	var ratings struct {
		Ratings []struct {
			Player string `json:"player"`
		} `json:"ratings"`
		Source string `json:"source"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ratings))
	assert.Equal(t, "ledger", ratings.Source)
	require.Len(t, ratings.Ratings, 1)
	assert.Equal(t, "alice", ratings.Ratings[0].Player)
}

func TestSearchPilotsSkipsBanned(t *testing.T) {
	arena, ledger, _ := newGormArena(t)
	seedPilot(t, ledger.db, "8d2f1c3e-0000-4000-8000-000000000001", "u1", "Nova Prime", "nova-prime", false)
	seedPilot(t, ledger.db, "8d2f1c3e-0000-4000-8000-000000000002", "u2", "Nova Rogue", "nova-rogue", true)
	seedPilot(t, ledger.db, "8d2f1c3e-0000-4000-8000-000000000003", "u3", "Orbit", "orbit", false)

	svc := NewPlayerService(arena, ledger.db, nil)
	app := fiber.New()
	app.Get("/pilots/search", svc.SearchPilots)

	resp, err := app.Test(httptest.NewRequest("GET", "/pilots/search?q=NOVA", nil))
	require.NoError(t, err)
	var found []struct {
		ExternalUserID string `json:"external_user_id"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&found))
	require.Len(t, found, 1)
	assert.Equal(t, "u1", found[0].ExternalUserID)

	seedPilot(t, ledger.db, "8d2f1c3e-0000-4000-8000-000000000004", "u4", "Zoe Star", "zoe-star", false)
	resp, err = app.Test(httptest.NewRequest("GET", "/pilots/search?q=zo%C3%AB", nil))
	require.NoError(t, err)
	found = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&found))
	require.Len(t, found, 1)
	assert.Equal(t, "u4", found[0].ExternalUserID)
}

func TestBannedPilotCannotInvite(t *testing.T) {
	arena, ledger, _ := newGormArena(t)
	seedPilot(t, ledger.db, "8d2f1c3e-0000-4000-8000-000000000001", "mallory", "Mallory", "mallory", true)

	duel := NewDuelService(arena, ledger.db)
	app := fiber.New()
	app.Post("/matches/invite", withCaller("mallory"), duel.InviteMatch)

	req := httptest.NewRequest("POST", "/matches/invite", strings.NewReader(`{"opponent":"bob","stake":500}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	_, err = arena.Player(context.Background(), "mallory")
	assert.Error(t, err)
}
