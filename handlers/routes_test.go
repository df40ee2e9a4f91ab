package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"duel-arena/engine"
	"duel-arena/middleware"
	"duel-arena/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gatewayToken = "test-gateway-token"

type memTreasury struct {
	mu        sync.Mutex
	collected map[string]uint64
	paid      []engine.Transfer
	down      bool
}

func (t *memTreasury) Collect(ctx context.Context, from string, amount uint64, ref string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.down {
		return errors.New("custody unreachable")
	}
	t.collected[from] += amount
	return nil
}

func (t *memTreasury) Payout(ctx context.Context, transfers []engine.Transfer) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.down {
		return errors.New("custody unreachable")
	}
	t.paid = append(t.paid, transfers...)
	return nil
}

type fixedCoins struct{}

func (fixedCoins) Flip(uint64, int64) (bool, bool) { return true, true }

type testClock struct {
	mu  sync.Mutex
	now int64
}

func (c *testClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) advance(sec int64) {
	c.mu.Lock()
	c.now += sec
	c.mu.Unlock()
}

type harness struct {
	app      *fiber.App
	treasury *memTreasury
	clock    *testClock
}

func newHarness(t *testing.T, authClient middleware.TokenValidator) *harness {
	t.Helper()
	cfg := engine.DefaultConfig()
	cfg.StakeCost = 500

	treasury := &memTreasury{collected: map[string]uint64{}}
	clock := &testClock{now: 1_700_000_000}
	arena := engine.New(engine.NewMemoryLedger(cfg), treasury, clock, fixedCoins{})

	app := fiber.New()
	app.Use(middleware.GatewayAuthMiddleware(gatewayToken))
	SetupDuelRoutes(app, services.NewDuelService(arena, nil), authClient, nil)
	SetupPlayerRoutes(app, services.NewPlayerService(arena, nil, nil))
	SetupAdminRoutes(app, services.NewAdminService(arena, nil))

	return &harness{app: app, treasury: treasury, clock: clock}
}

// do sends a gateway-authenticated request as user (empty for anonymous) and
// decodes the JSON response into out when out is non-nil.
func (h *harness) do(t *testing.T, method, path, user, roles, body string, out interface{}) int {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+gatewayToken)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	if roles != "" {
		req.Header.Set("X-User-Roles", roles)
	}

	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (h *harness) startMatch(t *testing.T) engine.Match {
	t.Helper()
	var m engine.Match
	require.Equal(t, http.StatusCreated, h.do(t, "POST", "/matches/invite", "alice", "", `{"opponent":"bob","stake":500}`, &m))
	require.Equal(t, http.StatusOK, h.do(t, "POST", "/matches/1/accept", "bob", "", `{"stake":500}`, &m))
	require.Equal(t, engine.Active, m.Status)
	return m
}

func TestGatewayTokenRequired(t *testing.T) {
	h := newHarness(t, nil)

	req := httptest.NewRequest("GET", "/house", nil)
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest("GET", "/house", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err = h.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSecuredRoutesNeedUser(t *testing.T) {
	h := newHarness(t, nil)
	assert.Equal(t, http.StatusUnauthorized, h.do(t, "POST", "/matches/open", "", "", `{"stake":500}`, nil))
	assert.Equal(t, http.StatusUnauthorized, h.do(t, "POST", "/players/register", "", "", "", nil))
}

func TestInviteAcceptAndTurn(t *testing.T) {
	h := newHarness(t, nil)
	m := h.startMatch(t)
	assert.Equal(t, "alice", m.CurrentPlayer)
	assert.Equal(t, uint64(900), m.Value)
	assert.Equal(t, uint64(500), h.treasury.collected["alice"])
	assert.Equal(t, uint64(500), h.treasury.collected["bob"])

	var eb errorBody
	assert.Equal(t, http.StatusForbidden, h.do(t, "POST", "/matches/1/turn", "bob", "", `{"thrust":{"row":0,"col":1}}`, &eb))
	assert.Equal(t, "not_your_turn", eb.Code)

	var after engine.Match
	require.Equal(t, http.StatusOK, h.do(t, "POST", "/matches/1/turn", "alice", "", `{"thrust":{"row":0,"col":1},"action":"drop_mine"}`, &after))
	assert.Equal(t, "bob", after.CurrentPlayer)
	assert.Equal(t, engine.Vec{Row: 5, Col: -9}, after.Ships[0].Pos)
	assert.Len(t, after.Ships[0].Minefield, 1)

	var fetched engine.Match
	require.Equal(t, http.StatusOK, h.do(t, "GET", "/matches/1", "", "", "", &fetched))
	assert.Equal(t, after.Ships, fetched.Ships)
}

func TestErrorMapping(t *testing.T) {
	h := newHarness(t, nil)
	h.startMatch(t)

	cases := []struct {
		name, method, path, user, body string
		status                         int
		code                           string
	}{
		{"unknown match", "GET", "/matches/99", "", "", http.StatusNotFound, "match_not_found"},
		{"bad match id", "GET", "/matches/abc", "", "", http.StatusBadRequest, "bad_request"},
		{"unknown player", "GET", "/players/nobody", "", "", http.StatusNotFound, "player_not_found"},
		{"wrong stake", "POST", "/matches/open", "carol", `{"stake":1}`, http.StatusBadRequest, "insufficient_stake"},
		{"self play", "POST", "/matches/invite", "carol", `{"opponent":"carol","stake":500}`, http.StatusBadRequest, "self_play"},
		{"outsider turn", "POST", "/matches/1/turn", "carol", `{"thrust":{"row":0,"col":0}}`, http.StatusForbidden, "not_a_participant"},
		{"bad thrust", "POST", "/matches/1/turn", "alice", `{"thrust":{"row":2,"col":0}}`, http.StatusBadRequest, "invalid_thrust"},
		{"bad action", "POST", "/matches/1/turn", "alice", `{"thrust":{"row":0,"col":0},"action":"nuke"}`, http.StatusBadRequest, "invalid_action"},
		{"accept started match", "POST", "/matches/1/accept", "bob", `{"stake":500}`, http.StatusConflict, "match_not_pending"},
		{"early timeout", "POST", "/matches/1/timeout-draw", "bob", "", http.StatusConflict, "timeout_not_elapsed"},
		{"already registered", "POST", "/players/register", "alice", "", http.StatusConflict, "already_registered"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var eb errorBody
			assert.Equal(t, tc.status, h.do(t, tc.method, tc.path, tc.user, "", tc.body, &eb))
			assert.Equal(t, tc.code, eb.Code)
			assert.NotEmpty(t, eb.Error)
		})
	}
}

func TestTreasuryFailureMapsToBadGateway(t *testing.T) {
	h := newHarness(t, nil)
	h.treasury.down = true

	var eb errorBody
	assert.Equal(t, http.StatusBadGateway, h.do(t, "POST", "/matches/open", "alice", "", `{"stake":500}`, &eb))
	assert.Equal(t, "treasury_failure", eb.Code)

	var house engine.House
	require.Equal(t, http.StatusOK, h.do(t, "GET", "/house", "", "", "", &house))
	assert.Zero(t, house.MatchCount)
	assert.Zero(t, house.OpenSlot)
}

func TestOpenMatchmaking(t *testing.T) {
	h := newHarness(t, nil)

	var m engine.Match
	require.Equal(t, http.StatusCreated, h.do(t, "POST", "/matches/open", "alice", "", `{"stake":500}`, &m))
	assert.Equal(t, engine.NotStarted, m.Status)
	assert.True(t, m.Open)

	require.Equal(t, http.StatusOK, h.do(t, "POST", "/matches/open", "bob", "", `{"stake":500}`, &m))
	assert.Equal(t, engine.Active, m.Status)
	assert.Equal(t, "bob", m.Player2)

	var matches struct {
		Matches []engine.Match `json:"matches"`
	}
	require.Equal(t, http.StatusOK, h.do(t, "GET", "/players/bob/matches", "", "", "", &matches))
	require.Len(t, matches.Matches, 1)
	assert.Equal(t, m.ID, matches.Matches[0].ID)
}

func TestTimeoutDrawPaysBothPlayers(t *testing.T) {
	h := newHarness(t, nil)
	h.startMatch(t)
	h.clock.advance(3601)

	var m engine.Match
	require.Equal(t, http.StatusOK, h.do(t, "POST", "/matches/1/timeout-draw", "bob", "", "", &m))
	assert.Equal(t, engine.Draw, m.Status)
	require.NotNil(t, m.Result)
	assert.ElementsMatch(t, []engine.Transfer{
		{To: "alice", Amount: 450, Memo: "draw", Ref: "match/1/settle"},
		{To: "bob", Amount: 450, Memo: "draw", Ref: "match/1/settle"},
	}, h.treasury.paid)

	var ratings struct {
		Ratings []engine.Rating `json:"ratings"`
		Source  string          `json:"source"`
	}
	require.Equal(t, http.StatusOK, h.do(t, "GET", "/ratings", "", "", "", &ratings))
	assert.Equal(t, "ledger", ratings.Source)
	assert.Equal(t, []engine.Rating{{Player: "alice", Rating: 1200}, {Player: "bob", Rating: 1200}}, ratings.Ratings)
}

func TestAdminRoutesNeedRole(t *testing.T) {
	h := newHarness(t, nil)

	assert.Equal(t, http.StatusForbidden, h.do(t, "POST", "/admin/pause", "alice", "player", "", nil))
	require.Equal(t, http.StatusOK, h.do(t, "POST", "/admin/pause", "root", "player, admin", "", nil))

	var eb errorBody
	assert.Equal(t, http.StatusServiceUnavailable, h.do(t, "POST", "/matches/open", "alice", "", `{"stake":500}`, &eb))
	assert.Equal(t, "system_paused", eb.Code)

	require.Equal(t, http.StatusOK, h.do(t, "POST", "/admin/unpause", "root", "admin", "", nil))
	assert.Equal(t, http.StatusCreated, h.do(t, "POST", "/matches/open", "alice", "", `{"stake":500}`, nil))
}

func TestAdminConfigAndFees(t *testing.T) {
	h := newHarness(t, nil)

	var cfg engine.Config
	require.Equal(t, http.StatusOK, h.do(t, "PUT", "/admin/config", "root", "admin", `{"fee_percent":20,"max_mines":2}`, &cfg))
	assert.Equal(t, uint64(20), cfg.FeePercent)
	assert.Equal(t, uint32(2), cfg.MaxMines)
	assert.Equal(t, uint64(500), cfg.StakeCost)

	var eb errorBody
	assert.Equal(t, http.StatusBadRequest, h.do(t, "PUT", "/admin/config", "root", "admin", `{"fee_percent":101}`, &eb))
	assert.Equal(t, "invalid_config", eb.Code)

	h.startMatch(t)

	var house engine.House
	require.Equal(t, http.StatusOK, h.do(t, "GET", "/house", "", "", "", &house))
	assert.Equal(t, uint64(200), house.FeeBalance)

	assert.Equal(t, http.StatusBadRequest, h.do(t, "POST", "/admin/fees/withdraw", "root", "admin", `{"to":"ops","amount":201}`, &eb))
	assert.Equal(t, "insufficient_fees", eb.Code)

	require.Equal(t, http.StatusOK, h.do(t, "POST", "/admin/fees/withdraw", "root", "admin", `{"to":"ops","amount":150}`, &house))
	assert.Equal(t, uint64(50), house.FeeBalance)
	assert.Contains(t, h.treasury.paid, engine.Transfer{To: "ops", Amount: 150, Memo: "fee withdrawal", Ref: "fees/1"})
}

func TestMatchStreamSendsFinishedMatch(t *testing.T) {
	h := newHarness(t, nil)
	require.Equal(t, http.StatusCreated, h.do(t, "POST", "/matches/invite", "alice", "", `{"opponent":"bob","stake":500}`, nil))
	require.Equal(t, http.StatusOK, h.do(t, "POST", "/matches/1/reject", "bob", "", "", nil))

	req := httptest.NewRequest("GET", "/matches/1/stream", nil)
	req.Header.Set("Authorization", "Bearer "+gatewayToken)
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	require.True(t, scanner.Scan())
	assert.Equal(t, "event: match", scanner.Text())
	require.True(t, scanner.Scan())
	data := strings.TrimPrefix(scanner.Text(), "data: ")

	var m engine.Match
	require.NoError(t, json.Unmarshal([]byte(data), &m))
	assert.Equal(t, engine.Over, m.Status)
}

type rejectAll struct{}

func (rejectAll) ValidateToken(context.Context, string, string) (*services.ValidateResponse, error) {
	return nil, errors.New("expired")
}

func TestMatchStreamWithAuthClient(t *testing.T) {
	h := newHarness(t, rejectAll{})

	req := httptest.NewRequest("GET", "/matches/1/stream?token=abc&device_id=d1", nil)
	req.Header.Set("Authorization", "Bearer "+gatewayToken)
	resp, err := h.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest("GET", "/me/matches/stream", nil)
	req.Header.Set("Authorization", "Bearer "+gatewayToken)
	resp, err = h.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStoredSeatsSurviveLaterRequests(t *testing.T) {
	h := newHarness(t, nil)

	var m engine.Match
	require.Equal(t, http.StatusCreated, h.do(t, "POST", "/matches/invite", "alice", "", `{"opponent":"bob","stake":500}`, &m))

	// later requests from other callers reuse the server's request buffers
	require.Equal(t, http.StatusOK, h.do(t, "GET", "/ratings", "zzzzz", "", "", nil))
	require.Equal(t, http.StatusCreated, h.do(t, "POST", "/players/register", "yyyyy", "", "", nil))

	var stored engine.Match
	require.Equal(t, http.StatusOK, h.do(t, "GET", "/matches/1", "", "", "", &stored))
	assert.Equal(t, "alice", stored.Player1)
	assert.Equal(t, "bob", stored.Player2)
	assert.Equal(t, "alice", stored.Ships[0].Owner)

	var eb errorBody
	assert.Equal(t, http.StatusForbidden, h.do(t, "POST", "/matches/1/accept", "yyyyy", "", `{"stake":500}`, &eb))
	assert.Equal(t, "not_invited", eb.Code)
	require.Equal(t, http.StatusOK, h.do(t, "POST", "/matches/1/accept", "bob", "", `{"stake":500}`, &stored))
	assert.Equal(t, "alice", stored.CurrentPlayer)

	var alice engine.Player
	require.Equal(t, http.StatusOK, h.do(t, "GET", "/players/alice", "", "", "", &alice))
	assert.Equal(t, "alice", alice.ID)
}
