package engine

import (
	"fmt"
	"slices"
)

// Status is where a match sits in its lifecycle. Everything from Over onward is terminal.
type Status uint8

const (
	NotStarted Status = iota
	Active
	Over
	Player1Destroyed
	Player2Destroyed
	Player1Fled
	Player2Fled
	Draw
)

var statusNames = [...]string{
	NotStarted:       "not_started",
	Active:           "active",
	Over:             "over",
	Player1Destroyed: "player1_destroyed",
	Player2Destroyed: "player2_destroyed",
	Player1Fled:      "player1_fled",
	Player2Fled:      "player2_fled",
	Draw:             "draw",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool { return s >= Over }

func (s Status) MarshalText() ([]byte, error) {
	if int(s) >= len(statusNames) {
		return nil, fmt.Errorf("unknown match status %d", uint8(s))
	}
	return []byte(statusNames[s]), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	for i, name := range statusNames {
		if name == string(b) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown match status %q", b)
}

// destroyed and fled map a seat (0 or 1) to its terminal status.
func destroyed(seat int) Status {
	if seat == 0 {
		return Player1Destroyed
	}
	return Player2Destroyed
}

func fled(seat int) Status {
	if seat == 0 {
		return Player1Fled
	}
	return Player2Fled
}

type Torpedo struct {
	Pos  Vec    `json:"pos"`
	Vel  Vec    `json:"vel"`
	Fuel uint32 `json:"fuel"`
}

type Mine struct {
	Pos Vec `json:"pos"`
}

// Ship is one side of a match. Torpedoes and Mines count what is left to deploy;
// Launched and Minefield keep everything deployed, in order.
type Ship struct {
	Owner     string    `json:"owner"`
	Pos       Vec       `json:"pos"`
	Vel       Vec       `json:"vel"`
	Torpedoes uint32    `json:"torpedoes"`
	Mines     uint32    `json:"mines"`
	Launched  []Torpedo `json:"launched"`
	Minefield []Mine    `json:"minefield"`
}

func (s Ship) clone() Ship {
	s.Launched = slices.Clone(s.Launched)
	s.Minefield = slices.Clone(s.Minefield)
	return s
}

// Rules is the board physics a match is played under. It is copied from the
// house config when the match starts.
type Rules struct {
	QuadrantSize        int64  `json:"quadrant_size"`
	AsteroidSize        int64  `json:"asteroid_size"`
	MineRange           int64  `json:"mine_range"`
	TorpedoRange        int64  `json:"torpedo_range"`
	TorpedoAcceleration int64  `json:"torpedo_acceleration"`
	TorpedoFuel         uint32 `json:"torpedo_fuel"`
	TimeoutSeconds      int64  `json:"timeout_seconds"`
}

type Config struct {
	StakeCost    uint64 `json:"stake_cost"`
	FeePercent   uint64 `json:"fee_percent"`
	MaxTorpedoes uint32 `json:"max_torpedoes"`
	MaxMines     uint32 `json:"max_mines"`
	KFactor      int64  `json:"k_factor"`
	Rules        Rules  `json:"rules"`
}

const (
	InitialRating   uint32 = 1200
	RatingGapCutoff int64  = 800
)

// DefaultConfig returns the rules a fresh house starts with.
func DefaultConfig() Config {
	return Config{
		StakeCost:    1000,
		FeePercent:   10,
		MaxTorpedoes: 5,
		MaxMines:     5,
		KFactor:      32,
		Rules: Rules{
			QuadrantSize:        10,
			AsteroidSize:        2,
			MineRange:           1,
			TorpedoRange:        1,
			TorpedoAcceleration: 1,
			TorpedoFuel:         5,
			TimeoutSeconds:      3600,
		},
	}
}

// Validate rejects configurations no match could be played under.
func (c Config) Validate() error {
	r := c.Rules
	switch {
	case c.StakeCost == 0:
		return fmt.Errorf("%w: stake cost must be positive", ErrInvalidConfig)
	case c.FeePercent > 100:
		return fmt.Errorf("%w: fee percent %d exceeds 100", ErrInvalidConfig, c.FeePercent)
	case c.KFactor < 0:
		return fmt.Errorf("%w: negative k-factor", ErrInvalidConfig)
	case r.AsteroidSize < 0 || r.MineRange < 0 || r.TorpedoRange < 0:
		return fmt.Errorf("%w: ranges must not be negative", ErrInvalidConfig)
	case r.QuadrantSize < 1:
		return fmt.Errorf("%w: quadrant size must be positive", ErrInvalidConfig)
	case InAsteroid(Vec{Row: r.QuadrantSize / 2, Col: r.QuadrantSize}, r.AsteroidSize):
		return fmt.Errorf("%w: starting positions fall inside the asteroid", ErrInvalidConfig)
	case r.TorpedoAcceleration < 1:
		return fmt.Errorf("%w: torpedo acceleration must be at least 1", ErrInvalidConfig)
	case r.TimeoutSeconds < 1:
		return fmt.Errorf("%w: timeout must be at least one second", ErrInvalidConfig)
	}
	return nil
}

// Settlement records how a finished match paid out.
type Settlement struct {
	Outcome Status          `json:"outcome"`
	Winner  string          `json:"winner,omitempty"`
	Payouts []Transfer      `json:"payouts"`
	Fee     uint64          `json:"fee"`
	Ratings [2]RatingChange `json:"ratings"`
	At      int64           `json:"at"`
}

type Match struct {
	ID            uint64      `json:"id"`
	Player1       string      `json:"player1"`
	Player2       string      `json:"player2"`
	Ships         [2]Ship     `json:"ships"`
	Status        Status      `json:"status"`
	Stake         uint64      `json:"stake"`
	Value         uint64      `json:"value"`
	StartFee      uint64      `json:"start_fee"`
	CurrentPlayer string      `json:"current_player"`
	LastTurnAt    int64       `json:"last_turn_at"`
	CreatedAt     int64       `json:"created_at"`
	Open          bool        `json:"open"`
	Turns         uint32      `json:"turns"`
	Rules         Rules       `json:"rules"`
	Result        *Settlement `json:"result,omitempty"`
}

// Seat returns 0 for player1, 1 for player2.
func (m Match) Seat(id string) (int, bool) {
	switch {
	case id == "":
		return 0, false
	case id == m.Player1:
		return 0, true
	case id == m.Player2:
		return 1, true
	}
	return 0, false
}

func (m Match) playerAt(seat int) string {
	if seat == 0 {
		return m.Player1
	}
	return m.Player2
}

func (m Match) clone() Match {
	m.Ships[0] = m.Ships[0].clone()
	m.Ships[1] = m.Ships[1].clone()
	if m.Result != nil {
		r := *m.Result
		r.Payouts = slices.Clone(r.Payouts)
		m.Result = &r
	}
	return m
}

type Stats struct {
	Victories        uint32 `json:"victories"`
	DefaultVictories uint32 `json:"default_victories"`
	DefaultLosses    uint32 `json:"default_losses"`
	Draws            uint32 `json:"draws"`
	Losses           uint32 `json:"losses"`
}

type RatingChange struct {
	MatchID uint64 `json:"match_id"`
	Player  string `json:"player,omitempty"`
	Before  uint32 `json:"before"`
	After   uint32 `json:"after"`
}

type Player struct {
	ID            string         `json:"id"`
	Stats         Stats          `json:"stats"`
	Rating        uint32         `json:"rating"`
	Matches       []uint64       `json:"matches"`
	Invitations   []uint64       `json:"invitations"`
	RatingHistory []RatingChange `json:"rating_history"`
	RegisteredAt  int64          `json:"registered_at"`
}

func newPlayer(id string, now int64) Player {
	return Player{ID: id, Rating: InitialRating, RegisteredAt: now}
}

func (p Player) clone() Player {
	p.Matches = slices.Clone(p.Matches)
	p.Invitations = slices.Clone(p.Invitations)
	p.RatingHistory = slices.Clone(p.RatingHistory)
	return p
}

// House is the process-wide state shared by all matches.
type House struct {
	Config     Config `json:"config"`
	FeeBalance uint64 `json:"fee_balance"`
	OpenSlot   uint64 `json:"open_slot"`
	Paused     bool   `json:"paused"`
	MatchCount uint64 `json:"match_count"`
	// Withdrawals counts fee withdrawals, for transfer refs.
	Withdrawals uint64 `json:"withdrawals"`
}
