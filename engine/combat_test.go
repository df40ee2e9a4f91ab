package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func combatMatch() Match {
	m := Match{
		ID:            1,
		Player1:       alice,
		Player2:       bob,
		Status:        Active,
		CurrentPlayer: alice,
		Rules:         DefaultConfig().Rules,
	}
	m.Ships[0] = Ship{Owner: alice, Pos: Vec{5, -10}, Torpedoes: 5, Mines: 5}
	m.Ships[1] = Ship{Owner: bob, Pos: Vec{-5, 10}, Torpedoes: 5, Mines: 5}
	return m
}

func TestResolveTurnMovement(t *testing.T) {
	m := combatMatch()
	m.Ships[0].Vel = Vec{1, 0}

	status, err := resolveTurn(&m, 0, TurnInput{Thrust: Vec{0, 1}})
	require.NoError(t, err)
	assert.Equal(t, Active, status)
	assert.Equal(t, Vec{1, 1}, m.Ships[0].Vel)
	assert.Equal(t, Vec{6, -9}, m.Ships[0].Pos)
	assert.Equal(t, Vec{-5, 10}, m.Ships[1].Pos, "enemy ship does not move")
}

func TestResolveTurnFiresTorpedoFromNewPosition(t *testing.T) {
	m := combatMatch()

	status, err := resolveTurn(&m, 0, TurnInput{Thrust: Vec{1, 1}, Action: FireTorpedo})
	require.NoError(t, err)
	assert.Equal(t, Active, status, "own torpedo never hits its launcher")
	assert.Equal(t, uint32(4), m.Ships[0].Torpedoes)
	require.Len(t, m.Ships[0].Launched, 1)
	assert.Equal(t, Torpedo{Pos: Vec{6, -9}, Vel: Vec{1, 1}, Fuel: 5}, m.Ships[0].Launched[0])
}

func TestResolveTurnDropsMineBehindShip(t *testing.T) {
	m := combatMatch()

	status, err := resolveTurn(&m, 0, TurnInput{Thrust: Vec{0, 1}, Action: DropMine})
	require.NoError(t, err)
	assert.Equal(t, Active, status)
	assert.Equal(t, uint32(4), m.Ships[0].Mines)
	assert.Equal(t, []Mine{{Pos: Vec{5, -10}}}, m.Ships[0].Minefield)
}

func TestResolveTurnTermination(t *testing.T) {
	cases := []struct {
		name  string
		setup func(m *Match)
		in    TurnInput
		want  Status
	}{
		{
			name: "leaving the board",
			in:   TurnInput{Thrust: Vec{0, -1}},
			want: Player1Fled,
		},
		{
			name: "crashing into the asteroid",
			setup: func(m *Match) {
				m.Ships[0].Pos = Vec{0, 4}
				m.Ships[0].Vel = Vec{0, -1}
			},
			in:   TurnInput{Thrust: Vec{0, -1}},
			want: Player1Destroyed,
		},
		{
			name: "touching an enemy mine",
			setup: func(m *Match) {
				m.Ships[1].Minefield = []Mine{{Pos: Vec{5, -8}}}
			},
			in:   TurnInput{Thrust: Vec{0, 1}},
			want: Player1Destroyed,
		},
		{
			name: "own mines are harmless",
			setup: func(m *Match) {
				m.Ships[0].Minefield = []Mine{{Pos: Vec{5, -9}}}
			},
			in:   TurnInput{Thrust: Vec{0, 1}},
			want: Active,
		},
		{
			name: "enemy torpedo impact",
			setup: func(m *Match) {
				m.Ships[1].Launched = []Torpedo{{Pos: Vec{5, -7}, Fuel: 5}}
			},
			in:   TurnInput{Thrust: Vec{0, 1}},
			want: Player1Destroyed,
		},
		{
			name: "inert torpedo is ignored",
			setup: func(m *Match) {
				m.Ships[1].Launched = []Torpedo{{Pos: Vec{5, -9}}}
			},
			in:   TurnInput{Thrust: Vec{0, 1}},
			want: Active,
		},
		{
			name: "second seat flees",
			setup: func(m *Match) {
				m.CurrentPlayer = bob
			},
			in:   TurnInput{Thrust: Vec{0, 1}},
			want: Player2Fled,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := combatMatch()
			if tc.setup != nil {
				tc.setup(&m)
			}
			seat, _ := m.Seat(m.CurrentPlayer)
			status, err := resolveTurn(&m, seat, tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, status)
		})
	}
}

func TestTorpedoImpactSpendsTorpedo(t *testing.T) {
	m := combatMatch()
	m.Ships[1].Launched = []Torpedo{{Pos: Vec{5, -7}, Fuel: 5}}

	_, err := resolveTurn(&m, 0, TurnInput{Thrust: Vec{0, 1}})
	require.NoError(t, err)
	assert.Equal(t, Vec{5, -8}, m.Ships[1].Launched[0].Pos)
	assert.False(t, m.Ships[1].Launched[0].Live())
}

func TestTorpedoDiesInAsteroid(t *testing.T) {
	m := combatMatch()
	m.Ships[0].Pos = Vec{0, -6}
	m.Ships[1].Launched = []Torpedo{{Pos: Vec{0, 3}, Vel: Vec{0, -1}, Fuel: 5}}

	status, err := resolveTurn(&m, 0, TurnInput{})
	require.NoError(t, err)
	assert.Equal(t, Active, status)
	require.Len(t, m.Ships[1].Launched, 1, "dead torpedoes keep their slot")
	assert.Equal(t, Vec{0, 1}, m.Ships[1].Launched[0].Pos)
	assert.Equal(t, uint32(0), m.Ships[1].Launched[0].Fuel)
}

func TestFleeingShortCircuitsTorpedoes(t *testing.T) {
	m := combatMatch()
	waiting := Torpedo{Pos: Vec{5, -11}, Fuel: 5}
	m.Ships[1].Launched = []Torpedo{waiting}

	status, err := resolveTurn(&m, 0, TurnInput{Thrust: Vec{0, -1}})
	require.NoError(t, err)
	assert.Equal(t, Player1Fled, status)
	assert.Equal(t, waiting, m.Ships[1].Launched[0])
}

func TestRejectedTurnLeavesMatchUntouched(t *testing.T) {
	cases := []struct {
		name  string
		setup func(m *Match)
		in    TurnInput
		err   error
	}{
		{
			name:  "no torpedoes",
			setup: func(m *Match) { m.Ships[0].Torpedoes = 0 },
			in:    TurnInput{Thrust: Vec{1, 0}, Action: FireTorpedo},
			err:   ErrInsufficientTorpedoes,
		},
		{
			name:  "no mines",
			setup: func(m *Match) { m.Ships[0].Mines = 0 },
			in:    TurnInput{Thrust: Vec{1, 0}, Action: DropMine},
			err:   ErrInsufficientMines,
		},
		{
			name: "thrust too strong",
			in:   TurnInput{Thrust: Vec{2, 0}},
			err:  ErrInvalidThrust,
		},
		{
			name: "unknown action",
			in:   TurnInput{Action: Action(9)},
			err:  ErrInvalidAction,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := combatMatch()
			m.Ships[0].Vel = Vec{0, 1}
			if tc.setup != nil {
				tc.setup(&m)
			}
			before := m.clone()

			_, err := resolveTurn(&m, 0, tc.in)
			require.ErrorIs(t, err, tc.err)
			assert.Equal(t, before, m)
		})
	}
}

func TestParseAction(t *testing.T) {
	for in, want := range map[string]Action{"": NoAction, "none": NoAction, "fire_torpedo": FireTorpedo, "drop_mine": DropMine} {
		got, err := ParseAction(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseAction("nuke")
	assert.ErrorIs(t, err, ErrInvalidAction)
}
