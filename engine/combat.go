package engine

import "fmt"

// Action is the optional weapon deployment attached to a turn.
type Action uint8

const (
	NoAction Action = iota
	FireTorpedo
	DropMine
)

var actionNames = [...]string{NoAction: "", FireTorpedo: "fire_torpedo", DropMine: "drop_mine"}

func (a Action) String() string {
	if int(a) < len(actionNames) {
		if a == NoAction {
			return "none"
		}
		return actionNames[a]
	}
	return fmt.Sprintf("action(%d)", uint8(a))
}

func (a Action) MarshalText() ([]byte, error) {
	if int(a) >= len(actionNames) {
		return nil, ErrInvalidAction
	}
	return []byte(actionNames[a]), nil
}

func (a *Action) UnmarshalText(b []byte) error {
	parsed, err := ParseAction(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAction accepts "", "none", "fire_torpedo" and "drop_mine".
func ParseAction(s string) (Action, error) {
	switch s {
	case "", "none":
		return NoAction, nil
	case "fire_torpedo":
		return FireTorpedo, nil
	case "drop_mine":
		return DropMine, nil
	}
	return NoAction, fmt.Errorf("%w: %q", ErrInvalidAction, s)
}

// TurnInput is what a player submits for one turn.
type TurnInput struct {
	Thrust Vec    `json:"thrust"`
	Action Action `json:"action"`
}

func (in TurnInput) validate() error {
	if Abs(in.Thrust.Row) > 1 || Abs(in.Thrust.Col) > 1 {
		return ErrInvalidThrust
	}
	if in.Action > DropMine {
		return ErrInvalidAction
	}
	return nil
}

// resolveTurn moves the ship in seat, deploys its weapon and runs the termination
// checks. It returns Active when the match goes on. On error m is untouched.
func resolveTurn(m *Match, seat int, in TurnInput) (Status, error) {
	if err := in.validate(); err != nil {
		return m.Status, err
	}
	ship := &m.Ships[seat]
	switch {
	case in.Action == FireTorpedo && ship.Torpedoes == 0:
		return m.Status, ErrInsufficientTorpedoes
	case in.Action == DropMine && ship.Mines == 0:
		return m.Status, ErrInsufficientMines
	}

	from := ship.Pos
	ship.Vel = ship.Vel.Add(in.Thrust)
	ship.Pos = ship.Pos.Add(ship.Vel)

	switch in.Action {
	case DropMine:
		ship.Mines--
		ship.Minefield = append(ship.Minefield, Mine{Pos: from})
	case FireTorpedo:
		ship.Torpedoes--
		ship.Launched = append(ship.Launched, Torpedo{Pos: ship.Pos, Vel: ship.Vel, Fuel: m.Rules.TorpedoFuel})
	}
	return checkTermination(m, seat), nil
}

// checkTermination applies the first terminal cause for the ship that just moved:
// leaving the board, the asteroid, an enemy mine, then enemy torpedoes.
// Torpedoes are only advanced when the earlier checks passed.
func checkTermination(m *Match, seat int) Status {
	r := m.Rules
	ship := m.Ships[seat]
	enemy := &m.Ships[1-seat]

	if OffBoard(ship.Pos, r.QuadrantSize) {
		return fled(seat)
	}
	if InAsteroid(ship.Pos, r.AsteroidSize) {
		return destroyed(seat)
	}
	for _, mine := range enemy.Minefield {
		if ManhattanDistance(mine.Pos, ship.Pos) <= uint64(r.MineRange) {
			return destroyed(seat)
		}
	}
	for i := range enemy.Launched {
		t := &enemy.Launched[i]
		if !t.Live() {
			continue
		}
		t.Home(ship.Pos, r.TorpedoAcceleration)
		if InAsteroid(t.Pos, r.AsteroidSize) {
			t.Fuel = 0
			continue
		}
		if Within(t.Pos, ship.Pos, r.TorpedoRange) {
			t.Fuel = 0
			return destroyed(seat)
		}
	}
	return Active
}
