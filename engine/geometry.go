package engine

// Vec is an integer board coordinate or velocity. The board origin holds the asteroid.
type Vec struct {
	Row int64 `json:"row"`
	Col int64 `json:"col"`
}

// Origin is the board center.
var Origin = Vec{}

func (v Vec) Add(o Vec) Vec {
	return Vec{Row: v.Row + o.Row, Col: v.Col + o.Col}
}

func (v Vec) Sub(o Vec) Vec {
	return Vec{Row: v.Row - o.Row, Col: v.Col - o.Col}
}

// Abs returns the absolute value of x.
func Abs(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

// ManhattanDistance returns |a.row-b.row| + |a.col-b.col|.
func ManhattanDistance(a, b Vec) uint64 {
	return uint64(Abs(a.Row-b.Row)) + uint64(Abs(a.Col-b.Col))
}

// InAsteroid reports whether p lies inside the asteroid radius around the origin.
func InAsteroid(p Vec, size int64) bool {
	return ManhattanDistance(p, Origin) <= uint64(size)
}

// OffBoard reports whether p has left the playable quadrant.
func OffBoard(p Vec, quadrant int64) bool {
	return Abs(p.Row) > quadrant || Abs(p.Col) > quadrant
}

// Within reports whether a and b are at most r apart on both axes.
func Within(a, b Vec, r int64) bool {
	d := a.Sub(b)
	return Abs(d.Row) <= r && Abs(d.Col) <= r
}

// homeAxis steers one velocity component toward the target coordinate.
// The result never carries the torpedo past the target on that axis.
func homeAxis(pos, vel, target, accel int64) int64 {
	switch {
	case target > pos:
		vel += accel
	case target < pos:
		vel -= accel
	}
	gap := Abs(target - pos)
	if vel > gap {
		return gap
	}
	if vel < -gap {
		return -gap
	}
	return vel
}

// Home advances the torpedo one step toward target and burns one unit of fuel.
func (t *Torpedo) Home(target Vec, accel int64) {
	t.Vel = Vec{
		Row: homeAxis(t.Pos.Row, t.Vel.Row, target.Row, accel),
		Col: homeAxis(t.Pos.Col, t.Vel.Col, target.Col, accel),
	}
	t.Pos = t.Pos.Add(t.Vel)
	if t.Fuel > 0 {
		t.Fuel--
	}
}

// Live reports whether the torpedo still has fuel.
func (t Torpedo) Live() bool { return t.Fuel > 0 }
