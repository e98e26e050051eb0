// Package drift advances floating transforms: inertial, frictionless motion that
// stops when it runs into an occupied tile.
package drift

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/annelo/driftsync/internal/transform"
)

// Occupancy answers whether a tile can be entered.
type Occupancy interface {
	IsFree(cell transform.Cell) bool
}

// Outcome reports what a server step did with the state.
type Outcome int

const (
	// OutcomeIdle: the state was not floating.
	OutcomeIdle Outcome = iota
	// OutcomeDrifted: the target tile was free and the position advanced.
	OutcomeDrifted
	// OutcomeHalted: the target tile was occupied and the impulse was cleared.
	OutcomeHalted
	// OutcomeUnchecked: no occupancy source, the position advanced without a check.
	OutcomeUnchecked
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIdle:
		return "idle"
	case OutcomeDrifted:
		return "drifted"
	case OutcomeHalted:
		return "halted"
	case OutcomeUnchecked:
		return "unchecked"
	}
	return "unknown"
}

// Displacement is the distance covered during dt: impulse*speed*multiplier*dt.
func Displacement(st transform.State, multiplier, dt float64) mgl64.Vec3 {
	return st.Impulse.Vec3(0).Mul(st.Speed * multiplier * dt)
}

// Predict advances a client side state. No collision checks are made; the client
// waits for the authoritative state to learn that drift stopped.
func Predict(st *transform.State, multiplier, dt float64) {
	st.LocalPos = st.LocalPos.Add(Displacement(*st, multiplier, dt))
}

// Step advances an authoritative state by one tick. The continuous position is
// committed as-is when the tile ahead is free; it is never snapped to the tile.
func Step(st *transform.State, multiplier, dt float64, occupancy Occupancy) Outcome {
	if !st.IsFloating() {
		return OutcomeIdle
	}
	next := st.LocalPos.Add(Displacement(*st, multiplier, dt))
	if occupancy == nil {
		st.LocalPos = next
		return OutcomeUnchecked
	}
	if occupancy.IsFree(transform.RoundWithContext(next, st.Impulse)) {
		st.LocalPos = next
		return OutcomeDrifted
	}
	// Speed is kept, it is inert without an impulse.
	st.Impulse = mgl64.Vec2{}
	return OutcomeHalted
}

// NextCell returns the tile one unit ahead of pos along impulse.
func NextCell(pos mgl64.Vec3, impulse mgl64.Vec2) transform.Cell {
	return transform.RoundWithContext(pos.Add(impulse.Vec3(0)), impulse)
}

// CanDriftTo reports whether cell is free. A missing occupancy source never allows it.
func CanDriftTo(occupancy Occupancy, cell transform.Cell) bool {
	return occupancy != nil && occupancy.IsFree(cell)
}
