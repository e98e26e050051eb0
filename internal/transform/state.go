// Package transform holds the synchronized position state of an entity and the
// mapping between local grid space and world space.
package transform

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// State is the synchronized transform of one entity. It is a value type: the
// server and every client own independent copies.
type State struct {
	Active bool
	// Speed is the drift magnitude in units per second.
	Speed float64
	// Impulse is the drift direction, zero when the entity is not drifting.
	Impulse mgl64.Vec2
	// LocalPos is InvalidPos while the entity is inactive.
	LocalPos mgl64.Vec3
}

// Hidden returns the state used for entities that are not in the world.
func Hidden() State {
	return State{Active: false, LocalPos: InvalidPos}
}

// Initial derives the spawn state from an entity's initial local transform.
// A zero transform means the entity spawns hidden (e.g. carried equipment).
func Initial(spawn mgl64.Vec3, speedMultiplier float64) State {
	if spawn == (mgl64.Vec3{}) {
		st := Hidden()
		st.Speed = speedMultiplier
		return st
	}
	return State{
		Active:   true,
		Speed:    speedMultiplier,
		LocalPos: RoundToCell(mgl64.Vec3{spawn[0], spawn[1], 0}).Vec3(),
	}
}

// IsFloating reports whether the state is drifting.
func (s State) IsFloating() bool {
	return s.Impulse != (mgl64.Vec2{}) && s.Speed != 0
}

// WorldPosition returns the position in world space. The sentinel is returned verbatim.
func (s State) WorldPosition() mgl64.Vec3 {
	if s.LocalPos == InvalidPos {
		return s.LocalPos
	}
	return ToWorld(s.LocalPos)
}

// SetWorldPosition stores a world space position. The sentinel is stored verbatim.
func (s *State) SetWorldPosition(p mgl64.Vec3) {
	if p == InvalidPos {
		s.LocalPos = p
		return
	}
	s.LocalPos = ToLocal(p)
}

func (s State) String() string {
	return fmt.Sprintf("active=%t speed=%.2f impulse=(%.2f,%.2f) local=(%.2f,%.2f,%.2f)",
		s.Active, s.Speed, s.Impulse[0], s.Impulse[1], s.LocalPos[0], s.LocalPos[1], s.LocalPos[2])
}
