package netsync

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/annelo/driftsync/internal/drift"
	"github.com/annelo/driftsync/internal/transform"
)

// SetPosition teleports the entity to a local position. A real target also puts
// the entity into the world.
func (e *Entity) SetPosition(pos mgl64.Vec3, notify bool) {
	e.serverState.LocalPos = pos
	if pos != transform.InvalidPos && pos != (mgl64.Vec3{}) {
		e.serverState.Active = true
	}
	if notify {
		e.NotifyAll()
	}
}

// ForceDrop puts the entity at a world position and throws it in a random
// direction. Drift is only armed when the first tile in that direction is free;
// otherwise the entity stays where it was dropped.
func (e *Entity) ForceDrop(worldPos mgl64.Vec3) {
	e.serverState.Active = true
	e.serverState.SetWorldPosition(worldPos)

	impulse := e.randomDirection()
	goal := drift.NextCell(e.serverState.LocalPos, impulse)
	if drift.CanDriftTo(e.deps.Occupancy, goal) {
		e.serverState.Impulse = impulse
		e.serverState.Speed = e.randomSpeed()
		e.deps.Logger.Debugf("entity %s dropped at %v drifting towards %v", e.id, worldPos, goal)
	} else {
		e.deps.Logger.Debugf("entity %s dropped at %v, %v is blocked", e.id, worldPos, goal)
	}
	e.NotifyAll()
}

// Disappear removes the entity from the world.
func (e *Entity) Disappear() {
	e.serverState.Active = false
	e.serverState.LocalPos = transform.InvalidPos
	e.NotifyAll()
}

// AppearAt puts the entity into the world at a local position.
func (e *Entity) AppearAt(pos mgl64.Vec3) {
	e.serverState.Active = true
	e.SetPosition(pos, true)
}

// NotifyAll sends the authoritative state to every client.
// Broadcasting to every client is the default; SendTo is the directed variant.
func (e *Entity) NotifyAll() {
	if e.deps.Transport == nil {
		return
	}
	e.deps.Transport.SendToAll(e.nextUpdate())
}

// NotifyOne sends the authoritative state to a single client, typically one that
// just joined and has not seen any previous update.
func (e *Entity) NotifyOne(clientID string) {
	if e.deps.Transport == nil {
		return
	}
	e.deps.Transport.SendTo(clientID, e.nextUpdate())
}

func (e *Entity) nextUpdate() Update {
	e.seq++
	return Update{EntityID: e.id, Seq: e.seq, State: e.serverState}
}

// SimulateServerTick runs the authoritative drift check once. When drift hits an
// occupied tile the halted state is broadcast at once.
func (e *Entity) SimulateServerTick(dt float64) {
	if !e.serverState.Active {
		return
	}
	switch drift.Step(&e.serverState, e.deps.SpeedMultiplier, dt, e.deps.Occupancy) {
	case drift.OutcomeHalted:
		e.deps.Logger.Debugf("entity %s stopped drifting at %v", e.id, e.serverState.WorldPosition())
		e.NotifyAll()
	case drift.OutcomeUnchecked:
		if !e.warnedBlind {
			e.warnedBlind = true
			e.deps.Logger.Warnf("entity %s drifts without an occupancy grid, collisions are not checked", e.id)
		}
	}
}

func (e *Entity) randomDirection() mgl64.Vec2 {
	angle := e.random() * 2 * math.Pi
	return mgl64.Vec2{math.Cos(angle), math.Sin(angle)}
}

func (e *Entity) randomSpeed() float64 {
	lo, hi := e.deps.MinDropSpeed, e.deps.MaxDropSpeed
	return lo + e.random()*(hi-lo)
}

func (e *Entity) random() float64 {
	if e.deps.Rand == nil {
		return 0
	}
	return e.deps.Rand.Float64()
}
