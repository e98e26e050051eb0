package netsync

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/annelo/driftsync/internal/drift"
	"github.com/annelo/driftsync/internal/transform"
)

// ApplyServerState reconciles an authoritative update with the local prediction.
// Updates that are not newer than the last applied one are discarded. The first
// applied update always snaps the rendered position, since the spawn point may be
// long out of date for a late joiner. The
// predicted state is replaced wholesale. It returns whether the update was applied.
func (e *Entity) ApplyServerState(u Update) bool {
	if u.Seq <= e.lastApplied {
		e.deps.Logger.Debugf("entity %s: discarding update %d, already at %d", e.id, u.Seq, e.lastApplied)
		return false
	}
	// No smoothing for the first update, when visibility flips or the entity came to rest.
	if e.lastApplied == 0 || e.clientState.Active != u.State.Active || u.State.Speed == 0 {
		e.rendered = u.State.LocalPos
	}
	e.clientState = u.State
	e.lastApplied = u.Seq

	e.SyncActiveStatus()
	return true
}

// SimulateClientTick advances the prediction and moves the rendered position
// towards it without overshooting.
func (e *Entity) SimulateClientTick(dt float64) {
	if !e.clientState.Active {
		return
	}
	if e.clientState.IsFloating() {
		drift.Predict(&e.clientState, e.deps.SpeedMultiplier, dt)
	}
	if e.clientState.LocalPos != e.rendered {
		e.rendered = MoveToward(e.rendered, e.clientState.LocalPos, e.clientState.Speed*e.deps.SpeedMultiplier*dt)
	}
	if cell, ok := e.registeredCell(); !ok || cell != e.predictedCell() {
		e.register()
	}
}

// PredictDisappear hides the entity locally before the server confirms it.
func (e *Entity) PredictDisappear() {
	e.clientState.Active = false
	e.clientState.SetWorldPosition(transform.InvalidPos)
	e.SyncActiveStatus()
}

// PredictAppearAt shows the entity locally at a world position before the server
// confirms it.
func (e *Entity) PredictAppearAt(worldPos mgl64.Vec3) {
	e.clientState.Active = true
	e.clientState.SetWorldPosition(worldPos)
	e.rendered = transform.ToLocal(worldPos)
	e.SyncActiveStatus()
}

// SyncActiveStatus applies the world side effects of the predicted active flag:
// registration and visibility.
func (e *Entity) SyncActiveStatus() {
	if e.clientState.Active {
		e.register()
	} else if e.deps.Registrar != nil {
		e.deps.Registrar.Unregister(e.id)
	}
	if e.deps.Visibility != nil {
		e.deps.Visibility.SetVisible(e.id, e.clientState.Active)
	}
}

func (e *Entity) predictedCell() transform.Cell {
	return transform.RoundToCell(e.clientState.LocalPos)
}

func (e *Entity) register() {
	if e.deps.Registrar != nil {
		e.deps.Registrar.Register(e.id, e.predictedCell())
	}
}

func (e *Entity) registeredCell() (transform.Cell, bool) {
	if e.deps.Registrar == nil {
		return transform.Cell{}, true
	}
	return e.deps.Registrar.RegisteredCell(e.id)
}

// MoveToward moves current towards target by at most maxDelta.
func MoveToward(current, target mgl64.Vec3, maxDelta float64) mgl64.Vec3 {
	diff := target.Sub(current)
	dist := diff.Len()
	if dist == 0 || dist <= maxDelta {
		return target
	}
	if maxDelta <= 0 {
		return current
	}
	return current.Add(diff.Mul(maxDelta / dist))
}
