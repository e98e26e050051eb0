// Package netsync binds a synchronized entity to its authoritative and predicted
// transform states. The server mutates the authoritative state and broadcasts it;
// clients predict drift locally and reconcile every state they receive.
package netsync

import (
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/annelo/driftsync/internal/drift"
	"github.com/annelo/driftsync/internal/transform"
)

const (
	DefaultMinDropSpeed = 0.5
	DefaultMaxDropSpeed = 3.0
)

// Update is the payload sent from the server to clients: the full authoritative
// state of one entity. Seq grows by one for every update the entity produces.
type Update struct {
	EntityID string
	Seq      uint64
	State    transform.State
}

// Transport delivers updates to clients, in order per client.
type Transport interface {
	SendToAll(u Update)
	SendTo(clientID string, u Update)
}

// Registrar tracks which tile an entity occupies in the world.
// Register and Unregister are idempotent.
type Registrar interface {
	Register(entityID string, cell transform.Cell)
	Unregister(entityID string)
	RegisteredCell(entityID string) (transform.Cell, bool)
}

// Visibility toggles the visual representation of an entity.
type Visibility interface {
	SetVisible(entityID string, visible bool)
}

// Dependencies are resolved once when the entity is created. A server entity
// needs Occupancy, Transport and Rand; a client entity needs Registrar and
// Visibility. Missing collaborators turn the matching side effects into no-ops.
type Dependencies struct {
	Occupancy  drift.Occupancy
	Transport  Transport
	Registrar  Registrar
	Visibility Visibility
	Rand       *rand.Rand
	Logger     *zap.SugaredLogger

	// SpeedMultiplier scales drift and smoothing rates, e.g. by weight.
	SpeedMultiplier float64
	MinDropSpeed    float64
	MaxDropSpeed    float64
}

func (d *Dependencies) setDefaults() {
	if d.Logger == nil {
		d.Logger = zap.NewNop().Sugar()
	}
	if d.SpeedMultiplier == 0 {
		d.SpeedMultiplier = 1
	}
	if d.MinDropSpeed == 0 && d.MaxDropSpeed == 0 {
		d.MinDropSpeed = DefaultMinDropSpeed
		d.MaxDropSpeed = DefaultMaxDropSpeed
	}
}

// Entity holds both transform states of one synchronized entity. Only the
// simulation goroutine of the owning process may call its methods.
type Entity struct {
	id   string
	deps Dependencies

	// authoritative side
	serverState transform.State
	seq         uint64
	warnedBlind bool

	// predicted side
	clientState transform.State
	rendered    mgl64.Vec3
	lastApplied uint64
}

// NewEntity creates an entity from its initial local transform. Both states start
// from the spawn-derived state and the rendered position starts at its local position.
func NewEntity(id string, spawn mgl64.Vec3, deps Dependencies) *Entity {
	deps.setDefaults()
	initial := transform.Initial(spawn, deps.SpeedMultiplier)
	return &Entity{
		id:          id,
		deps:        deps,
		serverState: initial,
		clientState: initial,
		rendered:    initial.LocalPos,
	}
}

// ID returns the entity identifier used on the wire.
func (e *Entity) ID() string { return e.id }

// State returns a copy of the authoritative state.
func (e *Entity) State() transform.State { return e.serverState }

// Seq returns the sequence number of the last produced update.
func (e *Entity) Seq() uint64 { return e.seq }

// ClientState returns a copy of the predicted state.
func (e *Entity) ClientState() transform.State { return e.clientState }

// RenderedPosition returns the smoothed local position shown to the player.
func (e *Entity) RenderedPosition() mgl64.Vec3 { return e.rendered }

// LastAppliedSeq returns the sequence number of the last reconciled update.
func (e *Entity) LastAppliedSeq() uint64 { return e.lastApplied }

// SpeedMultiplier returns the multiplier this entity drifts with.
func (e *Entity) SpeedMultiplier() float64 { return e.deps.SpeedMultiplier }
