package gameloop

import (
	"context"
	"errors"
	"time"
)

var errNoEntities = errors.New("no entity source")

// CommandSystem runs queued commands. Register it first so that control calls
// and late-join syncs see the state of the previous tick.
type CommandSystem struct {
	deps Dependencies
}

func NewCommandSystem() *CommandSystem { return &CommandSystem{} }

func (c *CommandSystem) Name() string { return "commands" }

func (c *CommandSystem) Init(deps Dependencies) error {
	if deps.Commands == nil {
		return errors.New("no command queue")
	}
	c.deps = deps
	return nil
}

func (c *CommandSystem) Tick(ctx context.Context, dt time.Duration) {
	if c.deps.Commands == nil {
		return
	}
	if n := c.deps.Commands.Drain(); n > 0 {
		c.deps.Logger.Debugf("[CommandSystem] ran %d commands", n)
	}
}

// DriftSystem advances the authoritative drift of every entity.
type DriftSystem struct {
	deps Dependencies
}

func NewDriftSystem() *DriftSystem { return &DriftSystem{} }

func (d *DriftSystem) Name() string { return "drift" }

func (d *DriftSystem) Init(deps Dependencies) error {
	if deps.Entities == nil {
		return errNoEntities
	}
	d.deps = deps
	return nil
}

func (d *DriftSystem) Tick(ctx context.Context, dt time.Duration) {
	if d.deps.Entities == nil {
		return
	}
	sec := dt.Seconds()
	for _, e := range d.deps.Entities.All() {
		e.SimulateServerTick(sec)
	}
}

// PredictionSystem advances the client-side prediction and smoothing of every
// replicated entity.
type PredictionSystem struct {
	deps Dependencies
}

func NewPredictionSystem() *PredictionSystem { return &PredictionSystem{} }

func (p *PredictionSystem) Name() string { return "prediction" }

func (p *PredictionSystem) Init(deps Dependencies) error {
	if deps.Entities == nil {
		return errNoEntities
	}
	p.deps = deps
	return nil
}

func (p *PredictionSystem) Tick(ctx context.Context, dt time.Duration) {
	if p.deps.Entities == nil {
		return
	}
	sec := dt.Seconds()
	for _, e := range p.deps.Entities.All() {
		e.SimulateClientTick(sec)
	}
}
