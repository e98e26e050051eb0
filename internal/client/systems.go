package client

import (
	"context"
	"time"

	"github.com/annelo/driftsync/internal/gameloop"
	"github.com/annelo/driftsync/internal/protocol"
)

// ReceiveSystem applies the events received since the last tick. Register it
// before the prediction system so fresh server state is predicted from at once.
type ReceiveSystem struct {
	events  <-chan *protocol.ServerEvent
	replica *Replica
	closed  bool
}

func NewReceiveSystem(events <-chan *protocol.ServerEvent, replica *Replica) *ReceiveSystem {
	return &ReceiveSystem{events: events, replica: replica}
}

func (r *ReceiveSystem) Name() string { return "receive" }

func (r *ReceiveSystem) Init(gameloop.Dependencies) error { return nil }

func (r *ReceiveSystem) Tick(ctx context.Context, dt time.Duration) {
	for {
		select {
		case ev, ok := <-r.events:
			if !ok {
				r.events = nil
				r.closed = true
				return
			}
			r.replica.Apply(ev)
		default:
			return
		}
	}
}

// Closed reports whether the event stream has ended.
func (r *ReceiveSystem) Closed() bool { return r.closed }

// NewLoop builds the client loop: posted commands, receive, then predict, then
// the extra systems (usually a renderer).
func NewLoop(tick time.Duration, events <-chan *protocol.ServerEvent, replica *Replica, extra ...gameloop.System) (*gameloop.Loop, *ReceiveSystem) {
	recv := NewReceiveSystem(events, replica)
	systems := append([]gameloop.System{gameloop.NewCommandSystem(), recv, gameloop.NewPredictionSystem()}, extra...)
	loop := gameloop.NewLoop(tick, gameloop.Dependencies{
		Entities: replica.Entities(),
		Commands: replica.commands,
		Logger:   replica.logger,
	}, systems...)
	return loop, recv
}
