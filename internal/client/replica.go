package client

import (
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/annelo/driftsync/internal/arena"
	"github.com/annelo/driftsync/internal/entitymanager"
	"github.com/annelo/driftsync/internal/gameloop"
	"github.com/annelo/driftsync/internal/netsync"
	"github.com/annelo/driftsync/internal/protocol"
	"github.com/annelo/driftsync/internal/transform"
)

// Stats counts what happened to received events.
type Stats struct {
	Applied   uint64
	Discarded uint64 // stale sequence numbers
	Ignored   uint64 // updates for entities the replica does not know
}

// View is what a renderer needs to draw one entity.
type View struct {
	ID       string
	Visible  bool
	Floating bool
	// Position is the smoothed world position.
	Position mgl64.Vec3
	Cell     transform.Cell
	// Stacked is the number of visible entities registered in Cell.
	Stacked int
}

const predictionQueue = 64

// Replica is the client-side world: the arena rebuilt from its seed, the
// registration space and one predicted entity per server entity. It is not safe
// for concurrent use; drive Apply and the prediction from one loop. Other
// goroutines hand work to that loop with Post.
type Replica struct {
	logger   *zap.SugaredLogger
	info     *protocol.WorldInfo
	grid     *arena.Grid
	space    *arena.Space
	entities *entitymanager.EntityManager
	visible  map[string]bool
	stats    Stats
	shutdown string
	commands *gameloop.CommandQueue
}

func NewReplica(logger *zap.SugaredLogger) *Replica {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Replica{
		logger:   logger,
		entities: entitymanager.NewEntityManager(),
		visible:  make(map[string]bool),
		commands: gameloop.NewCommandQueue(predictionQueue),
	}
}

// Post queues fn to run on the loop goroutine before the next receive.
func (r *Replica) Post(fn func(*Replica)) error {
	return r.commands.Post(func() { fn(r) })
}

// PredictDisappear hides an entity before the server confirms it.
func (r *Replica) PredictDisappear(id string) error {
	e, err := r.entities.Get(id)
	if err != nil {
		return err
	}
	e.PredictDisappear()
	return nil
}

// PredictAppear shows an entity at a world position before the server
// confirms it.
func (r *Replica) PredictAppear(id string, world mgl64.Vec3) error {
	e, err := r.entities.Get(id)
	if err != nil {
		return err
	}
	e.PredictAppearAt(world)
	return nil
}

// Apply handles one server event.
func (r *Replica) Apply(ev *protocol.ServerEvent) {
	switch {
	case ev.WorldInfo != nil:
		r.reset(ev.WorldInfo)
	case ev.Spawn != nil:
		r.spawn(ev.Spawn)
	case ev.Despawn != nil:
		r.despawn(ev.Despawn.EntityID)
	case ev.Update != nil:
		r.update(ev.Update)
	case ev.Shutdown != "":
		r.shutdown = ev.Shutdown
		r.logger.Infof("server shut down: %s", ev.Shutdown)
	}
}

// reset starts a new subscription: everything known so far is dropped.
func (r *Replica) reset(info *protocol.WorldInfo) {
	for _, e := range r.entities.All() {
		r.despawn(e.ID())
	}
	r.info = info
	params := arena.GenerateParams{
		Seed:      info.Seed,
		Width:     int(info.Width),
		Height:    int(info.Height),
		Threshold: info.Threshold,
		Scale:     info.Scale,
	}
	for _, c := range info.Clear {
		params.Clear = append(params.Clear, c.Cell())
	}
	r.grid = arena.Generate(params)
	r.space = arena.NewSpace(params.Width, params.Height)
	r.shutdown = ""
	r.logger.Infof("joined as %s, arena %dx%d seed %d", info.ClientID, info.Width, info.Height, info.Seed)
}

func (r *Replica) spawn(s *protocol.EntitySpawn) {
	if r.space == nil {
		r.logger.Warnf("spawn of %s before world info, ignored", s.EntityID)
		return
	}
	e := netsync.NewEntity(s.EntityID, s.Spawn(), netsync.Dependencies{
		Registrar:       r.space,
		Visibility:      r,
		Logger:          r.logger,
		SpeedMultiplier: r.info.SpeedMultiplier,
	})
	if err := r.entities.Add(e); err != nil {
		r.logger.Debugf("spawn %s: %v", s.EntityID, err)
		return
	}
	e.SyncActiveStatus()
}

func (r *Replica) despawn(id string) {
	if err := r.entities.Remove(id); err != nil {
		r.logger.Debugf("despawn %s: %v", id, err)
		return
	}
	if r.space != nil {
		r.space.Unregister(id)
	}
	delete(r.visible, id)
}

func (r *Replica) update(m *protocol.TransformUpdate) {
	e, err := r.entities.Get(m.EntityID)
	if err != nil {
		r.stats.Ignored++
		r.logger.Debugf("update for unknown entity %s ignored", m.EntityID)
		return
	}
	if e.ApplyServerState(m.Update()) {
		r.stats.Applied++
	} else {
		r.stats.Discarded++
	}
}

// SetVisible implements netsync.Visibility.
func (r *Replica) SetVisible(entityID string, visible bool) {
	r.visible[entityID] = visible
}

// Entities is the source for the prediction system.
func (r *Replica) Entities() *entitymanager.EntityManager { return r.entities }

// Entity returns the replicated entity with the given id.
func (r *Replica) Entity(id string) (*netsync.Entity, error) { return r.entities.Get(id) }

// Grid returns the rebuilt arena, nil before the world info arrived.
func (r *Replica) Grid() *arena.Grid { return r.grid }

// Space returns the registration space, nil before the world info arrived.
func (r *Replica) Space() *arena.Space { return r.space }

// Info returns the world info of the current subscription.
func (r *Replica) Info() *protocol.WorldInfo { return r.info }

func (r *Replica) Stats() Stats { return r.stats }

// ShutdownReason is set once the server announced it is going away.
func (r *Replica) ShutdownReason() string { return r.shutdown }

// Views returns every entity ordered by id.
func (r *Replica) Views() []View {
	all := r.entities.All()
	views := make([]View, 0, len(all))
	for _, e := range all {
		rendered := e.RenderedPosition()
		views = append(views, View{
			ID:       e.ID(),
			Visible:  r.visible[e.ID()],
			Floating: e.ClientState().IsFloating(),
			Position: transform.ToWorld(rendered),
			Cell:     transform.RoundToCell(rendered),
		})
		if r.visible[e.ID()] && r.space != nil {
			if cell, ok := r.space.RegisteredCell(e.ID()); ok {
				views[len(views)-1].Stacked = len(r.space.Occupants(cell))
			}
		}
	}
	return views
}
