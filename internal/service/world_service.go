package service

import (
	"expvar"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/annelo/driftsync/internal/arena"
	"github.com/annelo/driftsync/internal/config"
	"github.com/annelo/driftsync/internal/entitymanager"
	"github.com/annelo/driftsync/internal/gameloop"
	"github.com/annelo/driftsync/internal/netsync"
	"github.com/annelo/driftsync/internal/protocol"
	"github.com/annelo/driftsync/internal/registry"
	"github.com/annelo/driftsync/internal/transform"
)

// SyncService is the authoritative side of the drift sync. It owns the arena and
// every entity, runs the simulation loop and streams state to subscribers.
type SyncService struct {
	logger   *zap.SugaredLogger
	cfg      config.Config
	seed     int64
	rnd      *rand.Rand
	registry *registry.Registry

	grid     *arena.Grid
	clear    []transform.Cell
	entities *entitymanager.EntityManager
	spawns   map[string]mgl64.Vec3

	commands *gameloop.CommandQueue
	loop     *gameloop.Loop

	// Мьютекс для синхронизации доступа к подписчикам
	mu            sync.RWMutex
	clientStreams map[string]*clientConn
	stopped       bool
}

// Option customizes a SyncService.
type Option func(*SyncService)

// WithLogger sets the logger, the default discards everything.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *SyncService) { s.logger = l }
}

// WithRand sets the random source used for drop directions and speeds.
func WithRand(r *rand.Rand) Option {
	return func(s *SyncService) { s.rnd = r }
}

const commandQueueSize = 256

// NewSyncService builds the arena and the configured entities. The core game
// systems tick before the systems registered in reg.
func NewSyncService(cfg config.Config, reg *registry.Registry, opts ...Option) (*SyncService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if reg == nil {
		reg = registry.New()
	}
	s := &SyncService{
		logger:        zap.NewNop().Sugar(),
		cfg:           cfg,
		seed:          cfg.World.Seed,
		registry:      reg,
		entities:      entitymanager.NewEntityManager(),
		spawns:        make(map[string]mgl64.Vec3),
		commands:      gameloop.NewCommandQueue(commandQueueSize),
		clientStreams: make(map[string]*clientConn),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.seed == 0 {
		s.seed = time.Now().UnixNano()
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewSource(s.seed))
	}

	for _, ec := range cfg.Entities {
		spawn := mgl64.Vec3{ec.X, ec.Y, 0}
		if spawn != (mgl64.Vec3{}) {
			s.clear = append(s.clear, transform.RoundToCell(spawn))
		}
	}
	s.grid = arena.Generate(s.generateParams())

	deps := netsync.Dependencies{
		Occupancy:       s.grid,
		Transport:       s,
		Rand:            s.rnd,
		Logger:          s.logger,
		SpeedMultiplier: cfg.Sync.SpeedMultiplier,
		MinDropSpeed:    cfg.Sync.MinDropSpeed,
		MaxDropSpeed:    cfg.Sync.MaxDropSpeed,
	}
	for _, ec := range cfg.Entities {
		spawn := mgl64.Vec3{ec.X, ec.Y, 0}
		if err := s.entities.Add(netsync.NewEntity(ec.ID, spawn, deps)); err != nil {
			return nil, fmt.Errorf("add entity %s: %w", ec.ID, err)
		}
		s.spawns[ec.ID] = spawn
	}

	// Регистрируем core-системы: команды выполняются до симуляции
	core := []gameloop.System{
		gameloop.NewCommandSystem(),
		gameloop.NewDriftSystem(),
		gameloop.NewStatusSystem(0),
	}
	extra := reg.GameSystems()
	systems := append(core, extra...)
	s.loop = gameloop.NewLoop(cfg.TickDuration(), gameloop.Dependencies{
		Entities: s.entities,
		Commands: s.commands,
		Logger:   s.logger,
	}, systems...)

	s.logger.Infof("arena %dx%d generated from seed %d, %d solid tiles, %d entities",
		s.grid.Width(), s.grid.Height(), s.seed, s.grid.SolidCount(), s.entities.Len())
	return s, nil
}

func (s *SyncService) generateParams() arena.GenerateParams {
	return arena.GenerateParams{
		Seed:      s.seed,
		Width:     s.cfg.World.Width,
		Height:    s.cfg.World.Height,
		Threshold: s.cfg.World.Threshold,
		Scale:     s.cfg.World.Scale,
		Clear:     s.clear,
	}
}

// Seed returns the seed the arena was generated from.
func (s *SyncService) Seed() int64 { return s.seed }

// Grid returns the authoritative arena.
func (s *SyncService) Grid() *arena.Grid { return s.grid }

// Loop returns the simulation loop, e.g. to step it by hand in tests.
func (s *SyncService) Loop() *gameloop.Loop { return s.loop }

// SubscriberCount returns the number of connected subscribers.
func (s *SyncService) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clientStreams)
}

func (s *SyncService) worldInfo(clientID string) *protocol.WorldInfo {
	info := &protocol.WorldInfo{
		ClientID:        clientID,
		Seed:            s.seed,
		Width:           int32(s.cfg.World.Width),
		Height:          int32(s.cfg.World.Height),
		Threshold:       s.cfg.World.Threshold,
		Scale:           s.cfg.World.Scale,
		SpeedMultiplier: s.cfg.Sync.SpeedMultiplier,
		TickRate:        int32(s.cfg.Server.TickRate),
	}
	for _, c := range s.clear {
		info.Clear = append(info.Clear, protocol.NewCellRef(c))
	}
	return info
}

func init() {
	// Инициализируем expvar-счётчики, если приложение запускается без server/main (например, в тестах)
	ensureCounter := func(name string) {
		if expvar.Get(name) == nil {
			expvar.NewInt(name)
		}
	}
	ensureCounter(metricSubscribers)
	ensureCounter(metricUpdatesSent)
	ensureCounter(metricUpdatesDropped)
	ensureCounter(metricSubscribersEvicted)
}

const (
	metricSubscribers    = "subscribers_connected"
	metricUpdatesSent    = "transform_updates_sent"
	metricUpdatesDropped = "transform_updates_dropped"

	metricSubscribersEvicted = "subscribers_evicted"
)

func counter(name string) *expvar.Int {
	return expvar.Get(name).(*expvar.Int)
}
