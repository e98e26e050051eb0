package gameloop

import (
	"context"
	"time"
)

// StatusSystem периодически пишет в лог сводку по сущностям.
type StatusSystem struct {
	deps  Dependencies
	ticks int64
	every int64
}

const defaultStatusEvery = 600 // ~30 секунд при 20 TPS

// NewStatusSystem logs a summary every `every` ticks, 0 picks the default.
func NewStatusSystem(every int64) *StatusSystem {
	if every <= 0 {
		every = defaultStatusEvery
	}
	return &StatusSystem{every: every}
}

func (s *StatusSystem) Name() string { return "status" }

func (s *StatusSystem) Init(deps Dependencies) error {
	s.deps = deps
	return nil
}

func (s *StatusSystem) Tick(ctx context.Context, dt time.Duration) {
	s.ticks++
	if s.ticks%s.every != 0 || s.deps.Entities == nil {
		return
	}
	var active, floating int
	entities := s.deps.Entities.All()
	for _, e := range entities {
		st := e.State()
		if st.Active {
			active++
		}
		if st.IsFloating() {
			floating++
		}
	}
	s.deps.Logger.Infow("[StatusSystem] tick", "tick", s.ticks, "entities", len(entities), "active", active, "floating", floating)
}
