package gameloop

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Loop: главный цикл, вызывающий Tick всех зарегистрированных систем.
// Все системы работают в одной горутине, поэтому сущности не требуют блокировок.
type Loop struct {
	systems []System
	tickDur time.Duration
	logger  *zap.SugaredLogger
	ticks   uint64
}

// NewLoop создаёт цикл с заданной длительностью тика.
func NewLoop(tick time.Duration, deps Dependencies, systems ...System) *Loop {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop().Sugar()
	}
	// Инициализируем все системы
	for _, s := range systems {
		if err := s.Init(deps); err != nil {
			deps.Logger.Errorf("[GameLoop] init %s error: %v", s.Name(), err)
		}
	}
	return &Loop{systems: systems, tickDur: tick, logger: deps.Logger}
}

// TickDuration returns the nominal tick length.
func (l *Loop) TickDuration() time.Duration { return l.tickDur }

// Ticks returns the number of completed ticks.
func (l *Loop) Ticks() uint64 { return l.ticks }

// Run запускает бесконечный цикл до отмены ctx.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.tickDur)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case t := <-ticker.C:
			dt := t.Sub(last)
			last = t
			l.Step(ctx, dt)
		case <-ctx.Done():
			l.logger.Info("[GameLoop] stopped")
			return
		}
	}
}

// Step runs every system once with the given elapsed time. Run calls it on
// every tick; tests call it directly for deterministic time.
func (l *Loop) Step(ctx context.Context, dt time.Duration) {
	for _, s := range l.systems {
		func(sys System) {
			defer func() {
				if r := recover(); r != nil {
					l.logger.Errorf("[GameLoop] panic in %s: %v", sys.Name(), r)
				}
			}()
			sys.Tick(ctx, dt)
		}(s)
	}
	l.ticks++
}
