package gameloop

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/annelo/driftsync/internal/netsync"
)

// System описывает логику, выполняемую каждый тик цикла.
type System interface {
	// Init вызывается один раз перед запуском цикла.
	Init(deps Dependencies) error
	// Tick вызывается каждый игровой тик.
	Tick(ctx context.Context, dt time.Duration)
	// Name возвращает читаемое имя системы.
	Name() string
}

// EntitySource lists the entities simulated by this process.
type EntitySource interface {
	All() []*netsync.Entity
}

// Dependencies передаются системам при инициализации.
type Dependencies struct {
	Entities EntitySource
	// Commands are executed on the loop goroutine before any simulation.
	Commands *CommandQueue
	Logger   *zap.SugaredLogger
}
