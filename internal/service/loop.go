package service

import (
	"context"
)

// Start runs the simulation loop until ctx is cancelled or Stop is called.
func (s *SyncService) Start(ctx context.Context) {
	s.logger.Infof("Starting simulation at %v per tick", s.loop.TickDuration())
	go func() {
		s.loop.Run(ctx)
		s.commands.Close()
	}()
}
