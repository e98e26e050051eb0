package service

import (
	"github.com/annelo/driftsync/internal/protocol"
)

const shutdownReason = "Server is shutting down"

// Stop disconnects every subscriber with a shutdown event and rejects further
// subscriptions and control calls. The loop itself stops with its context.
func (s *SyncService) Stop() {
	s.DisconnectAllClients()
	s.commands.Close()
}

// DisconnectAllClients sends the shutdown event and closes all queues. Events
// already queued are still delivered before the shutdown event.
func (s *SyncService) DisconnectAllClients() {
	s.logger.Info("Disconnecting all clients...")

	shutdownMsg := &protocol.ServerEvent{Shutdown: shutdownReason}

	s.mu.Lock()
	s.stopped = true
	count := len(s.clientStreams)
	for _, conn := range s.clientStreams {
		if !conn.send(shutdownMsg) {
			s.logger.Warnf("queue of client %s is full, closing without shutdown event", conn.id)
		}
		close(conn.queue)
	}
	s.clientStreams = make(map[string]*clientConn)
	s.mu.Unlock()

	s.logger.Infof("Disconnected %d clients", count)
}

func (s *SyncService) removeClient(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clientStreams[clientID]; ok {
		close(c.queue)
		delete(s.clientStreams, clientID)
	}
}
