package service

import (
	"github.com/annelo/driftsync/internal/netsync"
	"github.com/annelo/driftsync/internal/protocol"
)

// SendToAll implements netsync.Transport. It is called on the loop goroutine.
func (s *SyncService) SendToAll(u netsync.Update) {
	s.broadcastToAll(&protocol.ServerEvent{Update: protocol.NewTransformUpdate(u)})
}

// SendTo implements netsync.Transport for a single subscriber.
func (s *SyncService) SendTo(clientID string, u netsync.Update) {
	s.sendMessageToClient(clientID, &protocol.ServerEvent{Update: protocol.NewTransformUpdate(u)})
}

// broadcastToAll sends a message to all connected clients.
func (s *SyncService) broadcastToAll(msg *protocol.ServerEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, conn := range s.clientStreams {
		s.deliver(conn, msg)
	}
}

// sendMessageToClient sends a message to a specific client, if still connected.
func (s *SyncService) sendMessageToClient(clientID string, msg *protocol.ServerEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conn, exists := s.clientStreams[clientID]
	if !exists {
		return
	}
	s.deliver(conn, msg)
}

func (s *SyncService) deliver(conn *clientConn, msg *protocol.ServerEvent) {
	if conn.send(msg) {
		if msg.Update != nil {
			counter(metricUpdatesSent).Add(1)
		}
		return
	}
	if msg.Update != nil {
		counter(metricUpdatesDropped).Add(1)
	}
	s.logger.Debugf("client %s is lagged, event not queued", conn.id)
}
