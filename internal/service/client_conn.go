package service

import (
	"sync"

	"github.com/annelo/driftsync/internal/protocol"
)

// clientConn is one subscriber. Events are delivered in the order they were
// queued. A subscriber whose queue fills up is marked lagged and gets nothing
// more: its stream ends and the client resubscribes for a full resync.
type clientConn struct {
	id    string
	name  string
	queue chan *protocol.ServerEvent

	lagged  chan struct{}
	lagOnce sync.Once
}

func newClientConn(id, name string, size int) *clientConn {
	return &clientConn{
		id:     id,
		name:   name,
		queue:  make(chan *protocol.ServerEvent, size),
		lagged: make(chan struct{}),
	}
}

// send enqueues a message without blocking and reports whether it was queued.
// Callers hold the service read lock, which keeps the queue open.
func (c *clientConn) send(msg *protocol.ServerEvent) bool {
	select {
	case <-c.lagged:
		return false
	default:
	}
	select {
	case c.queue <- msg:
		return true
	default:
		c.lagOnce.Do(func() { close(c.lagged) })
		return false
	}
}

