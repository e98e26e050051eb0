package gameloop

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrQueueFull is returned by Post when the loop falls behind.
	ErrQueueFull = errors.New("command queue is full")
	// ErrStopped is returned once the queue has been closed.
	ErrStopped = errors.New("command queue is stopped")
)

// CommandQueue hands work from other goroutines (RPC handlers, subscribers) to
// the loop goroutine.
type CommandQueue struct {
	ch     chan func()
	closed chan struct{}
	once   sync.Once
}

// NewCommandQueue creates a queue holding at most size pending commands.
func NewCommandQueue(size int) *CommandQueue {
	return &CommandQueue{
		ch:     make(chan func(), size),
		closed: make(chan struct{}),
	}
}

// Post enqueues fn without waiting for it to run.
func (q *CommandQueue) Post(fn func()) error {
	select {
	case <-q.closed:
		return ErrStopped
	default:
	}
	select {
	case q.ch <- fn:
		return nil
	default:
		return ErrQueueFull
	}
}

// Do enqueues fn and waits until the loop has run it. When ctx ends first, fn
// may still run later and its results must be ignored.
func (q *CommandQueue) Do(ctx context.Context, fn func()) error {
	select {
	case <-q.closed:
		return ErrStopped
	default:
	}
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}
	select {
	case q.ch <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closed:
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closed:
	}
	// the loop may have run fn just before the queue closed
	select {
	case <-done:
		return nil
	default:
		return ErrStopped
	}
}

// Drain runs every pending command and returns how many ran.
func (q *CommandQueue) Drain() int {
	n := 0
	for {
		select {
		case fn := <-q.ch:
			fn()
			n++
		default:
			return n
		}
	}
}

// Len returns the number of pending commands.
func (q *CommandQueue) Len() int { return len(q.ch) }

// Close rejects further commands and releases waiters.
func (q *CommandQueue) Close() {
	q.once.Do(func() { close(q.closed) })
}
