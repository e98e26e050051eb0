// Package client connects to a sync server and keeps a predicted replica of its
// entities.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/annelo/driftsync/internal/protocol"
)

const eventBuffer = 1024

// Client owns the gRPC connection, the event subscription and the control calls.
type Client struct {
	logger *zap.SugaredLogger
	conn   *grpc.ClientConn
	api    *protocol.SyncClient
	name   string

	events chan *protocol.ServerEvent
	mu     sync.Mutex
	err    error
}

// Dial connects to addr without transport security.
func Dial(addr, name string, logger *zap.SugaredLogger, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", addr, err)
	}
	c := New(conn, name, logger)
	c.conn = conn
	return c, nil
}

// New wraps an existing connection, which the caller keeps ownership of.
func New(cc grpc.ClientConnInterface, name string, logger *zap.SugaredLogger) *Client {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Client{
		logger: logger,
		api:    protocol.NewSyncClient(cc),
		name:   name,
		events: make(chan *protocol.ServerEvent, eventBuffer),
	}
}

// Subscribe opens the event stream and forwards events to Events until the
// stream ends or ctx is cancelled. A subscriber the server evicted for falling
// behind subscribes again; the new WorldInfo resets the replica.
func (c *Client) Subscribe(ctx context.Context) error {
	stream, err := c.api.Subscribe(ctx, &protocol.SubscribeRequest{ClientName: c.name})
	if err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	go c.receive(ctx, stream)
	return nil
}

func (c *Client) receive(ctx context.Context, stream *protocol.EventStream) {
	defer close(c.events)
	for {
		ev, err := stream.Recv()
		if status.Code(err) == codes.ResourceExhausted && ctx.Err() == nil {
			c.logger.Warnf("evicted by the server, subscribing again: %v", err)
			stream, err = c.api.Subscribe(ctx, &protocol.SubscribeRequest{ClientName: c.name})
			if err == nil {
				continue
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.setErr(err)
				c.logger.Warnf("event stream closed: %v", err)
			}
			return
		}
		select {
		case c.events <- ev:
		case <-ctx.Done():
			c.setErr(ctx.Err())
			return
		}
	}
}

// Events delivers server events in order. It is closed when the stream ends.
func (c *Client) Events() <-chan *protocol.ServerEvent { return c.events }

// Err returns why the event stream ended, nil for a clean end.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Drop throws an entity from a world position.
func (c *Client) Drop(ctx context.Context, id string, x, y float64) (*protocol.TransformUpdate, error) {
	return ackState(c.api.Drop(ctx, &protocol.EntityRequest{EntityID: id, X: x, Y: y}))
}

// Teleport moves an entity to a world position.
func (c *Client) Teleport(ctx context.Context, id string, x, y float64, notify bool) (*protocol.TransformUpdate, error) {
	return ackState(c.api.Teleport(ctx, &protocol.EntityRequest{EntityID: id, X: x, Y: y, Notify: notify}))
}

// Disappear hides an entity.
func (c *Client) Disappear(ctx context.Context, id string) (*protocol.TransformUpdate, error) {
	return ackState(c.api.Disappear(ctx, &protocol.EntityRequest{EntityID: id}))
}

// Appear shows an entity at a world position.
func (c *Client) Appear(ctx context.Context, id string, x, y float64) (*protocol.TransformUpdate, error) {
	return ackState(c.api.Appear(ctx, &protocol.EntityRequest{EntityID: id, X: x, Y: y}))
}

// List returns the authoritative state of every entity.
func (c *Client) List(ctx context.Context) ([]*protocol.TransformUpdate, error) {
	resp, err := c.api.List(ctx, &protocol.ListRequest{})
	if err != nil {
		return nil, err
	}
	return resp.Entities, nil
}

// Close closes the connection if Dial created it.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func ackState(ack *protocol.Ack, err error) (*protocol.TransformUpdate, error) {
	if err != nil {
		return nil, err
	}
	return ack.State, nil
}
