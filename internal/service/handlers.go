package service

import (
	"context"
	"errors"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/annelo/driftsync/internal/entitymanager"
	"github.com/annelo/driftsync/internal/gameloop"
	"github.com/annelo/driftsync/internal/netsync"
	"github.com/annelo/driftsync/internal/protocol"
	"github.com/annelo/driftsync/internal/registry"
	"github.com/annelo/driftsync/internal/transform"
)

var _ protocol.SyncServer = (*SyncService)(nil)

// RegisterServer registers the SyncService on the given gRPC server.
func (s *SyncService) RegisterServer(grpcServer grpc.ServiceRegistrar) {
	protocol.RegisterSyncServer(grpcServer, s)
}

// Subscribe streams world info, then every entity with its current state, then
// all later updates. The handler goroutine is the only writer of the stream.
func (s *SyncService) Subscribe(req *protocol.SubscribeRequest, stream protocol.SubscribeStream) error {
	clientID := uuid.New().String()
	conn := newClientConn(clientID, req.ClientName, s.cfg.Server.SendQueue)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return status.Error(codes.Unavailable, "server is shutting down")
	}
	s.clientStreams[clientID] = conn
	s.mu.Unlock()

	counter(metricSubscribers).Add(1)
	s.logger.Infof("Клиент %s (%s) подписался", req.ClientName, clientID)
	defer func() {
		s.removeClient(clientID)
		counter(metricSubscribers).Add(-1)
		s.registry.Fire(registry.HookSubscriberLeft, clientID)
		s.logger.Infof("Клиент %s отключился", clientID)
	}()

	s.sendMessageToClient(clientID, &protocol.ServerEvent{WorldInfo: s.worldInfo(clientID)})
	if err := s.commands.Post(func() { s.syncLateJoiner(clientID) }); err != nil {
		return status.Errorf(codes.Unavailable, "cannot sync new client: %v", err)
	}
	s.registry.Fire(registry.HookSubscriberJoined, clientID, req.ClientName)

	ctx := stream.Context()
	for {
		select {
		case msg, ok := <-conn.queue:
			if !ok {
				return nil
			}
			if err := stream.Send(msg); err != nil {
				s.logger.Warnf("Ошибка отправки клиенту %s: %v", clientID, err)
				return err
			}
			if msg.Shutdown != "" {
				return nil
			}
		case <-conn.lagged:
			counter(metricSubscribersEvicted).Add(1)
			s.logger.Warnf("Очередь клиента %s переполнена, отключаем", clientID)
			return status.Error(codes.ResourceExhausted, "send queue overflow, subscribe again")
		case <-ctx.Done():
			return nil
		}
	}
}

// syncLateJoiner runs on the loop goroutine so that no update produced between
// the spawn and the state can be missed.
func (s *SyncService) syncLateJoiner(clientID string) {
	for _, e := range s.entities.All() {
		spawn := s.spawns[e.ID()]
		s.sendMessageToClient(clientID, &protocol.ServerEvent{Spawn: &protocol.EntitySpawn{
			EntityID: e.ID(),
			X:        spawn[0],
			Y:        spawn[1],
			Z:        spawn[2],
		}})
		e.NotifyOne(clientID)
	}
}

// Drop throws the entity from a world position in a random direction.
func (s *SyncService) Drop(ctx context.Context, req *protocol.EntityRequest) (*protocol.Ack, error) {
	return s.control(ctx, "drop", req, func(e *netsync.Entity, world mgl64.Vec3) {
		e.ForceDrop(world)
	})
}

// Teleport moves the entity to a world position, broadcasting only on request.
func (s *SyncService) Teleport(ctx context.Context, req *protocol.EntityRequest) (*protocol.Ack, error) {
	return s.control(ctx, "teleport", req, func(e *netsync.Entity, world mgl64.Vec3) {
		e.SetPosition(transform.ToLocal(world), req.Notify)
	})
}

// Disappear takes the entity out of the world. Coordinates are ignored.
func (s *SyncService) Disappear(ctx context.Context, req *protocol.EntityRequest) (*protocol.Ack, error) {
	return s.control(ctx, "disappear", req, func(e *netsync.Entity, _ mgl64.Vec3) {
		e.Disappear()
	})
}

// Appear puts the entity back into the world at a world position.
func (s *SyncService) Appear(ctx context.Context, req *protocol.EntityRequest) (*protocol.Ack, error) {
	return s.control(ctx, "appear", req, func(e *netsync.Entity, world mgl64.Vec3) {
		e.AppearAt(transform.ToLocal(world))
	})
}

// List returns the authoritative state of every entity, ordered by id.
func (s *SyncService) List(ctx context.Context, _ *protocol.ListRequest) (*protocol.ListResponse, error) {
	var resp protocol.ListResponse
	err := s.commands.Do(ctx, func() {
		for _, e := range s.entities.All() {
			resp.Entities = append(resp.Entities, snapshot(e))
		}
	})
	if err != nil {
		return nil, commandError(err)
	}
	return &resp, nil
}

func (s *SyncService) control(ctx context.Context, name string, req *protocol.EntityRequest, fn func(*netsync.Entity, mgl64.Vec3)) (*protocol.Ack, error) {
	if req.EntityID == "" {
		return nil, status.Error(codes.InvalidArgument, "entity id is required")
	}
	if !finite(req.X) || !finite(req.Y) {
		return nil, status.Errorf(codes.InvalidArgument, "position (%v, %v) is not finite", req.X, req.Y)
	}
	e, err := s.entities.Get(req.EntityID)
	if errors.Is(err, entitymanager.ErrNotFound) {
		return nil, status.Errorf(codes.NotFound, "entity %s: %v", req.EntityID, err)
	}
	if err != nil {
		return nil, status.Errorf(codes.Internal, "entity %s: %v", req.EntityID, err)
	}

	world := mgl64.Vec3{req.X, req.Y, 0}
	var ack protocol.Ack
	err = s.commands.Do(ctx, func() {
		fn(e, world)
		ack.State = snapshot(e)
	})
	if err != nil {
		return nil, commandError(err)
	}
	s.logger.Debugf("%s %s: %v", name, req.EntityID, ack.State.Update().State)
	s.registry.Fire(registry.HookAfterControl, req.EntityID, name)
	return &ack, nil
}

func snapshot(e *netsync.Entity) *protocol.TransformUpdate {
	return protocol.NewTransformUpdate(netsync.Update{EntityID: e.ID(), Seq: e.Seq(), State: e.State()})
}

func commandError(err error) error {
	switch {
	case errors.Is(err, gameloop.ErrStopped), errors.Is(err, gameloop.ErrQueueFull):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.FromContextError(err).Err()
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
