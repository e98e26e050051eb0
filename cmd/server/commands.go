package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/annelo/driftsync/internal/protocol"
	"github.com/annelo/driftsync/internal/registry"
	"github.com/annelo/driftsync/internal/service"
)

const commandTimeout = 2 * time.Second

// registerCommands wires the admin console to the control calls of the service.
func registerCommands(reg *registry.Registry, svc *service.SyncService, stop func()) {
	reg.RegisterCommand("help", "List commands", func([]string) (string, error) {
		return reg.Help(), nil
	})
	reg.RegisterCommand("stop", "Stop server", func([]string) (string, error) {
		go stop()
		return "Server stopping\n", nil
	})
	reg.RegisterCommand("map", "Print the arena", func([]string) (string, error) {
		return svc.Grid().String(), nil
	})
	reg.RegisterCommand("list", "List entities", func([]string) (string, error) {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		resp, err := svc.List(ctx, &protocol.ListRequest{})
		if err != nil {
			return "", err
		}
		var sb strings.Builder
		for _, e := range resp.Entities {
			fmt.Fprintf(&sb, "%s #%d %v\n", e.EntityID, e.Seq, e.Update().State)
		}
		return sb.String(), nil
	})
	reg.RegisterCommand("drop", "Drop an entity: drop <id> <x> <y>", control(svc.Drop, 3))
	reg.RegisterCommand("teleport", "Move an entity: teleport <id> <x> <y> [silent]", func(args []string) (string, error) {
		silent := len(args) == 4 && args[3] == "silent"
		if silent {
			args = args[:3]
		}
		return control(func(ctx context.Context, req *protocol.EntityRequest) (*protocol.Ack, error) {
			req.Notify = !silent
			return svc.Teleport(ctx, req)
		}, 3)(args)
	})
	reg.RegisterCommand("hide", "Hide an entity: hide <id>", control(svc.Disappear, 1))
	reg.RegisterCommand("show", "Show an entity: show <id> <x> <y>", control(svc.Appear, 3))
}

type controlFunc func(context.Context, *protocol.EntityRequest) (*protocol.Ack, error)

// control parses "<id> [x y]" and calls fn with world coordinates.
func control(fn controlFunc, nargs int) registry.CommandFunc {
	return func(args []string) (string, error) {
		if len(args) != nargs {
			return "", fmt.Errorf("expected %d arguments, got %d", nargs, len(args))
		}
		req := &protocol.EntityRequest{EntityID: args[0]}
		if nargs == 3 {
			var err error
			if req.X, err = strconv.ParseFloat(args[1], 64); err != nil {
				return "", fmt.Errorf("x: %w", err)
			}
			if req.Y, err = strconv.ParseFloat(args[2], 64); err != nil {
				return "", fmt.Errorf("y: %w", err)
			}
		}
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		ack, err := fn(ctx, req)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s #%d %v\n", ack.State.EntityID, ack.State.Seq, ack.State.Update().State), nil
	}
}
