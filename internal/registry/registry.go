// Package registry collects the pieces the server is assembled from: game loop
// systems, event hooks and admin console commands.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/annelo/driftsync/internal/gameloop"
)

// HookType defines a named event hook
type HookType string

const (
	// HookAfterControl fires after a control call changed an entity. Args: entity id, call name.
	HookAfterControl HookType = "AfterControl"
	// HookSubscriberJoined fires when a client subscribed. Args: client id, client name.
	HookSubscriberJoined HookType = "SubscriberJoined"
	// HookSubscriberLeft fires when a subscription ended. Args: client id.
	HookSubscriberLeft HookType = "SubscriberLeft"
)

// HookFunc is the signature for hook handlers. args can be event-specific.
type HookFunc func(args ...any)

// CommandFunc is the signature for admin CLI command handlers.
type CommandFunc func(args []string) (string, error)

// CommandRegistration holds a single CLI command registration.
type CommandRegistration struct {
	Name        string
	Description string
	Handler     CommandFunc
}

// Registry is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	gameSystems []gameloop.System
	commands    []CommandRegistration
	hooks       map[HookType][]HookFunc
}

func New() *Registry {
	return &Registry{hooks: make(map[HookType][]HookFunc)}
}

// RegisterGameSystem appends a gameloop.System; systems tick in registration order.
func (r *Registry) RegisterGameSystem(sys gameloop.System) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gameSystems = append(r.gameSystems, sys)
}

// GameSystems returns all registered game systems.
func (r *Registry) GameSystems() []gameloop.System {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]gameloop.System(nil), r.gameSystems...)
}

// RegisterHook appends a hook handler for a given hook type.
func (r *Registry) RegisterHook(hook HookType, fn HookFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[hook] = append(r.hooks[hook], fn)
}

// Hooks returns all registered hook handlers for the given hook type.
func (r *Registry) Hooks(hook HookType) []HookFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]HookFunc(nil), r.hooks[hook]...)
}

// Fire calls every handler of hook in registration order.
func (r *Registry) Fire(hook HookType, args ...any) {
	for _, h := range r.Hooks(hook) {
		h(args...)
	}
}

// RegisterCommand adds an admin command, replacing one with the same name.
func (r *Registry) RegisterCommand(name, description string, handler CommandFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg := CommandRegistration{Name: name, Description: description, Handler: handler}
	for i, c := range r.commands {
		if c.Name == name {
			r.commands[i] = reg
			return
		}
	}
	r.commands = append(r.commands, reg)
}

// Commands returns all registered commands sorted by name.
func (r *Registry) Commands() []CommandRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := append([]CommandRegistration(nil), r.commands...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute runs one console line. Empty lines produce no output.
func (r *Registry) Execute(line string) (string, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return "", nil
	}
	name, args := parts[0], parts[1:]

	r.mu.RLock()
	var handler CommandFunc
	for _, c := range r.commands {
		if c.Name == name {
			handler = c.Handler
			break
		}
	}
	r.mu.RUnlock()

	if handler == nil {
		return "", fmt.Errorf("unknown command %q, try help", name)
	}
	return handler(args)
}

// Help lists the commands, one per line.
func (r *Registry) Help() string {
	var sb strings.Builder
	for _, cmd := range r.Commands() {
		fmt.Fprintf(&sb, "%s - %s\n", cmd.Name, cmd.Description)
	}
	return sb.String()
}
