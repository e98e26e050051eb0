package registry_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annelo/driftsync/internal/gameloop"
	"github.com/annelo/driftsync/internal/registry"
)

func TestRegistry_RegisterAndRetrieve(t *testing.T) {
	reg := registry.New()

	// Game system registration
	drift := gameloop.NewDriftSystem()
	status := gameloop.NewStatusSystem(0)
	reg.RegisterGameSystem(drift)
	reg.RegisterGameSystem(status)
	systems := reg.GameSystems()
	require.Len(t, systems, 2)
	assert.Equal(t, drift, systems[0])
	assert.Equal(t, status, systems[1])

	// Hook registration and invocation
	var got []any
	reg.RegisterHook(registry.HookAfterControl, func(args ...any) { got = args })
	reg.Fire(registry.HookAfterControl, "crate-1", "drop")
	reg.Fire(registry.HookSubscriberLeft, "nobody listens")
	assert.Equal(t, []any{"crate-1", "drop"}, got)
	assert.Len(t, reg.Hooks(registry.HookAfterControl), 1)
}

func TestRegistry_Execute(t *testing.T) {
	reg := registry.New()
	reg.RegisterCommand("echo", "Echo args", func(args []string) (string, error) {
		return args[0] + "\n", nil
	})
	reg.RegisterCommand("fail", "Always fails", func([]string) (string, error) {
		return "", errors.New("nope")
	})
	reg.RegisterCommand("echo", "Echo first arg", func(args []string) (string, error) {
		return "[" + args[0] + "]\n", nil
	})

	out, err := reg.Execute("  echo   hi  ")
	require.NoError(t, err)
	assert.Equal(t, "[hi]\n", out, "re-registering replaces the handler")

	_, err = reg.Execute("fail")
	assert.EqualError(t, err, "nope")

	_, err = reg.Execute("missing")
	assert.Error(t, err)

	out, err = reg.Execute("   ")
	assert.NoError(t, err)
	assert.Empty(t, out)

	assert.Equal(t, "echo - Echo first arg\nfail - Always fails\n", reg.Help())
}

func TestRegistry_Concurrent(t *testing.T) {
	reg := registry.New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg.RegisterHook(registry.HookSubscriberJoined, func(...any) {})
			reg.Fire(registry.HookSubscriberJoined, "c", "n")
		}()
	}
	wg.Wait()
	assert.Len(t, reg.Hooks(registry.HookSubscriberJoined), 50)
}
