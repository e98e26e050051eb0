// Package config loads the server configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/annelo/driftsync/internal/netsync"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	World    WorldConfig    `yaml:"world"`
	Sync     SyncConfig     `yaml:"sync"`
	Entities []EntityConfig `yaml:"entities"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
	// TickRate is the number of simulation ticks per second.
	TickRate int `yaml:"tick_rate"`
	// SendQueue is the per-subscriber queue length; overflowing updates are dropped.
	SendQueue int `yaml:"send_queue"`
}

// WorldConfig describes the generated arena. Seed 0 means a random seed.
type WorldConfig struct {
	Seed      int64   `yaml:"seed"`
	Width     int     `yaml:"width"`
	Height    int     `yaml:"height"`
	Threshold float64 `yaml:"threshold"`
	Scale     float64 `yaml:"scale"`
}

type SyncConfig struct {
	SpeedMultiplier float64 `yaml:"speed_multiplier"`
	MinDropSpeed    float64 `yaml:"min_drop_speed"`
	MaxDropSpeed    float64 `yaml:"max_drop_speed"`
}

// EntityConfig is a synchronized entity spawned at startup. X and Y are local
// tile coordinates; 0,0 spawns it hidden.
type EntityConfig struct {
	ID string  `yaml:"id"`
	X  float64 `yaml:"x"`
	Y  float64 `yaml:"y"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns a config that runs a small arena with a few crates.
func Default() Config {
	return Config{
		Server: ServerConfig{Port: 50051, TickRate: 20, SendQueue: 1024},
		World:  WorldConfig{Width: 48, Height: 24, Threshold: 0.25, Scale: 0.12},
		Sync: SyncConfig{
			SpeedMultiplier: 1,
			MinDropSpeed:    netsync.DefaultMinDropSpeed,
			MaxDropSpeed:    netsync.DefaultMaxDropSpeed,
		},
		Entities: []EntityConfig{
			{ID: "crate-1", X: 4, Y: 4},
			{ID: "crate-2", X: 10, Y: 6},
			{ID: "barrel-1"},
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path on top of the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch {
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalid, c.Server.Port)
	case c.Server.TickRate <= 0:
		return fmt.Errorf("%w: server.tick_rate must be positive", ErrInvalid)
	case c.Server.SendQueue <= 0:
		return fmt.Errorf("%w: server.send_queue must be positive", ErrInvalid)
	case c.World.Width < 3 || c.World.Height < 3:
		return fmt.Errorf("%w: world must be at least 3x3, got %dx%d", ErrInvalid, c.World.Width, c.World.Height)
	case c.Sync.SpeedMultiplier <= 0:
		return fmt.Errorf("%w: sync.speed_multiplier must be positive", ErrInvalid)
	case c.Sync.MinDropSpeed <= 0 || c.Sync.MaxDropSpeed < c.Sync.MinDropSpeed:
		return fmt.Errorf("%w: drop speed range [%g, %g]", ErrInvalid, c.Sync.MinDropSpeed, c.Sync.MaxDropSpeed)
	}
	if _, err := zap.ParseAtomicLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalid, err)
	}
	seen := make(map[string]bool, len(c.Entities))
	for _, e := range c.Entities {
		if e.ID == "" {
			return fmt.Errorf("%w: entity without id", ErrInvalid)
		}
		if seen[e.ID] {
			return fmt.Errorf("%w: duplicate entity id %q", ErrInvalid, e.ID)
		}
		seen[e.ID] = true
	}
	return nil
}

// TickDuration converts the tick rate to the loop period.
func (c Config) TickDuration() time.Duration {
	return time.Second / time.Duration(c.Server.TickRate)
}

// Address returns the listen address for the gRPC server.
func (c Config) Address() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
