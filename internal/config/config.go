// Package config loads the server configuration from a YAML file, filling in
// defaults for anything omitted.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"voxelize/internal/world"
)

// ServerConfig is the top-level configuration of the voxelize server.
type ServerConfig struct {
	// Addr is the listen address of the websocket/HTTP server.
	Addr string `yaml:"addr"`

	// TickMillis is the engine tick period in milliseconds.
	TickMillis int `yaml:"tickMillis"`

	// Metrics toggles the prometheus /metrics endpoint.
	Metrics bool `yaml:"metrics"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"logLevel"`

	// World holds the world parameters.
	World world.Config `yaml:"world"`
}

// Default returns the configuration the server runs with when no file is
// given.
func Default() *ServerConfig {
	return &ServerConfig{
		Addr:       ":4000",
		TickMillis: 16,
		Metrics:    true,
		LogLevel:   "info",
		World:      world.DefaultConfig(),
	}
}

// Load reads a YAML config file and applies defaults to omitted fields.
func Load(path string) (*ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the server-level fields plus the world config.
func (c *ServerConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	if c.TickMillis <= 0 {
		return fmt.Errorf("tickMillis must be positive, got %d", c.TickMillis)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logLevel %q", c.LogLevel)
	}
	if c.World.Saving && c.World.SaveDir == "" {
		return fmt.Errorf("saveDir is required when saving is enabled")
	}
	return c.World.Validate()
}

// TickInterval returns the tick period as a duration.
func (c *ServerConfig) TickInterval() time.Duration {
	return time.Duration(c.TickMillis) * time.Millisecond
}
