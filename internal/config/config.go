// Package config loads runtime settings from environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds all runtime settings for the daemon.
type Config struct {
	// HTTP listen address for the API server.
	ListenAddr string `env:"WARDSIM_LISTEN" envDefault:":8420"`

	// Bearer token required for admin endpoints. Empty disables them.
	AdminKey string `env:"WARDSIM_ADMIN_KEY"`

	// Path to the SQLite database file.
	DBPath string `env:"WARDSIM_DB" envDefault:"wardsim.db"`

	// Optional YAML file of designer-defined overlay tokens.
	TokenRegistryPath string `env:"WARDSIM_TOKENS"`

	// World generation seed, used only when no saved state exists.
	Seed int64 `env:"WARDSIM_SEED" envDefault:"42"`

	// Number of districts to generate for a fresh world.
	Districts int `env:"WARDSIM_DISTRICTS" envDefault:"12"`

	// Turns per in-world day.
	TurnsPerDay int `env:"WARDSIM_TURNS_PER_DAY" envDefault:"24"`

	// Simulation speed multiplier. 0 starts paused.
	Speed float64 `env:"WARDSIM_SPEED" envDefault:"1"`

	// Log level: debug, info, warn, error.
	LogLevel string `env:"WARDSIM_LOG_LEVEL" envDefault:"info"`
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.TurnsPerDay < 1 {
		return nil, fmt.Errorf("WARDSIM_TURNS_PER_DAY must be at least 1")
	}
	if cfg.Districts < 1 {
		return nil, fmt.Errorf("WARDSIM_DISTRICTS must be at least 1")
	}
	return cfg, nil
}
