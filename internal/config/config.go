// Package config holds environment-based settings for the confkit
// binaries. A .env file, when present, is loaded by the caller before
// Load runs.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// StorePath is the location of the single-file store.
	StorePath string `env:"CONFKIT_STORE_PATH" envDefault:"confkit.db"`
	// SeedStorePath optionally names a bundled pre-populated store
	// copied into StorePath on first run.
	SeedStorePath string `env:"CONFKIT_SEED_STORE_PATH"`
	// Readers sizes the engine's read worker pool.
	Readers int `env:"CONFKIT_READERS" envDefault:"4"`
	// ServerAddress is where the query API listens.
	ServerAddress string `env:"CONFKIT_SERVER_ADDRESS" envDefault:":8080"`
	// LogLevel is a zerolog level name (debug, info, warn, error).
	LogLevel string `env:"CONFKIT_LOG_LEVEL" envDefault:"info"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("environment variables are invalid: %w", err)
	}
	if cfg.StorePath == "" {
		return nil, fmt.Errorf("CONFKIT_STORE_PATH is required")
	}
	return &cfg, nil
}
