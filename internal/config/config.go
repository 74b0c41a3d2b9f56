// Package config holds the process configuration. The Config struct is built
// once in main from flags and an optional YAML file, then handed to the
// components that need it; nothing in the codebase reads configuration from a
// package-level singleton.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full process configuration.
type Config struct {
	// DBPath is the SQLite database file path.
	DBPath string `yaml:"db_path"`
	// Addr is the HTTP listen address.
	Addr string `yaml:"addr"`
	// LogPath optionally mirrors logs to a file.
	LogPath string `yaml:"log_path"`
	// AdminEmail is the bootstrap admin account created on first run.
	AdminEmail string `yaml:"admin_email"`
	// ShutdownGrace bounds how long a graceful shutdown may take.
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		DBPath:        "parcops.sqlite3",
		Addr:          ":8080",
		AdminEmail:    "admin@parcops.local",
		ShutdownGrace: 5 * time.Second,
	}
}

// Load reads a YAML config file over the defaults. A missing path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}
