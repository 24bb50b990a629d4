// Package config provides configuration management for Meshview.
//
// Config file locations (priority order):
//  1. $MESHVIEW_CONFIG
//  2. ./meshview.yaml
//  3. ~/.config/meshview/config.yaml
//  4. /etc/meshview/config.yaml
//
// The controller token may also come from $MESHVIEW_TOKEN, which takes
// precedence over the file so tokens can stay out of committed configs.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		// No config found - return defaults
		cfg := DefaultConfig()
		cfg.applyEnv()
		return cfg, "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, path, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}

	return &cfg, path, nil
}

// Save writes config to the specified path
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	cfg := &Config{Version: 1}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	if c.Version == 0 {
		c.Version = 1
	}
	if c.ListenAddr == "" {
		c.ListenAddr = ":8765"
	}
	if c.Database.Path == "" {
		c.Database.Path = "./meshview.db"
	}
	if c.Controller.URL == "" {
		c.Controller.URL = "http://localhost:8123"
	}
	if c.Collection.Timeout.Duration() == 0 {
		c.Collection.Timeout = 60 * second
	}
	if c.Collection.MaxConcurrent == 0 {
		c.Collection.MaxConcurrent = 8
	}
	if c.Collection.SuccessFloor == 0 {
		c.Collection.SuccessFloor = 0.5
	}
	if c.Collection.KeepAlive.Duration() == 0 {
		c.Collection.KeepAlive = 15 * second
	}
}

// applyEnv layers environment overrides on top of the file values
func (c *Config) applyEnv() {
	if token := os.Getenv(EnvToken); token != "" {
		c.Controller.Token = token
	}
}

// Validate rejects values that would misbehave at runtime
func (c *Config) Validate() error {
	if c.Collection.SuccessFloor < 0 || c.Collection.SuccessFloor > 1 {
		return fmt.Errorf("collection.success_floor must be within [0, 1], got %g", c.Collection.SuccessFloor)
	}
	if c.Collection.MaxConcurrent < 0 {
		return fmt.Errorf("collection.max_concurrent must not be negative, got %d", c.Collection.MaxConcurrent)
	}
	return nil
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	return fmt.Sprintf("Controller: %s, Listen: %s, DB: %s, Timeout: %s, Workers: %d, Floor: %.0f%%",
		c.Controller.URL, c.ListenAddr, c.Database.Path,
		c.Collection.Timeout.Duration(), c.Collection.MaxConcurrent,
		c.Collection.SuccessFloor*100)
}
