// Package config handles configuration loading and validation for gridkeeper.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gridkeeper/gridkeeper/internal/grid"
)

// EnvAuthToken names the environment variable consulted when no auth token
// is configured. Keeping tokens out of config files is the usual deployment.
const EnvAuthToken = "GRIDKEEPER_AUTH_TOKEN"

// StoreConfig holds the connection settings for the grid gateway.
type StoreConfig struct {
	URL       string `yaml:"url"`
	AuthToken string `yaml:"auth_token"`
	Clients   int    `yaml:"clients"` // Client pool size (default: 1)
}

// BatchConfig holds the defaults for batch runs.
type BatchConfig struct {
	Threads           int     `yaml:"threads"`            // Worker count (default: 1)
	ConnectionRetries int     `yaml:"connection_retries"` // Retries per path after connection failures
	RateLimit         float64 `yaml:"rate_limit"`         // Store operations per second, 0 = unlimited
	RateBurst         int     `yaml:"rate_burst"`
}

// RepairConfig holds the policy for repair operations.
type RepairConfig struct {
	Replicas  int      `yaml:"replicas"`  // Target valid replica count (default: 2)
	Resources []string `yaml:"resources"` // Resources eligible for restored replicas
	Creator   string   `yaml:"creator"`   // Recorded on objects missing creation metadata
}

// Config is the top-level gridkeeper configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store"`
	Batch  BatchConfig  `yaml:"batch"`
	Repair RepairConfig `yaml:"repair"`
}

// Load reads a YAML config file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// ApplyDefaults fills unset fields, pulling the auth token from the
// environment when the file leaves it blank.
func (c *Config) ApplyDefaults() {
	if c.Store.URL == "" {
		c.Store.URL = "http://localhost:9482"
	}
	if c.Store.AuthToken == "" {
		c.Store.AuthToken = os.Getenv(EnvAuthToken)
	}
	if c.Store.Clients < 1 {
		c.Store.Clients = 1
	}
	if c.Batch.Threads < 1 {
		c.Batch.Threads = 1
	}
	if c.Repair.Replicas < 1 {
		c.Repair.Replicas = 2
	}
	if c.Repair.Creator == "" {
		c.Repair.Creator = grid.PlaceholderCreator
	}
}

// Validate checks settings that have no sensible fallback.
func (c *Config) Validate() error {
	if c.Store.URL == "" {
		return fmt.Errorf("store.url must be set")
	}
	if c.Batch.RateLimit < 0 {
		return fmt.Errorf("batch.rate_limit must not be negative")
	}
	return nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}
