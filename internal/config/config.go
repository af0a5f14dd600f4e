// Package config provides configuration management for modelscout.
//
// Config file locations (priority order):
//  1. $MODELSCOUT_CONFIG
//  2. ./modelscout.yaml
//  3. $XDG_CONFIG_HOME/modelscout/config.yaml
//  4. ~/.config/modelscout/config.yaml
//
// The Shodan credential can live in the file or in the SHODAN_API_KEY
// environment variable; the environment wins. It is read here once and
// injected into the client explicitly, never held in package state.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// EnvConfigPath is the environment variable for an explicit config path.
	EnvConfigPath = "MODELSCOUT_CONFIG"
	// EnvAPIKey is the environment variable carrying the Shodan credential.
	EnvAPIKey = "SHODAN_API_KEY"
	// ConfigFileName is the default config file name.
	ConfigFileName = "modelscout.yaml"
	// ConfigDirName is the config directory name under XDG.
	ConfigDirName = "modelscout"
)

// Load finds and loads the config file, or returns defaults if none found.
// The environment credential override is applied in both cases.
func Load() (*Config, string, error) {
	path := FindConfigPath()
	if path == "" {
		cfg := DefaultConfig()
		cfg.applyEnv()
		return cfg, "", nil
	}
	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path.
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

	return &cfg, path, nil
}

// DefaultConfig returns the policy defaults.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in missing values with defaults.
func (c *Config) applyDefaults() {
	if c.Family == "" {
		c.Family = FamilyOllama
	}
	if c.Discovery.PageLimit == 0 {
		c.Discovery.PageLimit = 10
	}
	if c.Discovery.PageSize == 0 {
		c.Discovery.PageSize = 100
	}
	if c.Discovery.PageDelay == 0 {
		c.Discovery.PageDelay = Duration(time.Second)
	}
	if c.Probe.Timeout == 0 {
		c.Probe.Timeout = Duration(5 * time.Second)
	}
	if c.Probe.Concurrency == 0 {
		c.Probe.Concurrency = 10
	}
	if c.Database.Path == "" {
		c.Database.Path = "./modelscout.db"
	}
}

// applyEnv applies environment overrides.
func (c *Config) applyEnv() {
	if key := os.Getenv(EnvAPIKey); key != "" {
		c.Shodan.APIKey = key
	}
}

// Validate checks cross-field constraints the defaults cannot fix.
func (c *Config) Validate() error {
	if !c.Family.Valid() {
		return fmt.Errorf("unknown family %q (want %s or %s)", c.Family, FamilyOllama, FamilyLlamaCpp)
	}
	if c.Discovery.PageLimit < 1 {
		return fmt.Errorf("page_limit must be at least 1")
	}
	if c.Probe.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}
	return nil
}
