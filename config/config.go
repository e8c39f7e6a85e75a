// Package config handles optrace configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level optrace configuration.
type Config struct {
	Browser BrowserConfig `yaml:"browser"`
	Session SessionConfig `yaml:"session"`
	Sinks   []SinkConfig  `yaml:"sinks"`
	API     APIConfig     `yaml:"api"`
}

// BrowserConfig controls the Chrome connection.
type BrowserConfig struct {
	// Remote is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via the launcher.
	Remote string `yaml:"remote"`
	// Stealth selects headless or headful operation.
	Stealth string `yaml:"stealth"` // headless | headful
}

// SessionConfig controls the routing core.
type SessionConfig struct {
	// SettleWindow is the delay after click/submit before the after
	// capture. Default: 500ms.
	SettleWindow time.Duration `yaml:"settle_window"`
	// PendingCapacity bounds the per-tab in-flight request map.
	// Default: 256.
	PendingCapacity int `yaml:"pending_capacity"`
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type string `yaml:"type"` // fs | sqlite | stdout
	Path string `yaml:"path"` // root dir for fs, db file for sqlite
}

// APIConfig controls the optional status endpoint.
type APIConfig struct {
	Listen string `yaml:"listen"` // empty disables the endpoint
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Session.SettleWindow <= 0 {
		c.Session.SettleWindow = 500 * time.Millisecond
	}
	if c.Session.PendingCapacity <= 0 {
		c.Session.PendingCapacity = 256
	}
	if len(c.Sinks) == 0 {
		c.Sinks = []SinkConfig{{Type: "fs", Path: "trace"}}
	}
}
