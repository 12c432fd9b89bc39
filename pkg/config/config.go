// Package config loads the adapter daemon's configuration file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/onyx-network/onyx/pkg/driver"
	"github.com/onyx-network/onyx/pkg/util"
)

// DefaultPath is the default configuration file location.
var DefaultPath = "/etc/onyx/onyxd.yaml"

// Config is the daemon configuration.
type Config struct {
	Redis struct {
		Addr string `yaml:"addr"`
	} `yaml:"redis"`

	Vendor struct {
		Command        string `yaml:"command"`
		TimeoutSeconds int    `yaml:"timeout_seconds"`
	} `yaml:"vendor"`

	Orchestrator struct {
		PortMapPath         string   `yaml:"portmap_path"`
		RestartCommand      []string `yaml:"restart_command"`
		ReadyTimeoutSeconds int      `yaml:"ready_timeout_seconds"`
	} `yaml:"orchestrator"`

	// Platform lists the device's physical ports. Every port exposes at
	// least its primary sub-interface <port>_1.
	Platform []PortDef `yaml:"platform"`

	Metrics struct {
		Listen string `yaml:"listen"` // "" disables the endpoint
	} `yaml:"metrics"`

	Audit struct {
		Path string `yaml:"path"` // "" disables audit logging
	} `yaml:"audit"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // text, json
	} `yaml:"log"`
}

// PortDef describes one physical port of the platform.
type PortDef struct {
	Name         string `yaml:"name"`  // e.g. "Ethernet0"
	Index        int    `yaml:"index"` // front-panel index
	Lanes        string `yaml:"lanes"` // e.g. "65,66,67,68"
	DefaultSpeed string `yaml:"default_speed"` // table form, e.g. "100G"
	Component    string `yaml:"component,omitempty"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Vendor.Command == "" {
		c.Vendor.Command = "bcmcmd"
	}
	if c.Vendor.TimeoutSeconds <= 0 {
		c.Vendor.TimeoutSeconds = 10
	}
	if c.Orchestrator.PortMapPath == "" {
		c.Orchestrator.PortMapPath = "/var/lib/onyx/portmap.json"
	}
	if c.Orchestrator.ReadyTimeoutSeconds <= 0 {
		c.Orchestrator.ReadyTimeoutSeconds = 180
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	for i := range c.Platform {
		if c.Platform[i].DefaultSpeed == "" {
			c.Platform[i].DefaultSpeed = "100G"
		}
	}
}

func (c *Config) validate() error {
	if len(c.Platform) == 0 {
		return fmt.Errorf("platform must list at least one port")
	}
	seen := make(map[string]bool, len(c.Platform))
	for _, p := range c.Platform {
		if p.Name == "" {
			return fmt.Errorf("platform port with empty name")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate platform port %s", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// VendorTimeout returns the vendor command timeout as a duration.
func (c *Config) VendorTimeout() time.Duration {
	return time.Duration(c.Vendor.TimeoutSeconds) * time.Second
}

// ReadyTimeout returns the forwarding-plane ready wait bound.
func (c *Config) ReadyTimeout() time.Duration {
	return time.Duration(c.Orchestrator.ReadyTimeoutSeconds) * time.Second
}

// DefaultPortMap derives the unchannelized port map from the platform
// inventory. It seeds the driver until the first reconcile pass.
func (c *Config) DefaultPortMap() driver.PortMap {
	m := make(driver.PortMap, len(c.Platform))
	for _, p := range c.Platform {
		m[p.Name] = driver.PortProfile{Channels: 1, Speed: p.DefaultSpeed}
	}
	return m
}

// ConfigureLogging applies the log section to the global logger.
func (c *Config) ConfigureLogging() error {
	if c.Log.Format == "json" {
		util.SetJSONFormat()
	}
	return util.SetLogLevel(c.Log.Level)
}
