// Package config loads the host configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path,omitempty" yaml:"path,omitempty"`
}

// SandboxConfig controls the user-plugin runtime.
type SandboxConfig struct {
	LoadTimeoutSeconds int `json:"loadTimeoutSeconds,omitempty" yaml:"loadTimeoutSeconds,omitempty"`
}

// HostConfig is the overall configuration for the plugin host.
type HostConfig struct {
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
	Listen string `json:"listen,omitempty" yaml:"listen,omitempty"`

	// DBPath is the SQLite database holding preferences and bundles.
	DBPath string `json:"dbPath,omitempty" yaml:"dbPath,omitempty"`

	// PluginDirs are directory-discovered plugin trees (origin plugin-dir).
	PluginDirs []string `json:"pluginDirs,omitempty" yaml:"pluginDirs,omitempty"`

	// DevProjectDirs are local dev projects watched for hot reload
	// (origin dev-project).
	DevProjectDirs []string `json:"devProjectDirs,omitempty" yaml:"devProjectDirs,omitempty"`

	// PreferredSource decides registration conflicts: "source" or "bundle".
	PreferredSource string `json:"preferredSource,omitempty" yaml:"preferredSource,omitempty"`

	// StrictBootstrap aborts discovery on the first registration failure.
	StrictBootstrap bool `json:"strictBootstrap,omitempty" yaml:"strictBootstrap,omitempty"`

	Metrics MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Sandbox SandboxConfig `json:"sandbox,omitempty" yaml:"sandbox,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *HostConfig {
	return &HostConfig{
		Name:            "atelier",
		Listen:          ":8080",
		DBPath:          "atelier.db",
		PreferredSource: "bundle",
		Metrics:         MetricsConfig{Enabled: true, Path: "/metrics"},
		Sandbox:         SandboxConfig{LoadTimeoutSeconds: 10},
	}
}

// LoadFromFile loads a host configuration from a YAML file. Fields absent
// from the file keep their defaults.
func LoadFromFile(path string) (*HostConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SandboxLoadTimeout returns the configured plugin code load deadline,
// falling back to the default when unset.
func (c *HostConfig) SandboxLoadTimeout() time.Duration {
	if c.Sandbox.LoadTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Sandbox.LoadTimeoutSeconds) * time.Second
}

// Validate checks fields with closed vocabularies.
func (c *HostConfig) Validate() error {
	switch c.PreferredSource {
	case "", "source", "bundle":
	default:
		return fmt.Errorf("config: preferredSource must be \"source\" or \"bundle\", got %q", c.PreferredSource)
	}
	if c.Sandbox.LoadTimeoutSeconds < 0 {
		return fmt.Errorf("config: sandbox.loadTimeoutSeconds must not be negative")
	}
	return nil
}
