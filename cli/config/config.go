package config

import (
	"errors"
	"fmt"
	"time"
)

// Config represents a testbridge.yaml configuration file.
// All values are optional and act as defaults for command flags.
// CLI flags always override config values.
type Config struct {
	// Enabled turns the bridge on. Nil means enabled; false runs the engine
	// with its native output untouched.
	Enabled     *bool         `yaml:"enabled"`
	CollectOnly bool          `yaml:"collect_only"`
	Output      string        `yaml:"output"`
	Log         LogConfig     `yaml:"log"`
	Engine      EngineConfig  `yaml:"engine"`
	GoTest      GoTestConfig  `yaml:"gotest"`
	Adapter     AdapterConfig `yaml:"adapter"`
}

// LogConfig holds logging defaults.
type LogConfig struct {
	Level string `yaml:"level"`
}

// EngineConfig describes the engine process for testbridge run.
type EngineConfig struct {
	Command []string          `yaml:"command"`
	Env     map[string]string `yaml:"env,omitempty"`
	Dir     string            `yaml:"dir,omitempty"`
}

// GoTestConfig holds defaults for testbridge gotest.
type GoTestConfig struct {
	Packages []string `yaml:"packages"`
	Args     []string `yaml:"args,omitempty"`
	Timeout  Duration `yaml:"timeout,omitempty"`
}

// AdapterConfig holds adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// IsEnabled reports whether the bridge should run. Defaults to true.
func (c *Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	var errs []error
	switch c.Adapter.Type {
	case "", "webhook", "redis":
	default:
		errs = append(errs, fmt.Errorf("adapter.type: unknown adapter %q (want webhook or redis)", c.Adapter.Type))
	}
	if c.Adapter.Type != "" && c.Adapter.URL == "" {
		errs = append(errs, errors.New("adapter.url: required when adapter.type is set"))
	}
	if c.Adapter.Retries != nil && *c.Adapter.Retries < 0 {
		errs = append(errs, fmt.Errorf("adapter.retries: must be >= 0, got %d", *c.Adapter.Retries))
	}
	if c.Adapter.Timeout.Duration < 0 {
		errs = append(errs, errors.New("adapter.timeout: must not be negative"))
	}
	if c.GoTest.Timeout.Duration < 0 {
		errs = append(errs, errors.New("gotest.timeout: must not be negative"))
	}
	if c.Log.Level != "" {
		switch c.Log.Level {
		case "debug", "info", "warn", "error":
		default:
			errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
		}
	}
	return errors.Join(errs...)
}
