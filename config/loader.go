// Package config provides layered configuration loading for kqml agents:
// defaults, then a YAML file, then environment variable overrides.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("KQML").
//	    Load()
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete kqml agent configuration.
type Config struct {
	// Agent identity and facilitator settings.
	Agent AgentConfig `yaml:"agent"`

	// Transport listen settings.
	Transport TransportConfig `yaml:"transport"`

	// Poll settings for the subscription engine.
	Poll PollConfig `yaml:"poll"`

	// Log settings.
	Log LogConfig `yaml:"log"`

	// Metrics settings.
	Metrics MetricsConfig `yaml:"metrics"`
}

// AgentConfig identifies the agent.
type AgentConfig struct {
	// Name is the agent identity used as :sender on outgoing messages.
	Name string `yaml:"name"`
	// Description is a human-readable summary for register/advertise.
	Description string `yaml:"description"`
	// Facilitator is the address for one-shot register/advertise sends.
	// Empty disables registration.
	Facilitator string `yaml:"facilitator"`
}

// TransportConfig holds listen addresses.
type TransportConfig struct {
	// Listen is the TCP listen address.
	Listen string `yaml:"listen"`
	// WSListen is the WebSocket listen address. Empty disables it.
	WSListen string `yaml:"ws_listen"`
	// AcceptRate limits new connections per second. Zero disables.
	AcceptRate float64 `yaml:"accept_rate"`
	// AcceptBurst is the limiter burst size.
	AcceptBurst int `yaml:"accept_burst"`
}

// Duration wraps time.Duration so YAML values like "250ms" parse.
type Duration time.Duration

// UnmarshalYAML accepts either a duration string or integer nanoseconds.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("config: invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := node.Decode(&n); err != nil {
		return fmt.Errorf("config: invalid duration node %q", node.Value)
	}
	*d = Duration(n)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// PollConfig controls the subscription poller.
type PollConfig struct {
	// Interval between poll ticks.
	Interval Duration `yaml:"interval"`
}

// LogConfig controls logging output.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format: json, console.
	Format string `yaml:"format"`
	// OutputPaths for the log sink.
	OutputPaths []string `yaml:"output_paths"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Listen is the metrics HTTP listen address.
	Listen string `yaml:"listen"`
	// Namespace prefixes every metric name.
	Namespace string `yaml:"namespace"`
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Agent.Name == "" {
		return fmt.Errorf("agent.name is required")
	}
	if c.Transport.Listen == "" {
		return fmt.Errorf("transport.listen is required")
	}
	if c.Poll.Interval <= 0 {
		return fmt.Errorf("poll.interval must be positive, got %s", c.Poll.Interval.Std())
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}

// Loader loads configuration with a builder API.
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader creates a Loader with no file and the default env prefix.
func NewLoader() *Loader {
	return &Loader{envPrefix: "KQML"}
}

// WithConfigPath sets the YAML file to load.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// Load builds the configuration: defaults, then the YAML file when set,
// then environment overrides.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		data, err := os.ReadFile(l.configPath)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", l.configPath, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", l.configPath, err)
		}
	}

	if err := l.applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides individual fields from <PREFIX>_SECTION_FIELD
// variables.
func (l *Loader) applyEnv(cfg *Config) error {
	p := l.envPrefix + "_"

	setString(p+"AGENT_NAME", &cfg.Agent.Name)
	setString(p+"AGENT_DESCRIPTION", &cfg.Agent.Description)
	setString(p+"AGENT_FACILITATOR", &cfg.Agent.Facilitator)
	setString(p+"TRANSPORT_LISTEN", &cfg.Transport.Listen)
	setString(p+"TRANSPORT_WS_LISTEN", &cfg.Transport.WSListen)
	setString(p+"LOG_LEVEL", &cfg.Log.Level)
	setString(p+"LOG_FORMAT", &cfg.Log.Format)
	setString(p+"METRICS_LISTEN", &cfg.Metrics.Listen)
	setString(p+"METRICS_NAMESPACE", &cfg.Metrics.Namespace)

	if v, ok := os.LookupEnv(p + "POLL_INTERVAL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %sPOLL_INTERVAL: %w", p, err)
		}
		cfg.Poll.Interval = Duration(d)
	}
	if v, ok := os.LookupEnv(p + "METRICS_ENABLED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %sMETRICS_ENABLED: %w", p, err)
		}
		cfg.Metrics.Enabled = b
	}
	return nil
}

func setString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}
