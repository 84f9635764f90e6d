package config

import "time"

// DefaultConfig returns the baseline configuration every load starts from.
func DefaultConfig() *Config {
	return &Config{
		Agent: AgentConfig{
			Name:        "kqml-agent",
			Description: "kqml agent",
		},
		Transport: TransportConfig{
			Listen:      ":7450",
			AcceptRate:  100,
			AcceptBurst: 20,
		},
		Poll: PollConfig{
			Interval: Duration(time.Second),
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "json",
			OutputPaths: []string{"stdout"},
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Listen:    ":9102",
			Namespace: "kqml",
		},
	}
}
