// Package kqml provides a top-level convenience entry point for creating
// agents with minimal boilerplate.
//
// Usage:
//
//	import "github.com/agentwire/kqml"
//
//	a := kqml.New(kqml.WithName("scout"))
//	a.RegisterQuery("loc", "(loc ?x ?y)", true, locQuery)
//
// This is a thin wrapper around [agent.New]. Use the agent package directly
// when you need a metrics collector or a prebuilt config.
package kqml

import (
	"time"

	"go.uber.org/zap"

	"github.com/agentwire/kqml/agent"
)

// Option configures the agent created by [New].
type Option func(*options)

type options struct {
	cfg    agent.Config
	logger *zap.Logger
}

// WithName sets the agent identity used as :sender on outgoing messages.
func WithName(name string) Option {
	return func(o *options) { o.cfg.Name = name }
}

// WithDescription sets the human-readable summary for register/advertise.
func WithDescription(desc string) Option {
	return func(o *options) { o.cfg.Description = desc }
}

// WithHost overrides the host identity reported by ping.
func WithHost(host string) Option {
	return func(o *options) { o.cfg.Host = host }
}

// WithPollInterval sets the subscription poll tick.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.cfg.PollInterval = d }
}

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New creates an [agent.Agent] with the given options. Without options the
// agent is named "kqml-agent", logs nowhere, and polls every second.
func New(opts ...Option) *agent.Agent {
	o := options{
		cfg: agent.Config{Name: "kqml-agent"},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return agent.New(o.cfg, nil, o.logger)
}
