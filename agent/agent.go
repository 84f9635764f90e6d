// Package agent implements the message-handling core of a kqml agent:
// performative validation, capability dispatch, response formatting, and the
// polling subscription engine. Transports deliver parsed performatives to
// the dispatcher and write the replies it produces; the agent itself never
// performs blocking I/O.
package agent

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agentwire/kqml/internal/metrics"
)

// Lifecycle states reported by ping.
const (
	StateIdle    = "idle"
	StateServing = "serving"
)

// Config holds the agent's identity and poll settings.
type Config struct {
	// Name is the agent identity used as :sender on every outgoing message.
	Name string
	// Description is a human-readable summary for register/advertise.
	Description string
	// Host overrides the host identity reported by ping. Defaults to
	// os.Hostname.
	Host string
	// PollInterval is the subscription poll tick. Defaults to
	// DefaultPollInterval.
	PollInterval time.Duration
}

// Agent owns the process-wide capability and subscription registries and
// dispatches incoming performatives. Create one at startup, register every
// capability, then Run it.
type Agent struct {
	name        string
	description string
	host        string
	started     time.Time

	mu    sync.RWMutex
	state string

	registry *Registry
	subs     *SubscriptionTable
	poller   *Poller
	sender   Sender

	logger  *zap.Logger
	metrics *metrics.Collector
}

// New creates an agent. collector may be nil to disable metrics; logger may
// be nil for a no-op logger.
func New(cfg Config, collector *metrics.Collector, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	host := cfg.Host
	if host == "" {
		if h, err := os.Hostname(); err == nil {
			host = h
		} else {
			host = "unknown"
		}
	}

	a := &Agent{
		name:        cfg.Name,
		description: cfg.Description,
		host:        host,
		started:     time.Now(),
		state:       StateIdle,
		logger:      logger.With(zap.String("agent", cfg.Name)),
		metrics:     collector,
	}
	a.subs = NewSubscriptionTable(a.logger)
	a.registry = NewRegistry(a.subs, a.logger)
	a.poller = NewPoller(a.subs, cfg.PollInterval, nil, cfg.Name, collector, a.logger)
	return a
}

// Name returns the agent identity.
func (a *Agent) Name() string { return a.name }

// Description returns the agent's human-readable summary.
func (a *Agent) Description() string { return a.description }

// State returns the current lifecycle state.
func (a *Agent) State() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *Agent) setState(s string) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// Uptime returns the time since the agent was created.
func (a *Agent) Uptime() time.Duration {
	return time.Since(a.started)
}

// SetSender wires the outbound transport used for subscription fan-out.
// Call before Run.
func (a *Agent) SetSender(s Sender) {
	a.sender = s
	a.poller.sender = s
}

// RegisterQuery registers a query capability. Startup only.
func (a *Agent) RegisterQuery(name, pattern string, subscribable bool, fn QueryFunc) {
	a.registry.RegisterQuery(name, pattern, subscribable, fn)
}

// RegisterAction registers an action capability. Startup only.
func (a *Agent) RegisterAction(name string, fn ActionFunc) {
	a.registry.RegisterAction(name, fn)
}

// Registry exposes the capability registry for register/advertise control
// flows.
func (a *Agent) Registry() *Registry { return a.registry }

// UpdateQuery stages new results for a subscribable query pattern.
// Capabilities call it whenever their underlying state may have changed; the
// poller delivers the latest staged value on its next tick.
func (a *Agent) UpdateQuery(pattern string, args ...any) {
	a.subs.UpdateQuery(pattern, args...)
}

// Poller exposes the subscription poller, mainly so embedders can drive
// ticks manually.
func (a *Agent) Poller() *Poller { return a.poller }

// Run starts the subscription poll loop and blocks until the context is
// cancelled. In-flight capability invocations on connection goroutines are
// not cancelled; they run to completion.
func (a *Agent) Run(ctx context.Context) error {
	a.setState(StateServing)
	defer a.setState(StateIdle)

	a.logger.Info("agent serving",
		zap.String("host", a.host),
		zap.Strings("capabilities", a.registry.Names()),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.poller.Run(ctx) })

	err := g.Wait()
	if err == context.Canceled {
		return nil
	}
	return err
}
