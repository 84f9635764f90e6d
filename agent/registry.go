package agent

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/agentwire/kqml/types"
)

// CapabilityKind classifies a capability as a query or an action.
type CapabilityKind string

const (
	// KindQuery capabilities answer ask-one and may accept subscribers.
	KindQuery CapabilityKind = "query"
	// KindAction capabilities are invoked by achieve.
	KindAction CapabilityKind = "action"
)

// QueryFunc answers a query. It receives the bound (non-variable) arguments
// in message order and returns an ordered sequence of native result values
// for the response formatter to serialize.
type QueryFunc func(args []types.Value) ([]any, error)

// ActionFunc performs an action. It receives every argument after the
// action name, unfiltered.
type ActionFunc func(args []types.Value) error

// Capability is a named, invocable query or action the agent exposes.
// Capabilities are registered once at startup and immutable thereafter.
type Capability struct {
	Name string
	Kind CapabilityKind

	// Pattern is the canonical textual form of the query pattern, e.g.
	// "(loc ?x ?y)". It keys the subscription table for subscribable
	// queries. Empty for actions.
	Pattern string

	// Subscribable reports whether subscribe requests for Pattern are
	// accepted.
	Subscribable bool

	query  QueryFunc
	action ActionFunc
}

// InvokeQuery calls the query function, converting a panic into an error so
// a misbehaving capability never takes down the dispatcher.
func (c *Capability) InvokeQuery(args []types.Value) (results []any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("capability %q panicked: %v", c.Name, r)
		}
	}()
	return c.query(args)
}

// InvokeAction calls the action function with the same panic isolation.
func (c *Capability) InvokeAction(args []types.Value) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("capability %q panicked: %v", c.Name, r)
		}
	}()
	return c.action(args)
}

// Registry maps capability names to their implementations. Registration
// happens once at startup; it is not safe to register after the dispatcher
// begins serving requests.
type Registry struct {
	mu     sync.RWMutex
	caps   map[string]*Capability
	subs   *SubscriptionTable
	logger *zap.Logger
}

// NewRegistry creates a capability registry. The subscription table receives
// an entry for every subscribable query at registration time, before any
// subscribe referencing it can arrive.
func NewRegistry(subs *SubscriptionTable, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		caps:   make(map[string]*Capability),
		subs:   subs,
		logger: logger,
	}
}

// RegisterAction registers an action capability under the given name.
func (r *Registry) RegisterAction(name string, fn ActionFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.caps[name] = &Capability{Name: name, Kind: KindAction, action: fn}
	r.logger.Info("action capability registered", zap.String("name", name))
}

// RegisterQuery registers a query capability. A subscribable query
// atomically gains its subscription entry (empty subscriber set, both
// result slots empty) so a subscribe can never race registration.
func (r *Registry) RegisterQuery(name, pattern string, subscribable bool, fn QueryFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.caps[name] = &Capability{
		Name:         name,
		Kind:         KindQuery,
		Pattern:      pattern,
		Subscribable: subscribable,
		query:        fn,
	}
	if subscribable && r.subs != nil {
		r.subs.createEntry(pattern)
	}
	r.logger.Info("query capability registered",
		zap.String("name", name),
		zap.String("pattern", pattern),
		zap.Bool("subscribable", subscribable),
	)
}

// Resolve looks up a capability by name.
func (r *Registry) Resolve(name string) (*Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.caps[name]
	return c, ok
}

// Names returns the registered capability names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.caps))
	for n := range r.caps {
		names = append(names, n)
	}
	return names
}
