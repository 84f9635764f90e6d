package agent

import (
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/agentwire/kqml/types"
)

// subEntry holds the live state for one subscribable query pattern: the
// subscriber set plus the last-delivered and pending-new result slots.
// hasPending/hasDelivered distinguish "empty result" from "no result".
type subEntry struct {
	subscribers []types.Message

	delivered    []any
	hasDelivered bool

	pending    []any
	hasPending bool
}

// SubscriptionTable is the subscription registry: per-pattern subscriber
// sets and change-detection slots, keyed by the canonical textual form of
// the query pattern. It is shared by connection goroutines (staging updates)
// and the poller (draining them), so every access takes the table mutex.
type SubscriptionTable struct {
	mu      sync.Mutex
	entries map[string]*subEntry
	logger  *zap.Logger
}

// NewSubscriptionTable creates an empty subscription table.
func NewSubscriptionTable(logger *zap.Logger) *SubscriptionTable {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubscriptionTable{
		entries: make(map[string]*subEntry),
		logger:  logger,
	}
}

// createEntry makes the registry slot for a pattern. Called by the registry
// at startup, before any subscribe referencing the pattern can be accepted.
func (t *SubscriptionTable) createEntry(pattern string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[pattern]; !ok {
		t.entries[pattern] = &subEntry{}
	}
}

// Subscribe adds the original subscribe message to the pattern's subscriber
// set and resets both result slots, so the subscriber's first delivery is
// driven by fresh data. ok is false when the pattern has no entry, which
// the dispatcher treats as the documented silent drop.
func (t *SubscriptionTable) Subscribe(pattern string, msg types.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[pattern]
	if !ok {
		return false
	}
	e.subscribers = append(e.subscribers, msg)
	e.delivered, e.hasDelivered = nil, false
	e.pending, e.hasPending = nil, false

	t.logger.Info("subscriber added",
		zap.String("pattern", pattern),
		zap.String("sender", msg.Sender()),
		zap.Int("subscribers", len(e.subscribers)),
	)
	return true
}

// UpdateQuery stages new results for a pattern. The offered arguments are
// compared against the last-delivered value, not the most recently staged
// one; if they differ they become the pending-new value. Staging within one
// poll interval overwrites earlier staged values: only the latest survives
// to the next tick (lossy coalescing, not a queue).
func (t *SubscriptionTable) UpdateQuery(pattern string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[pattern]
	if !ok {
		return
	}
	if e.hasDelivered && reflect.DeepEqual(args, e.delivered) {
		return
	}
	e.pending = args
	e.hasPending = true
}

// delivery is one pending update paired with its subscribers, drained by
// the poller under the table lock.
type delivery struct {
	pattern     string
	results     []any
	subscribers []types.Message
}

// drain collects every pattern with a staged value, moves pending into
// delivered, and resets every entry's pending slot regardless of whether it
// held a value. The reset makes updates edge-triggered: a value must be
// freshly staged after each delivery to be sent again.
func (t *SubscriptionTable) drain() []delivery {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []delivery
	for pattern, e := range t.entries {
		if e.hasPending {
			subs := make([]types.Message, len(e.subscribers))
			copy(subs, e.subscribers)
			out = append(out, delivery{pattern: pattern, results: e.pending, subscribers: subs})

			e.delivered, e.hasDelivered = e.pending, true
		}
		e.pending, e.hasPending = nil, false
	}
	return out
}

// PendingCount returns the number of patterns with a staged update.
func (t *SubscriptionTable) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for _, e := range t.entries {
		if e.hasPending {
			n++
		}
	}
	return n
}
