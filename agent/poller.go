package agent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/agentwire/kqml/internal/metrics"
	"github.com/agentwire/kqml/types"
)

// DefaultPollInterval is used when the configured interval is zero.
const DefaultPollInterval = time.Second

// Sender delivers an outgoing message to its :receiver. The transport
// implements it; the poller uses it for subscription fan-out.
type Sender interface {
	Send(msg types.Message) error
}

// Poller is the recurring loop that detects staged query updates and fans
// them out to subscribers. One poller goroutine runs for the agent's
// lifetime; per-pattern delivery order follows from the single drain.
type Poller struct {
	table    *SubscriptionTable
	interval time.Duration
	sender   Sender
	name     string
	logger   *zap.Logger
	metrics  *metrics.Collector
}

// NewPoller creates a poller over the given subscription table. name is the
// agent identity used to address outgoing updates.
func NewPoller(table *SubscriptionTable, interval time.Duration, sender Sender, name string, collector *metrics.Collector, logger *zap.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		table:    table,
		interval: interval,
		sender:   sender,
		name:     name,
		logger:   logger,
		metrics:  collector,
	}
}

// Run ticks at the configured interval until the context is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("subscription poller started", zap.Duration("interval", p.interval))
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("subscription poller stopped")
			return ctx.Err()
		case <-ticker.C:
			p.Tick()
		}
	}
}

// Tick drains every staged update and re-addresses it to each subscriber of
// the pattern, using that subscriber's own response mode. Exposed so tests
// and embedders can drive the poller deterministically.
func (p *Poller) Tick() {
	p.metrics.SetSubscriptionPending(p.table.PendingCount())
	for _, d := range p.table.drain() {
		for _, sub := range d.subscribers {
			p.notify(d, sub)
		}
	}
	p.metrics.SetSubscriptionPending(0)
}

func (p *Poller) notify(d delivery, sub types.Message) {
	query, inner, ok := subscriptionQuery(sub)
	if !ok {
		p.logger.Warn("subscriber message lost its query shape",
			zap.String("pattern", d.pattern),
			zap.String("subscriber", sub.Sender()),
		)
		return
	}

	var reply types.Message
	if sub.WantsBindings() || inner.WantsBindings() {
		reply = formatBindings(sub, query, d.results, p.name)
	} else {
		reply = formatPattern(sub, query, d.results, p.name)
	}

	if p.sender == nil {
		p.logger.Warn("dropping subscription update", zap.Error(ErrNoSender),
			zap.String("pattern", d.pattern))
		return
	}
	if err := p.sender.Send(reply); err != nil {
		p.logger.Warn("subscription delivery failed",
			zap.String("pattern", d.pattern),
			zap.String("subscriber", sub.Sender()),
			zap.Error(err),
		)
		return
	}
	p.metrics.RecordSubscriptionDelivery(d.pattern)
}

// subscriptionQuery extracts the nested query from a subscribe message:
// the subscribe :content is an ask-all performative whose own :content
// holds the query pattern.
func subscriptionQuery(sub types.Message) (types.List, types.Message, bool) {
	content, ok := sub.Content()
	if !ok {
		return nil, nil, false
	}
	askAll, ok := content.(types.List)
	if !ok {
		return nil, nil, false
	}
	if head, ok := askAll.Head(); !ok || string(head) != "ask-all" {
		return nil, nil, false
	}
	inner := types.Message(askAll)
	queryVal, ok := inner.Content()
	if !ok {
		return nil, nil, false
	}
	query, ok := queryVal.(types.List)
	if !ok {
		return nil, nil, false
	}
	return query, inner, true
}
