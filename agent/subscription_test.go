package agent

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/agentwire/kqml/types"
)

type captureSender struct {
	mu   sync.Mutex
	sent []types.Message
}

func (s *captureSender) Send(m types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, m)
	return nil
}

func (s *captureSender) take() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.sent
	s.sent = nil
	return out
}

func newTestAgent(sender Sender) *Agent {
	a := New(Config{
		Name:         "bob",
		Host:         "testhost",
		PollInterval: time.Hour, // ticks driven manually
	}, nil, zap.NewNop())
	if sender != nil {
		a.SetSender(sender)
	}
	return a
}

func subscribeMsg(sender string, query types.List, fields ...types.Field) types.Message {
	inner := types.NewMessage("ask-all", types.Field{Key: types.KeyContent, Value: query})
	all := append([]types.Field{
		{Key: types.KeySender, Value: types.Atom(sender)},
		{Key: types.KeyReplyWith, Value: types.Atom("sub-" + sender)},
		{Key: types.KeyContent, Value: types.List(inner)},
	}, fields...)
	return types.NewMessage(types.VerbSubscribe, all...)
}

func locQuery() types.List {
	return types.List{types.Atom("loc"), types.Atom("?x"), types.Atom("?y")}
}

func registerLoc(a *Agent) {
	a.RegisterQuery("loc", "(loc ?x ?y)", true, func(args []types.Value) ([]any, error) {
		return []any{"0", "0"}, nil
	})
}

func TestSubscription_CoalescesToLatestValue(t *testing.T) {
	sender := &captureSender{}
	a := newTestAgent(sender)
	registerLoc(a)

	_, replied := a.Dispatch(types.List(subscribeMsg("alice", locQuery())))
	require.True(t, replied)

	// Two stagings within one tick interval: only the second survives.
	a.UpdateQuery("(loc ?x ?y)", "1", "1")
	a.UpdateQuery("(loc ?x ?y)", "2", "2")
	a.Poller().Tick()

	sent := sender.take()
	require.Len(t, sent, 1)
	content, ok := sent[0].Content()
	require.True(t, ok)
	assert.True(t, content.Equal(types.List{types.Atom("loc"), types.Atom("2"), types.Atom("2")}),
		"got %s", sent[0])
	assert.Equal(t, "alice", sent[0].Receiver())
}

func TestSubscription_EdgeTriggered(t *testing.T) {
	sender := &captureSender{}
	a := newTestAgent(sender)
	registerLoc(a)

	a.Dispatch(types.List(subscribeMsg("alice", locQuery())))
	a.UpdateQuery("(loc ?x ?y)", "1", "1")
	a.Poller().Tick()
	require.Len(t, sender.take(), 1)

	// Nothing staged since the last drain: a tick delivers nothing.
	a.Poller().Tick()
	assert.Empty(t, sender.take())

	// Staging the already-delivered value is a no-op.
	a.UpdateQuery("(loc ?x ?y)", "1", "1")
	a.Poller().Tick()
	assert.Empty(t, sender.take())

	// A genuinely new value is delivered again.
	a.UpdateQuery("(loc ?x ?y)", "3", "4")
	a.Poller().Tick()
	assert.Len(t, sender.take(), 1)
}

func TestSubscription_LateSubscriberReceivesLatestOnce(t *testing.T) {
	sender := &captureSender{}
	a := newTestAgent(sender)
	registerLoc(a)

	a.Dispatch(types.List(subscribeMsg("alice", locQuery())))
	a.UpdateQuery("(loc ?x ?y)", "1", "1")

	// Carol subscribes after the first staging but before the tick. The
	// subscribe resets the slots, so only data staged afterwards flows.
	a.Dispatch(types.List(subscribeMsg("carol", locQuery())))
	a.UpdateQuery("(loc ?x ?y)", "2", "2")
	a.Poller().Tick()

	sent := sender.take()
	require.Len(t, sent, 2)
	for _, m := range sent {
		content, ok := m.Content()
		require.True(t, ok)
		assert.True(t, content.Equal(types.List{types.Atom("loc"), types.Atom("2"), types.Atom("2")}),
			"got %s", m)
	}

	a.Poller().Tick()
	assert.Empty(t, sender.take())
}

func TestSubscription_PerSubscriberResponseMode(t *testing.T) {
	sender := &captureSender{}
	a := newTestAgent(sender)
	registerLoc(a)

	a.Dispatch(types.List(subscribeMsg("alice", locQuery())))
	a.Dispatch(types.List(subscribeMsg("carol", locQuery(),
		types.Field{Key: types.KeyResponse, Value: types.Atom(":bindings")})))

	a.UpdateQuery("(loc ?x ?y)", "7", "8")
	a.Poller().Tick()

	sent := sender.take()
	require.Len(t, sent, 2)

	byReceiver := map[string]types.Message{}
	for _, m := range sent {
		byReceiver[m.Receiver()] = m
	}

	aliceContent, _ := byReceiver["alice"].Content()
	assert.True(t, aliceContent.Equal(types.List{types.Atom("loc"), types.Atom("7"), types.Atom("8")}))

	carolContent, _ := byReceiver["carol"].Content()
	assert.True(t, carolContent.Equal(types.List{
		types.Atom("?x"), types.Atom("7"),
		types.Atom("?y"), types.Atom("8"),
	}), "got %s", byReceiver["carol"])
}

func TestSubscriptionTable_UpdateUnknownPatternIgnored(t *testing.T) {
	table := NewSubscriptionTable(nil)
	table.UpdateQuery("(ghost ?x)", "1")
	assert.Zero(t, table.PendingCount())
}

func TestSubscriptionTable_PendingCount(t *testing.T) {
	table := NewSubscriptionTable(nil)
	table.createEntry("(a ?x)")
	table.createEntry("(b ?x)")

	table.UpdateQuery("(a ?x)", "1")
	assert.Equal(t, 1, table.PendingCount())

	table.UpdateQuery("(b ?x)", "1")
	assert.Equal(t, 2, table.PendingCount())

	table.drain()
	assert.Zero(t, table.PendingCount())
}
