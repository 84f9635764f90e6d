package agent

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/agentwire/kqml/types"
)

// Dispatch validates a received performative and routes it to the matching
// handler. The returned bool is false when no reply should be written (the
// permissive subscribe drop and eof). Every failure is recovered locally
// into an error reply; nothing here terminates the connection or process.
func (a *Agent) Dispatch(raw types.List) (types.Message, bool) {
	msg := types.Message(raw)

	if err := Validate(raw); err != nil {
		return a.errorReply(msg, types.ErrStructural, err.Error())
	}

	verb, _ := msg.Verb()
	a.metrics.RecordMessage(verb)

	switch verb {
	case types.VerbTell:
		return a.HandleTell(msg)
	case types.VerbAskOne:
		return a.HandleAskOne(msg)
	case types.VerbAchieve:
		return a.HandleAchieve(msg)
	case types.VerbSubscribe:
		return a.HandleSubscribe(msg)
	case types.VerbPing:
		return a.HandlePing(msg)
	case types.VerbEOF:
		a.HandleEOF(msg.Sender())
		return nil, false
	default:
		return a.HandleUnknown(msg, verb)
	}
}

// HandleTell records the told content and acknowledges with a fixed value.
func (a *Agent) HandleTell(m types.Message) (types.Message, bool) {
	content, ok := m.Content()
	if !ok {
		content = types.List{}
	}
	a.logger.Info("tell received",
		zap.String("sender", m.Sender()),
		zap.Stringer("content", content),
	)
	return types.Reply(m, types.VerbReply, a.name, types.Atom("ok")), true
}

// HandleAskOne resolves the named query capability, invokes it with the
// bound (non-variable) arguments, and encodes the result via the response
// formatter in the mode the query requested.
func (a *Agent) HandleAskOne(m types.Message) (types.Message, bool) {
	query, name, ok := a.queryContent(m)
	if !ok {
		return a.errorReply(m, types.ErrInvalidContent,
			"ask-one content must be a list headed by a query name")
	}

	c, found := a.registry.Resolve(name)
	if !found || c.Kind != KindQuery {
		return a.errorReply(m, types.ErrUnknownCapability,
			fmt.Sprintf("unknown query capability: %s", name))
	}

	// Variables mark response positions; only ground arguments reach the
	// capability, in message order.
	var bound []types.Value
	for _, arg := range query.Tail() {
		if atom, ok := arg.(types.Atom); ok && atom.IsVariable() {
			continue
		}
		bound = append(bound, arg)
	}

	start := time.Now()
	results, err := c.InvokeQuery(bound)
	if err != nil {
		a.metrics.RecordInvocation(name, "error", time.Since(start))
		a.logger.Error("query capability failed",
			zap.String("capability", name),
			zap.Stringer("content", query),
			zap.Error(err),
		)
		return a.errorReply(m, types.ErrCapabilityFailure,
			fmt.Sprintf("query %s failed: %v", name, err))
	}
	a.metrics.RecordInvocation(name, "ok", time.Since(start))

	return FormatResponse(m, query, results, a.name), true
}

// HandleAchieve interprets a task content, resolves the named action
// capability, and invokes it with its full argument list. Invocation
// failures are caught, logged with context, and reported as error replies;
// the dispatcher keeps serving.
func (a *Agent) HandleAchieve(m types.Message) (types.Message, bool) {
	contentVal, ok := m.Content()
	if !ok {
		return a.errorReply(m, types.ErrInvalidContent, "achieve has no content")
	}
	content, ok := contentVal.(types.List)
	if !ok {
		return a.errorReply(m, types.ErrInvalidContent, "achieve content is not a list")
	}

	head, ok := content.Head()
	if !ok {
		return a.errorReply(m, types.ErrInvalidContent, "achieve content has no head token")
	}
	switch string(head) {
	case "task":
		// handled below
	case "actionSequence":
		return a.errorReply(m, types.ErrInvalidContent, "actionSequence content is not supported")
	case "eval":
		return a.errorReply(m, types.ErrInvalidContent, "eval content is not supported")
	default:
		return a.errorReply(m, types.ErrInvalidContent,
			fmt.Sprintf("unexpected achieve content head: %s", head))
	}

	actionVal, ok := types.Message(content).Field(types.KeyAction)
	if !ok {
		return a.errorReply(m, types.ErrInvalidContent, "task content missing :action")
	}
	action, ok := actionVal.(types.List)
	if !ok {
		return a.errorReply(m, types.ErrInvalidContent, ":action value is not a list")
	}
	name, ok := action.Head()
	if !ok {
		return a.errorReply(m, types.ErrInvalidContent, ":action list has no action name")
	}

	c, found := a.registry.Resolve(string(name))
	if !found || c.Kind != KindAction {
		return a.errorReply(m, types.ErrUnknownCapability,
			fmt.Sprintf("unknown action capability: %s", name))
	}

	start := time.Now()
	if err := c.InvokeAction(action.Tail()); err != nil {
		a.metrics.RecordInvocation(string(name), "error", time.Since(start))
		a.logger.Error("action capability failed",
			zap.String("capability", string(name)),
			zap.String("sender", m.Sender()),
			zap.Stringer("content", content),
			zap.Error(err),
		)
		return a.errorReply(m, types.ErrCapabilityFailure,
			fmt.Sprintf("action %s failed", name))
	}
	a.metrics.RecordInvocation(string(name), "ok", time.Since(start))

	return types.Reply(m, types.VerbReply, a.name, types.Atom("ok")), true
}

// HandleSubscribe adds the sender to the subscriber set of a registered,
// subscribable query. A subscribe naming an unregistered or
// non-subscribable query is silently ignored: defined, permissive behavior,
// not an error.
func (a *Agent) HandleSubscribe(m types.Message) (types.Message, bool) {
	query, _, ok := subscriptionQuery(m)
	if !ok {
		a.logger.Debug("ignoring malformed subscribe", zap.String("sender", m.Sender()))
		return nil, false
	}
	name, ok := query.Head()
	if !ok {
		return nil, false
	}

	c, found := a.registry.Resolve(string(name))
	if !found || c.Kind != KindQuery || !c.Subscribable {
		a.logger.Debug("ignoring subscribe for unavailable query",
			zap.String("query", string(name)),
			zap.String("sender", m.Sender()),
		)
		return nil, false
	}

	if !a.subs.Subscribe(c.Pattern, m) {
		return nil, false
	}
	return types.Reply(m, types.VerbReply, a.name, types.Atom("ok")), true
}

// HandlePing replies with an update performative carrying the agent's
// identity, uptime, status, lifecycle state, and host.
func (a *Agent) HandlePing(m types.Message) (types.Message, bool) {
	pairs := []types.Value{
		types.Listify(types.Pair{Key: "uptime", Value: a.Uptime().Round(time.Second).String()}),
		types.Listify(types.Pair{Key: "status", Value: "alive"}),
		types.Listify(types.Pair{Key: "state", Value: a.State()}),
		types.Listify(types.Pair{Key: "host", Value: a.host}),
	}
	content := append(types.List{types.Atom(a.name)}, types.Flatten(pairs)...)
	return types.Reply(m, types.VerbUpdate, a.name, content), true
}

// HandleUnknown reports an unexpected performative verb.
func (a *Agent) HandleUnknown(m types.Message, verb string) (types.Message, bool) {
	return a.errorReply(m, types.ErrUnknownVerb,
		fmt.Sprintf("unexpected performative: %s", verb))
}

// HandleEOF is invoked when a peer announces end of stream. The transport
// owns the connection teardown.
func (a *Agent) HandleEOF(peer string) {
	a.logger.Info("peer stream ended", zap.String("peer", peer))
}

// queryContent extracts the query list and its head name from an ask-one
// content.
func (a *Agent) queryContent(m types.Message) (types.List, string, bool) {
	contentVal, ok := m.Content()
	if !ok {
		return nil, "", false
	}
	query, ok := contentVal.(types.List)
	if !ok {
		return nil, "", false
	}
	name, ok := query.Head()
	if !ok {
		return nil, "", false
	}
	return query, string(name), true
}

func (a *Agent) errorReply(m types.Message, code types.ErrorCode, reason string) (types.Message, bool) {
	derr := types.NewError(code, reason)
	a.metrics.RecordDispatchError(string(types.GetErrorCode(derr)))
	a.logger.Warn("request rejected",
		zap.String("sender", m.Sender()),
		zap.Error(derr),
	)
	return types.ErrorReply(m, a.name, derr.Message), true
}
