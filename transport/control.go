package transport

import (
	"context"
	"fmt"
	"net"

	"github.com/google/uuid"

	"github.com/agentwire/kqml/sexp"
	"github.com/agentwire/kqml/types"
)

// Register announces the agent to a facilitator: dial, send exactly one
// register performative, close.
func Register(ctx context.Context, facilitatorAddr, agentName, host string) error {
	msg := types.NewMessage(types.VerbRegister,
		types.Field{Key: types.KeySender, Value: types.Atom(agentName)},
		types.Field{Key: types.KeyReplyWith, Value: types.Atom(uuid.NewString())},
		types.Field{Key: types.KeyContent, Value: types.Atom(host)},
	)
	return sendOneShot(ctx, facilitatorAddr, msg)
}

// Advertise tells a facilitator that this agent answers the given query
// pattern, e.g. "(loc ?x ?y)". One performative per call, then the
// connection closes.
func Advertise(ctx context.Context, facilitatorAddr, agentName, pattern string) error {
	parsed, err := sexp.Parse(pattern)
	if err != nil {
		return fmt.Errorf("transport: bad advertise pattern %q: %w", pattern, err)
	}
	content := types.List(types.NewMessage(types.VerbAskOne,
		types.Field{Key: types.KeyContent, Value: parsed},
	))
	msg := types.NewMessage(types.VerbAdvertise,
		types.Field{Key: types.KeySender, Value: types.Atom(agentName)},
		types.Field{Key: types.KeyReplyWith, Value: types.Atom(uuid.NewString())},
		types.Field{Key: types.KeyContent, Value: content},
	)
	return sendOneShot(ctx, facilitatorAddr, msg)
}

func sendOneShot(ctx context.Context, addr string, msg types.Message) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetWriteDeadline(deadline)
	}
	return sexp.NewEncoder(conn).Encode(types.List(msg))
}
