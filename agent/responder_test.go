package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentwire/kqml/types"
)

func askOne(query types.List, fields ...types.Field) types.Message {
	all := append([]types.Field{
		{Key: types.KeySender, Value: types.Atom("alice")},
		{Key: types.KeyReplyWith, Value: types.Atom("q1")},
		{Key: types.KeyContent, Value: query},
	}, fields...)
	return types.NewMessage(types.VerbAskOne, all...)
}

func replyContent(t *testing.T, m types.Message) types.Value {
	t.Helper()
	content, ok := m.Content()
	require.True(t, ok)
	return content
}

func TestFormatResponse_PatternRoundTrip(t *testing.T) {
	query := types.List{types.Atom("loc"), types.Atom("?x"), types.Atom("?y")}
	reply := FormatResponse(askOne(query), query, []any{"5", "6"}, "bob")

	verb, _ := reply.Verb()
	assert.Equal(t, types.VerbTell, verb)
	assert.Equal(t, "alice", reply.Receiver())
	assert.Equal(t, "q1", reply.InReplyTo())

	want := types.List{types.Atom("loc"), types.Atom("5"), types.Atom("6")}
	assert.True(t, replyContent(t, reply).Equal(want), "got %s", reply)
}

func TestFormatResponse_GroundArgumentsCopied(t *testing.T) {
	query := types.List{types.Atom("dist"), types.Atom("home"), types.Atom("?d")}
	reply := FormatResponse(askOne(query), query, []any{"12"}, "bob")

	want := types.List{types.Atom("dist"), types.Atom("home"), types.Atom("12")}
	assert.True(t, replyContent(t, reply).Equal(want), "got %s", reply)
}

func TestFormatResponse_RestCapture(t *testing.T) {
	query := types.List{types.Atom("item"), types.Atom("?a"), types.Atom("?rest")}
	reply := FormatResponse(askOne(query), query, []any{"1", "2", "3"}, "bob")

	want := types.List{
		types.Atom("item"),
		types.Atom("1"),
		types.List{types.Atom("2"), types.Atom("3")},
	}
	assert.True(t, replyContent(t, reply).Equal(want), "got %s", reply)
}

func TestFormatResponse_TrailingVariableExactFitDoesNotNest(t *testing.T) {
	query := types.List{types.Atom("loc"), types.Atom("?x"), types.Atom("?y")}
	reply := FormatResponse(askOne(query), query, []any{"5", "6"}, "bob")

	// One result per placeholder: no rest capture when counts line up.
	want := types.List{types.Atom("loc"), types.Atom("5"), types.Atom("6")}
	assert.True(t, replyContent(t, reply).Equal(want))
}

func TestFormatResponse_FirstAndOnlyVariableAbsorbsAll(t *testing.T) {
	// The intended rest-capture contract: the trailing variable absorbs
	// exactly the results not consumed by earlier placeholders, even when
	// it is the first variable consumed.
	query := types.List{types.Atom("all"), types.Atom("?rest")}
	reply := FormatResponse(askOne(query), query, []any{"a", "b", "c"}, "bob")

	want := types.List{
		types.Atom("all"),
		types.List{types.Atom("a"), types.Atom("b"), types.Atom("c")},
	}
	assert.True(t, replyContent(t, reply).Equal(want), "got %s", reply)
}

func TestFormatResponse_BindingsMode(t *testing.T) {
	query := types.List{types.Atom("item"), types.Atom("?a"), types.Atom("?rest")}
	orig := askOne(query, types.Field{Key: types.KeyResponse, Value: types.Atom(":bindings")})

	reply := FormatResponse(orig, query, []any{"1", "2", "3"}, "bob")

	// Flattened alternating pairs: (?a 1 ?rest (2 3))
	want := types.List{
		types.Atom("?a"), types.Atom("1"),
		types.Atom("?rest"), types.List{types.Atom("2"), types.Atom("3")},
	}
	assert.True(t, replyContent(t, reply).Equal(want), "got %s", reply)
}

func TestFormatResponse_BindingsSkipsGroundArguments(t *testing.T) {
	query := types.List{types.Atom("dist"), types.Atom("home"), types.Atom("?d")}
	orig := askOne(query, types.Field{Key: types.KeyResponse, Value: types.Atom(":bindings")})

	reply := FormatResponse(orig, query, []any{"12"}, "bob")
	want := types.List{types.Atom("?d"), types.Atom("12")}
	assert.True(t, replyContent(t, reply).Equal(want), "got %s", reply)
}

func TestFormatResponse_UnderflowLeavesVariableUnbound(t *testing.T) {
	query := types.List{types.Atom("loc"), types.Atom("?x"), types.Atom("?y")}
	reply := FormatResponse(askOne(query), query, []any{"5"}, "bob")

	want := types.List{types.Atom("loc"), types.Atom("5"), types.Atom("?y")}
	assert.True(t, replyContent(t, reply).Equal(want), "got %s", reply)
}
