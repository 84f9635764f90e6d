package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessage_FieldAccess(t *testing.T) {
	m := NewMessage(VerbAskOne,
		Field{Key: KeySender, Value: Atom("alice")},
		Field{Key: KeyContent, Value: List{Atom("loc"), Atom("?x")}},
	)

	verb, ok := m.Verb()
	require.True(t, ok)
	assert.Equal(t, VerbAskOne, verb)
	assert.Equal(t, "alice", m.Sender())

	content, ok := m.Content()
	require.True(t, ok)
	assert.True(t, content.Equal(List{Atom("loc"), Atom("?x")}))

	_, ok = m.Field("missing")
	assert.False(t, ok)
}

func TestMessage_WantsBindings(t *testing.T) {
	plain := NewMessage(VerbAskOne)
	assert.False(t, plain.WantsBindings())

	pattern := NewMessage(VerbAskOne, Field{Key: KeyResponse, Value: Atom(ResponsePattern)})
	assert.False(t, pattern.WantsBindings())

	bindings := NewMessage(VerbAskOne, Field{Key: KeyResponse, Value: Atom(":bindings")})
	assert.True(t, bindings.WantsBindings())
}

func TestReply_Addressing(t *testing.T) {
	orig := NewMessage(VerbAskOne,
		Field{Key: KeySender, Value: Atom("alice")},
		Field{Key: KeyReplyWith, Value: Atom("q1")},
	)

	r := Reply(orig, VerbTell, "bob", Atom("ok"))

	verb, ok := r.Verb()
	require.True(t, ok)
	assert.Equal(t, VerbTell, verb)
	assert.Equal(t, "bob", r.Sender())
	assert.Equal(t, "alice", r.Receiver())
	assert.Equal(t, "q1", r.InReplyTo())
	assert.NotEmpty(t, r.ReplyWith())

	content, ok := r.Content()
	require.True(t, ok)
	assert.True(t, content.Equal(Atom("ok")))
}

func TestReply_OmitsAbsentOriginFields(t *testing.T) {
	r := Reply(NewMessage(VerbPing), VerbUpdate, "bob", Atom("ok"))
	assert.Empty(t, r.Receiver())
	assert.Empty(t, r.InReplyTo())
}
