package types

import "github.com/google/uuid"

// Performative verbs understood by the dispatcher.
const (
	VerbTell      = "tell"
	VerbAskOne    = "ask-one"
	VerbAchieve   = "achieve"
	VerbSubscribe = "subscribe"
	VerbPing      = "ping"
	VerbEOF       = "eof"
	VerbUpdate    = "update"
	VerbError     = "error"
	VerbReply     = "reply"
	VerbRegister  = "register"
	VerbAdvertise = "advertise"
)

// Standard performative keywords, without the leading colon.
const (
	KeySender    = "sender"
	KeyReceiver  = "receiver"
	KeyContent   = "content"
	KeyReplyWith = "reply-with"
	KeyInReplyTo = "in-reply-to"
	KeyResponse  = "response"
	KeyLanguage  = "language"
	KeyComment   = "comment"
	KeyAction    = "action"
)

// ResponsePattern is the :response marker selecting pattern-mode replies.
// It is also the default when the keyword is absent.
const ResponsePattern = ":pattern"

// Message is a performative: a list whose head is the verb atom followed by
// alternating keyword/value pairs. A Message is never mutated after receipt;
// replies are newly constructed.
type Message List

// Field is a keyword/value pair used when constructing messages. Key is
// given without the leading colon.
type Field struct {
	Key   string
	Value Value
}

// NewMessage constructs a performative from a verb and keyword fields.
func NewMessage(verb string, fields ...Field) Message {
	m := make(Message, 0, 1+2*len(fields))
	m = append(m, Atom(verb))
	for _, f := range fields {
		m = append(m, Atom(":"+f.Key), f.Value)
	}
	return m
}

// Verb returns the performative verb. ok is false for an empty message or a
// non-atom head.
func (m Message) Verb() (string, bool) {
	head, ok := List(m).Head()
	return string(head), ok
}

// Field returns the value following the given keyword (without colon).
func (m Message) Field(key string) (Value, bool) {
	want := Atom(":" + key)
	rest := List(m).Tail()
	for i := 0; i+1 < len(rest); i += 2 {
		if kw, ok := rest[i].(Atom); ok && kw == want {
			return rest[i+1], true
		}
	}
	return nil, false
}

// Content returns the :content value.
func (m Message) Content() (Value, bool) { return m.Field(KeyContent) }

// Sender returns the :sender atom text, or "" when absent.
func (m Message) Sender() string { return m.atomField(KeySender) }

// Receiver returns the :receiver atom text, or "" when absent.
func (m Message) Receiver() string { return m.atomField(KeyReceiver) }

// ReplyWith returns the :reply-with atom text, or "" when absent.
func (m Message) ReplyWith() string { return m.atomField(KeyReplyWith) }

// InReplyTo returns the :in-reply-to atom text, or "" when absent.
func (m Message) InReplyTo() string { return m.atomField(KeyInReplyTo) }

// WantsBindings reports whether the message requests bindings-form
// responses. Absent :response, or :response equal to the pattern marker,
// selects pattern form.
func (m Message) WantsBindings() bool {
	v, ok := m.Field(KeyResponse)
	if !ok {
		return false
	}
	a, ok := v.(Atom)
	return !ok || string(a) != ResponsePattern
}

func (m Message) atomField(key string) string {
	v, ok := m.Field(key)
	if !ok {
		return ""
	}
	if a, ok := v.(Atom); ok {
		return string(a)
	}
	return ""
}

// String renders the message in the wire grammar.
func (m Message) String() string { return List(m).String() }

// Reply constructs a response to m: receiver is m's sender, sender is the
// given agent name, in-reply-to carries m's reply-with when present, and a
// fresh reply-with id is attached for conversation tracking.
func Reply(m Message, verb, sender string, content Value) Message {
	fields := []Field{
		{Key: KeySender, Value: Atom(sender)},
	}
	if to := m.Sender(); to != "" {
		fields = append(fields, Field{Key: KeyReceiver, Value: Atom(to)})
	}
	if rw := m.ReplyWith(); rw != "" {
		fields = append(fields, Field{Key: KeyInReplyTo, Value: Atom(rw)})
	}
	fields = append(fields,
		Field{Key: KeyReplyWith, Value: Atom(uuid.NewString())},
		Field{Key: KeyContent, Value: content},
	)
	return NewMessage(verb, fields...)
}

// ErrorReply constructs an error performative addressed back to m's sender,
// carrying a human-readable reason in :comment.
func ErrorReply(m Message, sender, reason string) Message {
	fields := []Field{
		{Key: KeySender, Value: Atom(sender)},
	}
	if to := m.Sender(); to != "" {
		fields = append(fields, Field{Key: KeyReceiver, Value: Atom(to)})
	}
	if rw := m.ReplyWith(); rw != "" {
		fields = append(fields, Field{Key: KeyInReplyTo, Value: Atom(rw)})
	}
	fields = append(fields, Field{Key: KeyComment, Value: Atom(reason)})
	return NewMessage(VerbError, fields...)
}
