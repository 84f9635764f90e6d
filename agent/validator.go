package agent

import (
	"fmt"

	"github.com/agentwire/kqml/types"
)

// Validate checks that a received performative has the required shape: an
// atom head followed by alternating keyword/value pairs. It is pure and
// side-effect-free; a malformed message yields a typed error, never a crash.
//
// Rules are checked in order: the head must be an atom (ErrNotAToken); every
// expected-keyword position must hold a :-prefixed atom (ErrNotAKeyword); a
// dangling keyword with no value fails with ErrMissingValue.
func Validate(msg types.List) error {
	if _, ok := msg.Head(); !ok {
		return fmt.Errorf("%w: %s", ErrNotAToken, msg)
	}

	rest := msg.Tail()
	for i := 0; i < len(rest); i += 2 {
		kw, ok := rest[i].(types.Atom)
		if !ok || !kw.IsKeyword() {
			return fmt.Errorf("%w: position %d holds %s", ErrNotAKeyword, i+1, rest[i])
		}
		if i+1 >= len(rest) {
			return fmt.Errorf("%w: %s", ErrMissingValue, kw)
		}
	}
	return nil
}
