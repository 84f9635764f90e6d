package agent

import "errors"

// Structural validation errors, in the order Validate checks them.
var (
	// ErrNotAToken indicates the performative head is not an atom.
	ErrNotAToken = errors.New("performative head is not a token")
	// ErrNotAKeyword indicates an expected-keyword position holds something
	// other than a :-prefixed atom.
	ErrNotAKeyword = errors.New("expected a keyword atom")
	// ErrMissingValue indicates a trailing keyword with no paired value.
	ErrMissingValue = errors.New("keyword has no paired value")
)

// ErrNoSender indicates the agent has no outbound sender configured for
// subscription delivery.
var ErrNoSender = errors.New("no outbound sender configured")
