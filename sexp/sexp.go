// Package sexp implements the s-expression wire codec for the kqml
// protocol: atoms, quoted atoms, and parenthesized lists, with ; line
// comments. The decoder hands the core an already-parsed value tree;
// malformed input never reaches the dispatcher.
package sexp

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/agentwire/kqml/types"
)

// Parse errors.
var (
	ErrUnbalanced         = errors.New("sexp: unbalanced parenthesis")
	ErrUnterminatedString = errors.New("sexp: unterminated quoted atom")
	ErrEmptyInput         = errors.New("sexp: no value in input")
	ErrTrailing           = errors.New("sexp: trailing data after value")
)

// Parse decodes exactly one value from the input string.
func Parse(input string) (types.Value, error) {
	d := NewDecoder(strings.NewReader(input))
	v, err := d.Decode()
	if err != nil {
		return nil, err
	}
	if _, err := d.Decode(); err != io.EOF {
		return nil, ErrTrailing
	}
	return v, nil
}

// Format renders a value in the wire grammar.
func Format(v types.Value) string {
	return v.String()
}

// Decoder reads a stream of top-level s-expressions.
type Decoder struct {
	r *bufio.Reader
}

// NewDecoder wraps the reader in an s-expression decoder.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Decode returns the next top-level value, or io.EOF when the stream ends
// cleanly between values.
func (d *Decoder) Decode() (types.Value, error) {
	if err := d.skipSpace(); err != nil {
		return nil, err
	}
	return d.value()
}

func (d *Decoder) skipSpace() error {
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return err
		}
		switch {
		case b == ';':
			if _, err := d.r.ReadString('\n'); err != nil && err != io.EOF {
				return err
			}
		case b == ' ' || b == '\t' || b == '\n' || b == '\r':
			// keep skipping
		default:
			return d.r.UnreadByte()
		}
	}
}

func (d *Decoder) value() (types.Value, error) {
	b, err := d.r.ReadByte()
	if err != nil {
		return nil, err
	}
	switch b {
	case '(':
		return d.list()
	case ')':
		return nil, ErrUnbalanced
	case '"':
		return d.quoted()
	default:
		if err := d.r.UnreadByte(); err != nil {
			return nil, err
		}
		return d.atom()
	}
}

func (d *Decoder) list() (types.Value, error) {
	out := types.List{}
	for {
		if err := d.skipSpace(); err != nil {
			if err == io.EOF {
				return nil, ErrUnbalanced
			}
			return nil, err
		}
		b, err := d.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return nil, ErrUnbalanced
			}
			return nil, err
		}
		if b == ')' {
			return out, nil
		}
		if err := d.r.UnreadByte(); err != nil {
			return nil, err
		}
		v, err := d.value()
		if err != nil {
			if err == io.EOF {
				return nil, ErrUnbalanced
			}
			return nil, err
		}
		out = append(out, v)
	}
}

func (d *Decoder) quoted() (types.Value, error) {
	var sb strings.Builder
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				return nil, ErrUnterminatedString
			}
			return nil, err
		}
		switch b {
		case '\\':
			esc, err := d.r.ReadByte()
			if err != nil {
				return nil, ErrUnterminatedString
			}
			sb.WriteByte(esc)
		case '"':
			return types.Atom(sb.String()), nil
		default:
			sb.WriteByte(b)
		}
	}
}

func (d *Decoder) atom() (types.Value, error) {
	var sb strings.Builder
	for {
		b, err := d.r.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if b == '(' || b == ')' || b == '"' || b == ';' ||
			b == ' ' || b == '\t' || b == '\n' || b == '\r' {
			if err := d.r.UnreadByte(); err != nil {
				return nil, err
			}
			break
		}
		sb.WriteByte(b)
	}
	if sb.Len() == 0 {
		return nil, ErrEmptyInput
	}
	return types.Atom(sb.String()), nil
}

// Encoder writes values to a stream, one per line.
type Encoder struct {
	w io.Writer
}

// NewEncoder wraps the writer in an s-expression encoder.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes one value followed by a newline.
func (e *Encoder) Encode(v types.Value) error {
	if _, err := fmt.Fprintln(e.w, v.String()); err != nil {
		return fmt.Errorf("sexp: encode: %w", err)
	}
	return nil
}
