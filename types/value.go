// Package types provides the core symbolic value model used across the kqml
// framework. This package has ZERO dependencies on other kqml packages to
// avoid circular imports. All other packages should import types from here.
package types

import "strings"

// Value is a node in the symbolic s-expression tree: either an Atom or an
// ordered List of Values. Equality is structural.
type Value interface {
	// String renders the value in the wire grammar.
	String() string
	// Equal reports structural equality with another value.
	Equal(other Value) bool
}

// Atom is a ground token, keyword, or variable placeholder.
type Atom string

// List is an ordered sequence of values. Lists may nest arbitrarily.
type List []Value

// IsVariable reports whether the atom is an unbound query placeholder (?x).
func (a Atom) IsVariable() bool {
	return strings.HasPrefix(string(a), "?")
}

// IsKeyword reports whether the atom is a performative keyword (:content).
func (a Atom) IsKeyword() bool {
	return strings.HasPrefix(string(a), ":")
}

// String renders the atom, quoting it when it contains characters the wire
// grammar reserves.
func (a Atom) String() string {
	if a == "" || strings.ContainsAny(string(a), " \t\n\r()\";") {
		return `"` + strings.ReplaceAll(string(a), `"`, `\"`) + `"`
	}
	return string(a)
}

// Equal reports structural equality.
func (a Atom) Equal(other Value) bool {
	b, ok := other.(Atom)
	return ok && a == b
}

// String renders the list as (e1 e2 ... en).
func (l List) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, v := range l {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(v.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// Equal reports structural equality: same length, element-wise equal.
func (l List) Equal(other Value) bool {
	m, ok := other.(List)
	if !ok || len(l) != len(m) {
		return false
	}
	for i := range l {
		if !l[i].Equal(m[i]) {
			return false
		}
	}
	return true
}

// Head returns the first element as an atom. ok is false when the list is
// empty or headed by a nested list.
func (l List) Head() (Atom, bool) {
	if len(l) == 0 {
		return "", false
	}
	a, ok := l[0].(Atom)
	return a, ok
}

// Tail returns the elements after the head.
func (l List) Tail() List {
	if len(l) == 0 {
		return nil
	}
	return l[1:]
}
