package types

import (
	"fmt"
	"reflect"
	"strconv"
)

// Pair is a native key/value association. Listify converts it into a
// two-element List whose first element is the keyword form of Key, unless
// Key is already a query variable, in which case it is kept verbatim.
type Pair struct {
	Key   string
	Value any
}

// Char is an explicit character wrapper. Go folds rune into int32, so a bare
// int32 result serializes as an integer; wrap it in Char to get the
// character atom instead.
type Char rune

// Listify converts a native Go value into the symbolic value model.
//
// Values pass through unchanged, so Listify is idempotent on already
// serialized data. Strings and ground tokens become atoms; booleans,
// characters and integers become atoms of their canonical textual form;
// slices and arrays become lists of their serialized elements; a Pair
// becomes a two-element list.
//
// An unrecognized shape is a programming error at the capability boundary,
// not a runtime condition, and panics.
func Listify(x any) Value {
	switch v := x.(type) {
	case Value:
		return v
	case string:
		return Atom(v)
	case bool:
		return Atom(strconv.FormatBool(v))
	case Char:
		return Atom(string(rune(v)))
	case int:
		return Atom(strconv.Itoa(v))
	case int8:
		return Atom(strconv.FormatInt(int64(v), 10))
	case int16:
		return Atom(strconv.FormatInt(int64(v), 10))
	case int32:
		return Atom(strconv.FormatInt(int64(v), 10))
	case int64:
		return Atom(strconv.FormatInt(v, 10))
	case uint:
		return Atom(strconv.FormatUint(uint64(v), 10))
	case uint8:
		return Atom(strconv.FormatUint(uint64(v), 10))
	case uint16:
		return Atom(strconv.FormatUint(uint64(v), 10))
	case uint32:
		return Atom(strconv.FormatUint(uint64(v), 10))
	case uint64:
		return Atom(strconv.FormatUint(v, 10))
	case Pair:
		key := Atom(v.Key)
		if !key.IsVariable() {
			key = Atom(":" + v.Key)
		}
		return List{key, Listify(v.Value)}
	case fmt.Stringer:
		return Atom(v.String())
	}

	rv := reflect.ValueOf(x)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make(List, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = Listify(rv.Index(i).Interface())
		}
		return out
	}

	panic(fmt.Sprintf("types: cannot listify value of type %T", x))
}

// Flatten splices every two-element List entry into the output in place,
// exactly one level deep; nested two-element lists inside an entry are left
// intact. Any other entry passes through unchanged. This builds an
// alternating keyword/value sequence from association pairs without manual
// interleaving.
func Flatten(entries []Value) []Value {
	out := make([]Value, 0, len(entries))
	for _, e := range entries {
		if pair, ok := e.(List); ok && len(pair) == 2 {
			out = append(out, pair[0], pair[1])
			continue
		}
		out = append(out, e)
	}
	return out
}
