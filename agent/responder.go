package agent

import (
	"github.com/agentwire/kqml/types"
)

// FormatResponse encodes a capability's result sequence into a reply to the
// originating query. The mode comes from the query's :response keyword:
// absent or equal to the pattern marker selects pattern form, any other
// explicit value selects bindings form.
func FormatResponse(orig types.Message, query types.List, results []any, sender string) types.Message {
	if orig.WantsBindings() {
		return formatBindings(orig, query, results, sender)
	}
	return formatPattern(orig, query, results, sender)
}

// formatPattern substitutes results into the query's variable positions.
// Ground arguments are copied unchanged; each placeholder consumes one
// result, except a placeholder in the final position absorbs all remaining
// results as a single nested list when more results remain than placeholder
// slots (trailing-variable rest capture).
func formatPattern(orig types.Message, query types.List, results []any, sender string) types.Message {
	head, _ := query.Head()
	args := query.Tail()

	content := make(types.List, 0, len(query))
	content = append(content, head)

	ri := 0
	for i, arg := range args {
		a, ok := arg.(types.Atom)
		if !ok || !a.IsVariable() {
			content = append(content, arg)
			continue
		}
		content = append(content, consume(args, results, i, &ri))
	}

	return types.Reply(orig, types.VerbTell, sender, content)
}

// formatBindings produces explicit variable/value pairs instead of a
// substituted pattern, flattened into an alternating list. Consumption and
// rest capture follow the same rules as pattern mode.
func formatBindings(orig types.Message, query types.List, results []any, sender string) types.Message {
	args := query.Tail()

	pairs := make([]types.Value, 0, len(args))
	ri := 0
	for i, arg := range args {
		a, ok := arg.(types.Atom)
		if !ok || !a.IsVariable() {
			continue
		}
		value := consume(args, results, i, &ri)
		pairs = append(pairs, types.List{a, value})
	}

	return types.Reply(orig, types.VerbTell, sender, types.List(types.Flatten(pairs)))
}

// consume takes the next result for the placeholder at argument position i.
// A placeholder in the last position absorbs every result not yet consumed
// by earlier placeholders when more than one remains; a placeholder with no
// result left passes through unbound.
func consume(args types.List, results []any, i int, ri *int) types.Value {
	remaining := len(results) - *ri
	if i == len(args)-1 && remaining > 1 {
		rest := make(types.List, 0, remaining)
		for _, r := range results[*ri:] {
			rest = append(rest, types.Listify(r))
		}
		*ri = len(results)
		return rest
	}
	if remaining < 1 {
		return args[i]
	}
	v := types.Listify(results[*ri])
	*ri++
	return v
}
