package upstream

import (
	"strings"

	"github.com/mikrotik-fleet/routerproxy/pkg/proto"
	"github.com/mikrotik-fleet/routerproxy/pkg/wire"
)

// isUntranslatableFilterKey reports whether a filter's key carries a
// comparison operator (">", "<", "~") that this proxy's simplified query
// translator does not push down to the device. Plain equality filters
// translate natively and stay in the upstream request; anything else is
// applied client-side to the rows the /…/print round-trip returns.
func isUntranslatableFilterKey(key string) bool {
	if key == "" {
		return false
	}
	switch key[0] {
	case '>', '<', '~':
		return true
	default:
		return false
	}
}

// splitFilters separates a print request's words into the sentence to
// send upstream (with only natively-translatable filters retained, and the
// .proplist attribute stripped), the filters that must be applied
// client-side over the full result, and the .proplist field projection (if
// any), which is likewise applied client-side so it composes with the
// client-side filters above rather than needing the device to understand
// both at once.
func splitFilters(sentence wire.Sentence) (upstreamSentence wire.Sentence, clientFilters []proto.Field, proplist []string) {
	upstreamSentence = make(wire.Sentence, 0, len(sentence))
	upstreamSentence = append(upstreamSentence, sentence[0])

	for _, w := range sentence[1:] {
		if key, value, ok := proto.ParseAttribute(w); ok && key == proto.ProplistKey {
			proplist = proto.ProplistFields(value)
			continue
		}

		key, value, ok := proto.ParseFilter(w)
		if !ok {
			upstreamSentence = append(upstreamSentence, w)
			continue
		}
		if isUntranslatableFilterKey(key) {
			clientFilters = append(clientFilters, proto.Field{Key: strings.TrimLeft(key, "><~"), Value: value})
			continue
		}
		upstreamSentence = append(upstreamSentence, w)
	}
	return upstreamSentence, clientFilters, proplist
}

// applyClientFilters keeps only rows matching every client-side filter
// (exact match against the trimmed key).
func applyClientFilters(rows []proto.Row, filters []proto.Field) []proto.Row {
	if len(filters) == 0 {
		return rows
	}
	out := make([]proto.Row, 0, len(rows))
	for _, row := range rows {
		if rowMatchesAll(row, filters) {
			out = append(out, row)
		}
	}
	return out
}

func rowMatchesAll(row proto.Row, filters []proto.Field) bool {
	for _, f := range filters {
		if !rowMatches(row, f) {
			return false
		}
	}
	return true
}

func rowMatches(row proto.Row, f proto.Field) bool {
	for _, field := range row {
		if field.Key == f.Key {
			return field.Value == f.Value
		}
	}
	return false
}

// applyProplist projects every row to fields, preserving field order, when
// fields is non-empty; an empty fields leaves rows untouched.
func applyProplist(rows []proto.Row, fields []string) []proto.Row {
	if len(fields) == 0 {
		return rows
	}
	out := make([]proto.Row, len(rows))
	for i, row := range rows {
		out[i] = proto.Project(row, fields)
	}
	return out
}
