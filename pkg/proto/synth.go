package proto

import "github.com/mikrotik-fleet/routerproxy/pkg/wire"

// Field is one key=value pair in a synthesized row, kept as an ordered pair
// (rather than a map) so encoding order is deterministic.
type Field struct {
	Key   string
	Value string
}

// Row is one result row to be synthesized as a !re sentence.
type Row []Field

// Done returns the terminal "!done" sentence.
func Done() wire.Sentence {
	return wire.Sentence{wire.Word(TokenDone)}
}

// Trap returns a "!trap =message=<message>" sentence reporting a logical
// error. In authenticated dispatch pkg/listener follows a trap with a
// terminal Done() sentence; a rejected login gets the trap alone before the
// connection closes.
func Trap(message string) wire.Sentence {
	return wire.Sentence{
		wire.Word(TokenTrap),
		wire.Word("=message=" + message),
	}
}

// TrapWithCategory returns a trap sentence carrying an optional category
// attribute in addition to the message.
func TrapWithCategory(message, category string) wire.Sentence {
	s := Trap(message)
	if category != "" {
		s = append(s, wire.Word("=category="+category))
	}
	return s
}

// Rows synthesizes the sentence sequence for a successful list result: one
// "!re" sentence per row (carrying one "=k=v" word per field), followed by a
// final "!done" sentence.
func Rows(rows []Row) []wire.Sentence {
	out := make([]wire.Sentence, 0, len(rows)+1)
	for _, row := range rows {
		s := make(wire.Sentence, 0, len(row)+1)
		s = append(s, wire.Word(TokenRe))
		for _, f := range row {
			s = append(s, wire.Word("="+f.Key+"="+f.Value))
		}
		out = append(out, s)
	}
	out = append(out, Done())
	return out
}

// Project filters row to only the fields named in fields, preserving field
// order as given by fields. A row missing a projected field simply omits
// it, matching the device's own .proplist behavior.
func Project(row Row, fields []string) Row {
	if len(fields) == 0 {
		return row
	}
	byKey := make(map[string]string, len(row))
	for _, f := range row {
		byKey[f.Key] = f.Value
	}
	out := make(Row, 0, len(fields))
	for _, k := range fields {
		if v, ok := byKey[k]; ok {
			out = append(out, Field{Key: k, Value: v})
		}
	}
	return out
}
