package proto

import (
	"strings"

	"github.com/mikrotik-fleet/routerproxy/pkg/wire"
)

// Reply tokens. The first word of every reply sentence is one of these.
const (
	TokenDone  = "!done"
	TokenRe    = "!re"
	TokenTrap  = "!trap"
	TokenFatal = "!fatal"
)

// ProplistKey is the special attribute name that projects the result set to
// a comma-separated field list.
const ProplistKey = ".proplist"

// IsRequest reports whether the first word of a sentence marks it as a
// client request (starts with '/').
func IsRequest(first wire.Word) bool {
	return len(first) > 0 && first[0] == '/'
}

// IsReply reports whether the first word of a sentence marks it as a
// device/proxy reply (starts with '!').
func IsReply(first wire.Word) bool {
	return len(first) > 0 && first[0] == '!'
}

// ParseAttribute parses an "=key=value" word. ok is false if w is not an
// attribute word.
func ParseAttribute(w wire.Word) (key, value string, ok bool) {
	if len(w) == 0 || w[0] != '=' {
		return "", "", false
	}
	return splitKV(string(w[1:]))
}

// ParseFilter parses a "?key=value" word. ok is false if w is not a filter
// word.
func ParseFilter(w wire.Word) (key, value string, ok bool) {
	if len(w) == 0 || w[0] != '?' {
		return "", "", false
	}
	return splitKV(string(w[1:]))
}

func splitKV(s string) (key, value string, ok bool) {
	idx := strings.IndexByte(s, '=')
	if idx < 0 {
		return s, "", true
	}
	return s[:idx], s[idx+1:], true
}

// ProplistFields splits a .proplist attribute value into its projected
// field names.
func ProplistFields(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// Path splits a request word at its last '/': path is everything before
// it and command is the final segment. A request "/ip/firewall/filter/add"
// has path "/ip/firewall/filter" and command "add".
func Path(first wire.Word) (path, command string) {
	s := string(first)
	idx := strings.LastIndexByte(s, '/')
	if idx <= 0 {
		return "", strings.TrimPrefix(s, "/")
	}
	return s[:idx], s[idx+1:]
}
