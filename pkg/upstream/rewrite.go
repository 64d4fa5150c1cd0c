package upstream

import (
	"net"
	"strings"

	"github.com/mikrotik-fleet/routerproxy/pkg/proto"
	"github.com/mikrotik-fleet/routerproxy/pkg/wire"
)

// applyRewrites applies the request-specific rewrites from spec.md §4.2
// before a sentence is sent to the device. It returns a TransientError if
// a rewrite requires DNS resolution that fails.
func (s *Session) applyRewrites(sentence wire.Sentence) (wire.Sentence, error) {
	if len(sentence) == 0 {
		return sentence, nil
	}
	path, _ := proto.Path(sentence[0])

	switch {
	case strings.HasPrefix(path, "/ip/proxy/access"):
		return rewriteProxyAccess(sentence), nil
	case string(sentence[0]) == "/ip/firewall/filter/add" || string(sentence[0]) == "/ip/firewall/nat/add":
		return rewriteFirewallDstAddress(sentence)
	case string(sentence[0]) == "/ppp/profile/add" || string(sentence[0]) == "/ppp/profile/set":
		return rewritePPPLocalAddress(sentence, s.cfg.Host), nil
	default:
		return sentence, nil
	}
}

// rewriteProxyAccess rewrites a proxy-access add carrying =redirect-to=<url>
// into the device's native redirect-action form.
func rewriteProxyAccess(sentence wire.Sentence) wire.Sentence {
	redirectTo, hasRedirect := "", false
	rest := make(wire.Sentence, 0, len(sentence))

	for _, w := range sentence[1:] {
		key, value, ok := proto.ParseAttribute(w)
		if !ok {
			rest = append(rest, w)
			continue
		}
		switch key {
		case "redirect-to":
			redirectTo, hasRedirect = value, true
		case "action":
			// discard any prior =action= word; we set our own below
		default:
			rest = append(rest, w)
		}
	}

	if !hasRedirect {
		return sentence
	}

	out := make(wire.Sentence, 0, len(rest)+3)
	out = append(out, wire.Word("/ip/proxy/access/add"))
	out = append(out, rest...)
	out = append(out, wire.Word("=action=redirect"))
	out = append(out, wire.Word("=action-data="+redirectTo))
	return out
}

// rewriteFirewallDstAddress resolves a non-numeric =dst-address= to an
// IPv4 literal via synchronous DNS.
func rewriteFirewallDstAddress(sentence wire.Sentence) (wire.Sentence, error) {
	out := make(wire.Sentence, len(sentence))
	copy(out, sentence)

	for i, w := range sentence {
		key, value, ok := proto.ParseAttribute(w)
		if !ok || key != "dst-address" {
			continue
		}
		trimmed := strings.TrimSuffix(value, "/")
		if net.ParseIP(trimmed) != nil {
			continue
		}
		addrs, err := net.LookupHost(trimmed)
		ipv4 := ""
		for _, a := range addrs {
			if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
				ipv4 = a
				break
			}
		}
		if err != nil || ipv4 == "" {
			return nil, transientf("resolve dst-address %q: %w", trimmed, err)
		}
		out[i] = wire.Word("=dst-address=" + ipv4)
	}
	return out, nil
}

// rewritePPPLocalAddress replaces =local-address= with the upstream
// device's own host, regardless of the client-supplied value.
func rewritePPPLocalAddress(sentence wire.Sentence, deviceHost string) wire.Sentence {
	out := make(wire.Sentence, len(sentence))
	copy(out, sentence)

	for i, w := range sentence {
		key, _, ok := proto.ParseAttribute(w)
		if !ok || key != "local-address" {
			continue
		}
		out[i] = wire.Word("=local-address=" + deviceHost)
	}
	return out
}
