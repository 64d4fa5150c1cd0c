package upstream

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/mikrotik-fleet/routerproxy/pkg/proto"
	"github.com/mikrotik-fleet/routerproxy/pkg/transport"
	"github.com/mikrotik-fleet/routerproxy/pkg/wire"
)

// dial establishes a TCP connection to the device and performs the login
// handshake, returning a ready-to-use *transport.Conn. Any failure here
// (network or login rejection) is treated identically by the caller: the
// attempt failed and the fixed retry delay applies.
func dial(ctx context.Context, cfg Config) (*transport.Conn, error) {
	d := net.Dialer{Timeout: DialTimeout}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("upstream: dial %s: %w", addr, err)
	}

	conn := transport.NewConn(nc)
	conn.SetDeadline(time.Now().Add(DialTimeout))
	defer conn.SetDeadline(time.Time{})

	loginSentence := wire.Sentence{
		wire.Word("/login"),
		wire.Word("=name=" + cfg.User),
		wire.Word("=password=" + cfg.Password),
	}
	if err := conn.WriteSentence(loginSentence); err != nil {
		conn.Close()
		return nil, fmt.Errorf("upstream: send login: %w", err)
	}

	reply, err := conn.ReadSentence()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("upstream: read login reply: %w", err)
	}
	if len(reply) == 0 {
		conn.Close()
		return nil, fmt.Errorf("upstream: empty login reply")
	}

	switch string(reply[0]) {
	case proto.TokenDone:
		return conn, nil
	case proto.TokenTrap:
		conn.Close()
		msg := trapMessage(reply)
		return nil, fmt.Errorf("upstream: login rejected: %s", msg)
	default:
		conn.Close()
		return nil, fmt.Errorf("upstream: unexpected login reply %q", reply[0])
	}
}

func trapMessage(sentence wire.Sentence) string {
	for _, w := range sentence[1:] {
		if key, value, ok := proto.ParseAttribute(w); ok && key == "message" {
			return value
		}
	}
	return "login failed"
}
