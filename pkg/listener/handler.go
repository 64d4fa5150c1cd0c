package listener

import (
	"context"
	"fmt"

	"github.com/mikrotik-fleet/routerproxy/pkg/proto"
	"github.com/mikrotik-fleet/routerproxy/pkg/queue"
	"github.com/mikrotik-fleet/routerproxy/pkg/upstream"
	"github.com/mikrotik-fleet/routerproxy/pkg/wire"
)

// sessionState is the per-connection login gate from spec.md §4.5:
// login_required (initial) -> authenticated (terminal until disconnect).
type sessionState uint8

const (
	stateLoginRequired sessionState = iota
	stateAuthenticated
)

// Handler implements the login gate and authenticated dispatch logic for
// one client connection. A fresh Handler is used per accepted Conn.
type Handler struct {
	deviceID int64
	user     string
	password string
	session  *upstream.Session
	store    *queue.Store

	state sessionState
}

// NewHandler creates a Handler bound to one device's credentials, upstream
// session, and command queue.
func NewHandler(deviceID int64, user, password string, session *upstream.Session, store *queue.Store) *Handler {
	return &Handler{deviceID: deviceID, user: user, password: password, session: session, store: store}
}

// Serve reads sentences from conn until it errors, closes, or ctx is
// cancelled, dispatching each per the login-gate/authenticated-dispatch
// rules.
func (h *Handler) Serve(ctx context.Context, conn *Conn) {
	defer conn.Close()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		sentence, err := conn.conn.ReadSentence()
		if err != nil {
			return
		}
		if len(sentence) == 0 {
			continue
		}

		if h.state == stateLoginRequired {
			if !h.handleLogin(conn, sentence) {
				return
			}
			continue
		}

		h.handleAuthenticated(ctx, conn, sentence)
	}
}

// handleLogin consumes the first sentence, and returns false if the
// connection should be closed. Per spec.md §8's login-gate testable
// property, any sentence whose command word is not /login closes the
// connection without ever contacting the upstream or inspecting its
// attributes — a non-/login sentence that happens to carry name/password
// attribute words must not be treated as a login attempt.
func (h *Handler) handleLogin(conn *Conn, sentence wire.Sentence) bool {
	if string(sentence[0]) != "/login" {
		conn.conn.WriteSentence(proto.Trap("invalid username or password"))
		return false
	}

	var name, password string
	for _, w := range sentence {
		if key, value, ok := proto.ParseAttribute(w); ok {
			switch key {
			case "name":
				name = value
			case "password":
				password = value
			}
		}
	}

	if name != h.user || password != h.password {
		conn.conn.WriteSentence(proto.Trap("invalid username or password"))
		return false
	}

	conn.conn.WriteSentence(proto.Done())
	h.state = stateAuthenticated
	return true
}

// handleAuthenticated implements spec.md §4.5's per-sentence dispatch.
func (h *Handler) handleAuthenticated(ctx context.Context, conn *Conn, sentence wire.Sentence) {
	h.session.Touch()

	if !h.session.Connected() {
		h.enqueueAndReplySuccess(conn, sentence)
		return
	}

	rows, err := h.session.RunCommand(ctx, sentence)
	if err == nil {
		for _, s := range proto.Rows(toRows(rows)) {
			conn.conn.WriteSentence(s)
		}
		return
	}

	if trapErr, ok := upstream.AsLogicalTrap(err); ok {
		conn.conn.WriteSentence(proto.TrapWithCategory(trapErr.Message, trapErr.Category))
		conn.conn.WriteSentence(proto.Done())
		return
	}

	// Non-logical failure: enqueue for later replay.
	if _, qerr := h.store.Enqueue(h.deviceID, wire.EncodeSentence(sentence)); qerr != nil {
		conn.conn.WriteSentence(proto.Trap("FATAL: Command failed and could not be queued"))
		conn.conn.WriteSentence(proto.Done())
		return
	}
	conn.conn.WriteSentence(proto.Trap(fmt.Sprintf("Command failed but was queued for later. Error: %s", err)))
	conn.conn.WriteSentence(proto.Done())
}

// enqueueAndReplySuccess handles the disconnected-upstream branch: the
// command is persisted without ever being attempted, and the client still
// sees a success reply so it is not blocked on upstream availability.
func (h *Handler) enqueueAndReplySuccess(conn *Conn, sentence wire.Sentence) {
	if _, err := h.store.Enqueue(h.deviceID, wire.EncodeSentence(sentence)); err != nil {
		conn.conn.WriteSentence(proto.Trap("FATAL: Command could not be queued"))
		conn.conn.WriteSentence(proto.Done())
		return
	}
	conn.conn.WriteSentence(proto.Done())
}

func toRows(rows []proto.Row) []proto.Row {
	if rows == nil {
		return []proto.Row{}
	}
	return rows
}
