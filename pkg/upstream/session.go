package upstream

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mikrotik-fleet/routerproxy/pkg/connection"
	"github.com/mikrotik-fleet/routerproxy/pkg/log"
	"github.com/mikrotik-fleet/routerproxy/pkg/proto"
	"github.com/mikrotik-fleet/routerproxy/pkg/transport"
	"github.com/mikrotik-fleet/routerproxy/pkg/wire"
)

// Session owns exactly one working upstream connection to a single
// device and serializes every RPC through it. See package doc for the
// state machine and concurrency model.
type Session struct {
	cfg    Config
	logger log.Logger

	mgr *connection.Manager

	// serializingLock guarantees at most one in-flight RPC on the shared
	// socket at a time; it also guards conn itself so the connection is
	// never read from outside the lock.
	serializingLock sync.Mutex
	conn            *transport.Conn

	lastLiveActivity atomic.Int64 // unix nanoseconds

	stopOnce sync.Once
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewSession creates a Session for the given device. Start must be called
// to begin connecting.
func NewSession(cfg Config, logger log.Logger) *Session {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	s := &Session{cfg: cfg, logger: logger}

	s.mgr = connection.NewManagerWithBackoff(s.connectFn, connection.NewBackoffWithConfig(connection.BackoffConfig{
		Initial:    ReconnectDelay,
		Max:        ReconnectDelay,
		Multiplier: 1,
		Jitter:     0,
	}))
	s.mgr.OnStateChange(func(old, new connection.State) {
		s.logger.Log(log.Event{
			Timestamp:    time.Now(),
			Layer:        log.LayerService,
			Category:     log.CategoryState,
			LocalRole:    log.RoleUpstream,
			DeviceID:     fmt.Sprintf("%d", cfg.DeviceID),
			StateChange: &log.StateChangeEvent{
				Entity:   log.StateEntitySession,
				OldState: old.String(),
				NewState: new.String(),
			},
		})
	})
	s.mgr.OnDisconnected(func() {
		s.serializingLock.Lock()
		if s.conn != nil {
			s.conn.Close()
			s.conn = nil
		}
		s.serializingLock.Unlock()
	})
	return s
}

// connectFn is the connection.Manager's ConnectFunc: dial, log in, and
// stash the resulting transport.Conn under the serializing lock.
func (s *Session) connectFn(ctx context.Context) error {
	conn, err := dial(ctx, s.cfg)
	if err != nil {
		return err
	}
	s.serializingLock.Lock()
	s.conn = conn
	s.serializingLock.Unlock()
	return nil
}

// Start begins connecting and launches the reconnect and liveness loops.
// It does not block; use State() to observe progress.
func (s *Session) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mgr.StartReconnectLoop()

	s.wg.Add(2)
	go s.connectLoop(runCtx)
	go s.livenessLoop(runCtx)
}

// connectLoop retries the initial dial at the fixed ReconnectDelay until
// it succeeds or the session is stopped. Once connected, loss detection
// and further reconnection is handled by connection.Manager via
// NotifyConnectionLost from the liveness loop.
func (s *Session) connectLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		if err := s.mgr.Connect(ctx); err == nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(ReconnectDelay):
		}
	}
}

// livenessLoop sends a cheap read command every LivenessInterval while
// connected; any failure (including a logical trap, which should never
// happen for this command but is still a sign of a broken session) is
// treated as connection loss.
func (s *Session) livenessLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(LivenessInterval)
	defer ticker.Stop()

	probe := wire.Sentence{wire.Word("/system/resource/print")}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.mgr.State() != connection.StateConnected {
				continue
			}
			if _, err := s.RunCommand(ctx, probe); err != nil {
				s.mgr.NotifyConnectionLost()
			}
		}
	}
}

// Stop terminates the session's goroutines and closes its connection.
// Safe to call more than once.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.mgr.Close()
		s.wg.Wait()
	})
}

// State reports the session's current lifecycle state, mapped from the
// underlying connection.Manager's state.
func (s *Session) State() State {
	switch s.mgr.State() {
	case connection.StateConnected:
		return Connected
	case connection.StateReconnecting:
		return Reconnecting
	case connection.StateClosed:
		return Stopped
	default:
		return Connecting
	}
}

// Connected reports whether the session currently has a live,
// authenticated connection.
func (s *Session) Connected() bool {
	return s.mgr.IsConnected()
}

// Touch records client activity now, for the queue processor's idle
// guard.
func (s *Session) Touch() {
	s.lastLiveActivity.Store(time.Now().UnixNano())
}

// IdleFor returns how long it has been since the last recorded client
// activity.
func (s *Session) IdleFor() time.Duration {
	last := s.lastLiveActivity.Load()
	if last == 0 {
		return time.Since(time.Unix(0, 0))
	}
	return time.Since(time.Unix(0, last))
}

// DeviceID returns the device this session belongs to.
func (s *Session) DeviceID() int64 {
	return s.cfg.DeviceID
}

// RunCommand sends sentence to the device and returns its decoded result
// rows, or a *LogicalTrapError / *TransientError classifying the failure.
// It acquires the serializing lock for the duration of the round trip, so
// at most one RunCommand (or liveness probe) is ever in flight on the
// shared socket.
func (s *Session) RunCommand(ctx context.Context, sentence wire.Sentence) ([]proto.Row, error) {
	if !s.mgr.IsConnected() {
		return nil, ErrNotConnected
	}

	sentence, err := s.applyRewrites(sentence)
	if err != nil {
		return nil, err
	}

	upstreamSentence, clientFilters, proplist := maybeSplitQuery(sentence)

	s.serializingLock.Lock()
	defer s.serializingLock.Unlock()

	if s.conn == nil {
		return nil, ErrNotConnected
	}

	if err := s.conn.WriteSentence(upstreamSentence); err != nil {
		return nil, transientf("write sentence: %w", err)
	}

	rows, err := s.readReply(s.conn)
	if err != nil {
		return nil, err
	}
	rows = applyClientFilters(rows, clientFilters)
	return applyProplist(rows, proplist), nil
}

// maybeSplitQuery applies query translation only to print requests;
// every other command passes through unmodified.
func maybeSplitQuery(sentence wire.Sentence) (wire.Sentence, []proto.Field, []string) {
	if len(sentence) == 0 {
		return sentence, nil, nil
	}
	_, command := proto.Path(sentence[0])
	if command != "print" {
		return sentence, nil, nil
	}
	return splitFilters(sentence)
}

// readReply reads sentences until a terminal reply token, accumulating
// !re rows, and classifies the result.
func (s *Session) readReply(conn *transport.Conn) ([]proto.Row, error) {
	var rows []proto.Row
	for {
		reply, err := conn.ReadSentence()
		if err != nil {
			return nil, transientf("read reply: %w", err)
		}
		if len(reply) == 0 {
			continue
		}
		switch string(reply[0]) {
		case proto.TokenRe:
			rows = append(rows, sentenceToRow(reply))
		case proto.TokenDone:
			return rows, nil
		case proto.TokenTrap:
			return nil, &LogicalTrapError{Message: trapMessage(reply), Category: trapCategory(reply)}
		case proto.TokenFatal:
			return nil, transientf("device sent !fatal")
		default:
			// Unknown reply token: ignore and keep reading, matching a
			// lenient/forward-compatible reader.
		}
	}
}

func sentenceToRow(reply wire.Sentence) proto.Row {
	row := make(proto.Row, 0, len(reply)-1)
	for _, w := range reply[1:] {
		if key, value, ok := proto.ParseAttribute(w); ok {
			row = append(row, proto.Field{Key: key, Value: value})
		}
	}
	return row
}

func trapCategory(sentence wire.Sentence) string {
	for _, w := range sentence[1:] {
		if key, value, ok := proto.ParseAttribute(w); ok && key == "category" {
			return value
		}
	}
	return ""
}
