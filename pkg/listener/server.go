package listener

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mikrotik-fleet/routerproxy/pkg/log"
	"github.com/mikrotik-fleet/routerproxy/pkg/queue"
	"github.com/mikrotik-fleet/routerproxy/pkg/transport"
	"github.com/mikrotik-fleet/routerproxy/pkg/upstream"
)

// ServerConfig configures one device's local listener.
type ServerConfig struct {
	// Address to listen on, always 127.0.0.1:<proxy_port> per spec.md §6.
	Address string

	DeviceID int64
	User     string
	Password string

	Session *upstream.Session
	Store   *queue.Store

	Logger log.Logger

	// OnConnect/OnDisconnect mirror the teacher's Server hooks; nil is
	// valid if the caller does not need them.
	OnConnect    func(conn *Conn)
	OnDisconnect func(conn *Conn)
}

// Server accepts local client connections for one device and hands each
// off to a Handler.
type Server struct {
	config   ServerConfig
	listener net.Listener

	conns   map[*Conn]struct{}
	connsMu sync.RWMutex

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewServer creates a Server for one device. Start begins accepting.
func NewServer(config ServerConfig) *Server {
	if config.Logger == nil {
		config.Logger = log.NoopLogger{}
	}
	return &Server{
		config: config,
		conns:  make(map[*Conn]struct{}),
	}
}

// Start binds the listener and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return fmt.Errorf("listener: server already running")
	}

	s.ctx, s.cancel = context.WithCancel(ctx)

	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("listener: listen %s: %w", s.config.Address, err)
	}
	s.listener = ln
	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener and every active client connection.
func (s *Server) Stop() {
	if !s.running.Load() {
		return
	}
	s.running.Store(false)
	s.cancel()
	s.listener.Close()

	s.connsMu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()
}

// Addr returns the bound listen address.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ConnectionCount reports how many clients are currently connected.
func (s *Server) ConnectionCount() int {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return len(s.conns)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for s.running.Load() {
		nc, err := s.listener.Accept()
		if err != nil {
			continue
		}
		s.wg.Add(1)
		go s.handleConnection(nc)
	}
}

func (s *Server) handleConnection(nc net.Conn) {
	defer s.wg.Done()

	connID := uuid.New().String()
	c := &Conn{
		conn:       transport.NewConn(nc),
		server:     s,
		remoteAddr: nc.RemoteAddr(),
		connID:     connID,
		closeCh:    make(chan struct{}),
	}

	s.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		LocalRole:    log.RoleClient,
		RemoteAddr:   nc.RemoteAddr().String(),
		DeviceID:     fmt.Sprintf("%d", s.config.DeviceID),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			NewState: "CONNECTED",
		},
	})

	s.connsMu.Lock()
	s.conns[c] = struct{}{}
	s.connsMu.Unlock()

	if s.config.OnConnect != nil {
		s.config.OnConnect(c)
	}

	handler := NewHandler(s.config.DeviceID, s.config.User, s.config.Password, s.config.Session, s.config.Store)
	handler.Serve(s.ctx, c)

	s.connsMu.Lock()
	delete(s.conns, c)
	s.connsMu.Unlock()

	s.config.Logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		LocalRole:    log.RoleClient,
		RemoteAddr:   nc.RemoteAddr().String(),
		DeviceID:     fmt.Sprintf("%d", s.config.DeviceID),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: "CONNECTED",
			NewState: "DISCONNECTED",
		},
	})

	if s.config.OnDisconnect != nil {
		s.config.OnDisconnect(c)
	}
}

// Conn wraps one accepted client connection.
type Conn struct {
	conn       *transport.Conn
	server     *Server
	remoteAddr net.Addr
	connID     string
	closeOnce  sync.Once
	closeCh    chan struct{}
}

// RemoteAddr returns the client's address.
func (c *Conn) RemoteAddr() net.Addr { return c.remoteAddr }

// ConnID returns this connection's unique ID.
func (c *Conn) ConnID() string { return c.connID }

// Close closes the underlying socket. Safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}
