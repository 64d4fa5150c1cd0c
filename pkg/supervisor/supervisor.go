package supervisor

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mikrotik-fleet/routerproxy/pkg/config"
	"github.com/mikrotik-fleet/routerproxy/pkg/listener"
	"github.com/mikrotik-fleet/routerproxy/pkg/log"
	"github.com/mikrotik-fleet/routerproxy/pkg/queue"
	"github.com/mikrotik-fleet/routerproxy/pkg/upstream"
)

// managedDevice bundles everything the supervisor starts and stops as a
// unit for one device.
type managedDevice struct {
	cfg       config.Device
	session   *upstream.Session
	server    *listener.Server
	processor *queue.Processor
	cancel    context.CancelFunc
}

// Supervisor starts, stops, and updates the per-device session/listener/
// processor trio for every managed device, and exposes a shared status map
// for the external admin UI.
type Supervisor struct {
	store  *queue.Store
	logger log.Logger
	Status *StatusMap

	mu      sync.Mutex
	devices map[int64]*managedDevice
}

// New creates a Supervisor backed by a shared command queue store.
func New(store *queue.Store, logger log.Logger) *Supervisor {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	return &Supervisor{
		store:   store,
		logger:  logger,
		Status:  &StatusMap{},
		devices: make(map[int64]*managedDevice),
	}
}

// StartAll starts every enabled device concurrently, one goroutine per
// device via errgroup, matching the teacher's one-manager-per-connection
// model. It returns the first error encountered, after all goroutines have
// finished (errgroup semantics), but devices that started successfully
// remain running.
func (s *Supervisor) StartAll(ctx context.Context, devices []config.Device) error {
	var g errgroup.Group
	for _, d := range devices {
		if !d.Enabled {
			continue
		}
		d := d
		g.Go(func() error {
			return s.StartOne(ctx, d)
		})
	}
	return g.Wait()
}

// StartOne brings up one device's upstream session, local listener, and
// queue processor.
func (s *Supervisor) StartOne(ctx context.Context, cfg config.Device) error {
	s.mu.Lock()
	if _, exists := s.devices[cfg.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("supervisor: device %d already started", cfg.ID)
	}
	s.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)

	session := upstream.NewSession(upstream.Config{
		DeviceID: cfg.ID,
		Host:     cfg.Host,
		Port:     cfg.Port,
		User:     cfg.User,
		Password: cfg.Password,
	}, s.logger)
	session.Start(runCtx)
	s.Status.Set(cfg.ID, ComponentUpstream, "connecting")

	srv := listener.NewServer(listener.ServerConfig{
		Address:  net.JoinHostPort("127.0.0.1", strconv.Itoa(cfg.ProxyPort)),
		DeviceID: cfg.ID,
		User:     cfg.User,
		Password: cfg.Password,
		Session:  session,
		Store:    s.store,
		Logger:   s.logger,
	})
	if err := srv.Start(runCtx); err != nil {
		cancel()
		session.Stop()
		s.Status.Set(cfg.ID, ComponentListener, "error: "+err.Error())
		return fmt.Errorf("supervisor: start device %d listener: %w", cfg.ID, err)
	}
	s.Status.Set(cfg.ID, ComponentListener, "listening on "+srv.Addr().String())

	proc := queue.NewProcessor(cfg.ID, s.store, s.lookupSession)
	go proc.Run(runCtx)
	s.Status.Set(cfg.ID, ComponentProcessor, "running")

	// The database/nfcapd keys are carried for the external UI's key space
	// even though this core owns neither component.
	s.Status.Set(cfg.ID, ComponentDatabase, "out of scope")
	s.Status.Set(cfg.ID, ComponentNfcapd, "out of scope")

	s.mu.Lock()
	s.devices[cfg.ID] = &managedDevice{cfg: cfg, session: session, server: srv, processor: proc, cancel: cancel}
	s.mu.Unlock()
	return nil
}

// StopOne stops one device's listener, processor, and upstream session,
// freeing its local port.
func (s *Supervisor) StopOne(deviceID int64) error {
	s.mu.Lock()
	d, ok := s.devices[deviceID]
	if ok {
		delete(s.devices, deviceID)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("supervisor: device %d not running", deviceID)
	}

	d.cancel()
	d.server.Stop()
	d.session.Stop()
	s.Status.Clear(deviceID)
	return nil
}

// UpdateOne stops and restarts a device with new configuration, waiting
// for the stop to complete (and the local port to free) before starting,
// per spec.md §4.6.
func (s *Supervisor) UpdateOne(ctx context.Context, cfg config.Device) error {
	if err := s.StopOne(cfg.ID); err != nil {
		return err
	}
	return s.StartOne(ctx, cfg)
}

// StopAll stops every running device.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	ids := make([]int64, 0, len(s.devices))
	for id := range s.devices {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.StopOne(id)
	}
}

// lookupSession is the queue.SessionLookup this supervisor hands to each
// device's Processor, avoiding a supervisor<->queue import cycle.
func (s *Supervisor) lookupSession(deviceID int64) (*upstream.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[deviceID]
	if !ok {
		return nil, false
	}
	return d.session, true
}
