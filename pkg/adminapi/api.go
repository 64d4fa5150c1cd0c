package adminapi

import (
	"context"
	"fmt"

	"github.com/mikrotik-fleet/routerproxy/pkg/config"
	"github.com/mikrotik-fleet/routerproxy/pkg/queue"
	"github.com/mikrotik-fleet/routerproxy/pkg/supervisor"
)

// minProxyPort is the lowest port the proxy_port allocator will hand out,
// per spec.md §6 ("smallest free integer >= 9000").
const minProxyPort = 9000

// API is the in-process surface cmd/routerproxy-admin drives directly,
// standing in for the out-of-scope HTTP layer a real web UI would sit
// behind.
type API struct {
	supervisor *supervisor.Supervisor
	store      *queue.Store
	devices    *config.YAMLStore
}

func New(sup *supervisor.Supervisor, store *queue.Store, devices *config.YAMLStore) *API {
	return &API{supervisor: sup, store: store, devices: devices}
}

// AddDevice allocates a proxy_port, persists the new device, and — if
// Enabled — starts its session/listener/processor immediately.
func (a *API) AddDevice(ctx context.Context, d config.Device) (config.Device, error) {
	existing, err := a.devices.Devices(ctx)
	if err != nil {
		return config.Device{}, fmt.Errorf("adminapi: add device: %w", err)
	}
	d.ProxyPort = nextFreeProxyPort(existing)

	if err := a.devices.AddDevice(d); err != nil {
		return config.Device{}, fmt.Errorf("adminapi: add device: %w", err)
	}
	if d.Enabled {
		if err := a.supervisor.StartOne(ctx, d); err != nil {
			return config.Device{}, fmt.Errorf("adminapi: add device: start: %w", err)
		}
	}
	return d, nil
}

// UpdateDevice persists the new configuration and restarts the device if
// it is (or becomes) enabled, stopping it if it becomes disabled.
func (a *API) UpdateDevice(ctx context.Context, d config.Device) error {
	prev, err := a.devices.Device(ctx, d.ID)
	if err != nil {
		return fmt.Errorf("adminapi: update device: %w", err)
	}
	d.ProxyPort = prev.ProxyPort

	if err := a.devices.UpdateDevice(d); err != nil {
		return fmt.Errorf("adminapi: update device: %w", err)
	}

	switch {
	case d.Enabled:
		if err := a.supervisor.UpdateOne(ctx, d); err != nil {
			return fmt.Errorf("adminapi: update device: restart: %w", err)
		}
	default:
		_ = a.supervisor.StopOne(d.ID) // already stopped is not an error here
	}
	return nil
}

// RemoveDevice stops the device (if running) and deletes its configuration
// and queued commands.
func (a *API) RemoveDevice(ctx context.Context, id int64) error {
	_ = a.supervisor.StopOne(id)
	if err := a.store.ClearAll(id); err != nil {
		return fmt.Errorf("adminapi: remove device: clear queue: %w", err)
	}
	if err := a.devices.RemoveDevice(id); err != nil {
		return fmt.Errorf("adminapi: remove device: %w", err)
	}
	return nil
}

// ReconnectDB reopens the durable queue store's database connection.
func (a *API) ReconnectDB() error {
	if err := a.store.Reconnect(); err != nil {
		return fmt.Errorf("adminapi: reconnect db: %w", err)
	}
	return nil
}

// ClearQueue deletes every queued command for every device.
func (a *API) ClearQueue() error {
	if err := a.store.ClearEverything(); err != nil {
		return fmt.Errorf("adminapi: clear queue: %w", err)
	}
	return nil
}

// ListQueue returns one page of queued commands across every device, plus
// the total row count.
func (a *API) ListQueue(page, perPage int) ([]queue.Command, int, error) {
	rows, total, err := a.store.ListAll(page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("adminapi: list queue: %w", err)
	}
	return rows, total, nil
}

// GetStatus returns the supervisor's full device:component -> status map.
func (a *API) GetStatus() map[string]string {
	return a.supervisor.Status.Snapshot()
}

// QueueDepth returns the number of commands still awaiting delivery
// (pending, processing, or failed-awaiting-retry) for a device, for the
// admin API's per-device inspection surface.
func (a *API) QueueDepth(deviceID int64) (int, error) {
	n, err := a.store.PendingCount(deviceID)
	if err != nil {
		return 0, fmt.Errorf("adminapi: queue depth: %w", err)
	}
	return n, nil
}

// nextFreeProxyPort returns the smallest integer >= minProxyPort not
// already in use by an existing device.
func nextFreeProxyPort(existing []config.Device) int {
	used := make(map[int]bool, len(existing))
	for _, d := range existing {
		used[d.ProxyPort] = true
	}
	for port := minProxyPort; ; port++ {
		if !used[port] {
			return port
		}
	}
}
