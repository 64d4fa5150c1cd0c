package adminapi

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikrotik-fleet/routerproxy/pkg/config"
	"github.com/mikrotik-fleet/routerproxy/pkg/queue"
	"github.com/mikrotik-fleet/routerproxy/pkg/supervisor"
)

func newTestAPI(t *testing.T) *API {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "devices.yaml")
	require.NoError(t, os.WriteFile(path, []byte("devices: []\nservice_config: {}\n"), 0o644))
	devices, err := config.NewYAMLStore(path)
	require.NoError(t, err)

	store, err := queue.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sup := supervisor.New(store, nil)
	t.Cleanup(sup.StopAll)

	return New(sup, store, devices)
}

func freeProxyPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func TestAddDeviceAllocatesPortAndDoesNotStartWhenDisabled(t *testing.T) {
	api := newTestAPI(t)

	created, err := api.AddDevice(context.Background(), config.Device{ID: 1, Name: "r1", Host: "10.0.0.1", Port: 8728, Enabled: false})
	require.NoError(t, err)
	assert.Equal(t, 9000, created.ProxyPort)

	assert.Empty(t, api.GetStatus())
}

func TestAddDeviceAllocatesNextFreePortAvoidingExisting(t *testing.T) {
	api := newTestAPI(t)
	_, err := api.AddDevice(context.Background(), config.Device{ID: 1, Host: "10.0.0.1", Enabled: false})
	require.NoError(t, err)

	second, err := api.AddDevice(context.Background(), config.Device{ID: 2, Host: "10.0.0.2", Enabled: false})
	require.NoError(t, err)
	assert.Equal(t, 9001, second.ProxyPort)
}

func TestRemoveDeviceDeletesConfigAndQueue(t *testing.T) {
	api := newTestAPI(t)
	created, err := api.AddDevice(context.Background(), config.Device{ID: 1, Host: "10.0.0.1", Enabled: false})
	require.NoError(t, err)

	_, err = api.store.Enqueue(created.ID, []byte{0})
	require.NoError(t, err)

	require.NoError(t, api.RemoveDevice(context.Background(), created.ID))

	_, err = api.devices.Device(context.Background(), created.ID)
	assert.Error(t, err)

	rows, total, err := api.ListQueue(1, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
	assert.Empty(t, rows)
}

func TestClearQueueRemovesAcrossDevices(t *testing.T) {
	api := newTestAPI(t)
	_, err := api.store.Enqueue(1, []byte{0})
	require.NoError(t, err)
	_, err = api.store.Enqueue(2, []byte{0})
	require.NoError(t, err)

	require.NoError(t, api.ClearQueue())

	_, total, err := api.ListQueue(1, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}

func TestReconnectDBSucceeds(t *testing.T) {
	api := newTestAPI(t)
	_, err := api.store.Enqueue(1, []byte{0})
	require.NoError(t, err)

	require.NoError(t, api.ReconnectDB())

	// :memory: starts empty on reconnect; the migrated schema must still work.
	_, total, err := api.ListQueue(1, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, total)

	_, err = api.store.Enqueue(1, []byte{0})
	assert.NoError(t, err)
}
