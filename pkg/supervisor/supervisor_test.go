package supervisor

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikrotik-fleet/routerproxy/pkg/config"
	"github.com/mikrotik-fleet/routerproxy/pkg/queue"
	"github.com/mikrotik-fleet/routerproxy/pkg/transport"
	"github.com/mikrotik-fleet/routerproxy/pkg/wire"
)

// fakeRouter accepts a single connection and replies !done to the RouterOS
// login handshake, standing in for a real device during supervisor tests.
func fakeRouter(t *testing.T) (addr string, closeFn func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		for {
			nc, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				c := transport.NewConn(nc)
				defer c.Close()
				if _, err := c.ReadSentence(); err != nil {
					return
				}
				c.WriteSentence(wire.Sentence{wire.Word("!done")})
				for {
					if _, err := c.ReadSentence(); err != nil {
						return
					}
					c.WriteSentence(wire.Sentence{wire.Word("!done")})
				}
			}()
		}
	}()
	return ln.Addr().String(), func() { ln.Close() }
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

func newTestStore(t *testing.T) *queue.Store {
	t.Helper()
	s, err := queue.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStartOneBringsUpListenerAndSession(t *testing.T) {
	addr, closeRouter := fakeRouter(t)
	defer closeRouter()
	_, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	store := newTestStore(t)
	sup := New(store, nil)

	cfg := config.Device{
		ID: 1, Host: "127.0.0.1", Port: port,
		User: "admin", Password: "secret",
		ProxyPort: freePort(t), Enabled: true,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, sup.StartOne(ctx, cfg))
	defer sup.StopOne(cfg.ID)

	require.Eventually(t, func() bool {
		return sup.Status.Get(cfg.ID, ComponentListener) != ""
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "running", sup.Status.Get(cfg.ID, ComponentProcessor))

	session, ok := sup.lookupSession(cfg.ID)
	require.True(t, ok)
	assert.Equal(t, int64(1), session.DeviceID())
}

func TestStartOneRejectsDuplicateDevice(t *testing.T) {
	store := newTestStore(t)
	sup := New(store, nil)
	cfg := config.Device{ID: 2, Host: "127.0.0.1", Port: 1, ProxyPort: freePort(t), Enabled: true}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, sup.StartOne(ctx, cfg))
	defer sup.StopOne(cfg.ID)

	err := sup.StartOne(ctx, cfg)
	assert.Error(t, err)
}

func TestStopOneClearsStatusAndLookup(t *testing.T) {
	store := newTestStore(t)
	sup := New(store, nil)
	cfg := config.Device{ID: 3, Host: "127.0.0.1", Port: 1, ProxyPort: freePort(t), Enabled: true}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, sup.StartOne(ctx, cfg))

	require.NoError(t, sup.StopOne(cfg.ID))
	_, ok := sup.lookupSession(cfg.ID)
	assert.False(t, ok)
	assert.Empty(t, sup.Status.Snapshot())

	assert.Error(t, sup.StopOne(cfg.ID))
}

func TestUpdateOneRestartsWithNewConfig(t *testing.T) {
	store := newTestStore(t)
	sup := New(store, nil)
	port := freePort(t)
	cfg := config.Device{ID: 4, Host: "127.0.0.1", Port: 1, ProxyPort: port, Enabled: true}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, sup.StartOne(ctx, cfg))
	defer sup.StopOne(cfg.ID)

	cfg.Host = "127.0.0.2"
	require.NoError(t, sup.UpdateOne(ctx, cfg))

	session, ok := sup.lookupSession(cfg.ID)
	require.True(t, ok)
	assert.Equal(t, int64(4), session.DeviceID())
}
