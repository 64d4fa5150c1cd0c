package config

import "context"

// Device describes one managed router: its upstream connection
// parameters, its local listener port, and the capture flag carried over
// from the original system's netflow_enabled column (NetFlow capture
// itself is out of scope; only the flag and its plumbing survive).
type Device struct {
	ID             int64  `yaml:"id"`
	Name           string `yaml:"name"`
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	ProxyPort      int    `yaml:"proxy_port"`
	Enabled        bool   `yaml:"enabled"`
	CaptureEnabled bool   `yaml:"capture_enabled"`
}

// Store is the read surface this proxy needs from the external
// configuration system: the device list, single-device lookup, and a
// flat key/value service configuration table (queue DSN, defaults, etc).
type Store interface {
	Devices(ctx context.Context) ([]Device, error)
	Device(ctx context.Context, id int64) (Device, error)
	ServiceConfig(ctx context.Context, key string) (string, bool, error)
}
