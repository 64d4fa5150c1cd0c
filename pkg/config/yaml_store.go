package config

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// yamlFile is the on-disk shape loaded by YAMLStore.
type yamlFile struct {
	Devices []Device          `yaml:"devices"`
	Service map[string]string `yaml:"service_config"`
}

// YAMLStore implements config.Store backed by a single YAML file, with
// additional write methods for standalone running and tests where the
// real device inventory database is unavailable.
type YAMLStore struct {
	mu      sync.RWMutex
	path    string
	devices []Device
	byID    map[int64]Device
	service map[string]string
}

// NewYAMLStore loads and parses the device list and service config from
// path. The file is read once; call Reload to pick up edits.
func NewYAMLStore(path string) (*YAMLStore, error) {
	s := &YAMLStore{path: path}
	if err := s.reload(path); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *YAMLStore) reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var f yamlFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	byID := make(map[int64]Device, len(f.Devices))
	for _, d := range f.Devices {
		byID[d.ID] = d
	}

	s.mu.Lock()
	s.devices = f.Devices
	s.byID = byID
	s.service = f.Service
	s.mu.Unlock()
	return nil
}

// Reload re-reads the backing file, replacing the in-memory snapshot.
func (s *YAMLStore) Reload() error {
	return s.reload(s.path)
}

// Devices returns every device in the file, enabled or not.
func (s *YAMLStore) Devices(ctx context.Context) ([]Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Device, len(s.devices))
	copy(out, s.devices)
	return out, nil
}

// Device looks up a single device by ID.
func (s *YAMLStore) Device(ctx context.Context, id int64) (Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.byID[id]
	if !ok {
		return Device{}, fmt.Errorf("config: device %d not found", id)
	}
	return d, nil
}

// ServiceConfig looks up a flat service-config key.
func (s *YAMLStore) ServiceConfig(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.service[key]
	return v, ok, nil
}

// AddDevice appends a new device and persists it. The real system of
// record for mikrotik_devices is external (per spec.md's Non-goals); this
// store stands in for it so the core can run standalone, so writes here
// are file rewrites rather than SQL inserts.
func (s *YAMLStore) AddDevice(d Device) error {
	s.mu.Lock()
	if _, exists := s.byID[d.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("config: device %d already exists", d.ID)
	}
	devices := append(append([]Device{}, s.devices...), d)
	s.mu.Unlock()
	return s.persist(devices)
}

// UpdateDevice replaces an existing device's configuration and persists it.
func (s *YAMLStore) UpdateDevice(d Device) error {
	s.mu.Lock()
	if _, exists := s.byID[d.ID]; !exists {
		s.mu.Unlock()
		return fmt.Errorf("config: device %d not found", d.ID)
	}
	devices := make([]Device, len(s.devices))
	copy(devices, s.devices)
	for i := range devices {
		if devices[i].ID == d.ID {
			devices[i] = d
		}
	}
	s.mu.Unlock()
	return s.persist(devices)
}

// RemoveDevice deletes a device and persists the change.
func (s *YAMLStore) RemoveDevice(id int64) error {
	s.mu.Lock()
	if _, exists := s.byID[id]; !exists {
		s.mu.Unlock()
		return fmt.Errorf("config: device %d not found", id)
	}
	devices := make([]Device, 0, len(s.devices))
	for _, d := range s.devices {
		if d.ID != id {
			devices = append(devices, d)
		}
	}
	s.mu.Unlock()
	return s.persist(devices)
}

// persist writes devices plus the current service config back to the
// backing file, then reloads the in-memory snapshot from disk so the
// store never drifts from what is actually on disk.
func (s *YAMLStore) persist(devices []Device) error {
	s.mu.RLock()
	f := yamlFile{Devices: devices, Service: s.service}
	s.mu.RUnlock()

	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("config: marshal %s: %w", s.path, err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", s.path, err)
	}
	return s.reload(s.path)
}
