package supervisor

import (
	"fmt"
	"sync"
)

// Well-known status map component keys, carried over from the original
// system even though this core does not implement the MySQL sink
// ("database") or NetFlow batch job ("nfcapd") components that own them —
// the external admin UI reads this key space regardless of which
// components are in scope here.
const (
	ComponentDatabase  = "database"
	ComponentProcessor = "processor"
	ComponentNfcapd    = "nfcapd"
	ComponentListener  = "listener"
	ComponentUpstream  = "upstream"
)

// StatusMap is a concurrency-safe device-id+component -> human-readable
// status string table. It is purely informational: nothing in this repo
// branches on its contents.
type StatusMap struct {
	m sync.Map // map[statusKey]string
}

type statusKey struct {
	deviceID  int64
	component string
}

// Set records status for one device/component pair.
func (s *StatusMap) Set(deviceID int64, component, status string) {
	s.m.Store(statusKey{deviceID, component}, status)
}

// Get returns the recorded status, or "" if none has been set.
func (s *StatusMap) Get(deviceID int64, component string) string {
	v, ok := s.m.Load(statusKey{deviceID, component})
	if !ok {
		return ""
	}
	return v.(string)
}

// Snapshot returns every recorded status as "device:<id>:<component>" ->
// status, for the admin API's GetStatus.
func (s *StatusMap) Snapshot() map[string]string {
	out := make(map[string]string)
	s.m.Range(func(k, v any) bool {
		key := k.(statusKey)
		out[fmt.Sprintf("device:%d:%s", key.deviceID, key.component)] = v.(string)
		return true
	})
	return out
}

// Clear removes every status entry for a device, used when a device is
// removed or stopped.
func (s *StatusMap) Clear(deviceID int64) {
	s.m.Range(func(k, v any) bool {
		if k.(statusKey).deviceID == deviceID {
			s.m.Delete(k)
		}
		return true
	})
}
