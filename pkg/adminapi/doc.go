// Package adminapi is the thin Go-level adapter spec.md §6 describes as
// consumed by an (out-of-scope) web UI layer: AddDevice, UpdateDevice,
// RemoveDevice, ReconnectDB, ClearQueue, ListQueue, GetStatus. It composes
// *supervisor.Supervisor, *queue.Store, and *config.YAMLStore, and never
// touches a socket or SQL statement directly itself.
package adminapi
