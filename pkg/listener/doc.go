// Package listener runs one plaintext TCP listener per managed device,
// speaking the device protocol to local clients and translating each
// client sentence into a call against that device's upstream.Session or
// its queue.Store.
//
// Server's accept loop, connection registry, and OnConnect/OnDisconnect
// hooks are adapted from the teacher's pkg/transport.Server: same
// conns-map-plus-mutex registry shape and per-connection goroutine model,
// minus the TLS handshake and minus the control-message (ping/pong/close)
// handling the device protocol has no equivalent of. google/uuid backs
// per-connection IDs exactly as it did in the teacher's ServerConn.
package listener
