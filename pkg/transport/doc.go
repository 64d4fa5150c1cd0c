// Package transport wraps a net.Conn with sentence-level read/write
// methods, using pkg/wire to frame the device protocol's request/reply
// sentences. Interpreting them is left to callers (pkg/proto).
//
// The transport layer handles:
//   - Plain TCP connections (the device protocol carries no transport
//     security of its own; operators are expected to restrict access to
//     the router's API port at the network layer)
//   - Variable-length word framing and zero-byte sentence termination
//   - SetDeadline for read/write deadlines; Conn sets none by itself
//     (pkg/upstream sets one only around the login handshake)
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│   Device protocol sentences    │
//	├────────────────────────────────┤
//	│   Variable-length word framing │
//	├────────────────────────────────┤
//	│              TCP               │
//	└────────────────────────────────┘
//
// Unlike a framed RPC protocol with message IDs, sentences are matched to
// requests purely by order and by an optional client-supplied .tag
// attribute; this package does no correlation of its own, that is
// pkg/upstream's job.
package transport
