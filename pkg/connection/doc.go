// Package connection provides generic connection lifecycle management: a
// state machine (disconnected/connecting/connected/reconnecting/closed)
// wrapped around a caller-supplied ConnectFunc, with a backoff schedule
// driving automatic reconnection.
//
// This package handles:
//   - Exponential (or, via NewBackoffWithConfig, fixed-delay) backoff
//   - Jitter to prevent thundering herd
//   - Connection state tracking
//   - Automatic reconnection on connection loss
//
// # Reconnection Strategy
//
// By default, NewManager uses exponential backoff:
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s, 32s
//  3. Maximum delay: 60 seconds
//  4. Continue at 60s until successful
//  5. Reset to 1s on successful reconnection
//
// Callers that need a constant retry interval instead (e.g. a fixed 5s
// delay) use NewManagerWithBackoff with a Backoff built via
// NewBackoffWithConfig(BackoffConfig{Initial: d, Max: d, Multiplier: 1}).
//
// # Jitter
//
// To prevent thundering herd when multiple clients reconnect:
//
//	actual_delay = base_delay + random(0, base_delay * jitter)
//
// Jitter is disabled (0) for fixed-delay backoffs.
package connection
