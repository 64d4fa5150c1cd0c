// Package upstream maintains exactly one working connection per managed
// router and serializes all RPCs through it.
//
// A Session owns a connection.Manager configured with a fixed-delay
// backoff (5s, no growth, no jitter) so failed dials and lost connections
// retry at a constant interval rather than backing off exponentially. A
// liveness probe runs every 10 seconds under the same serializing lock
// that guards client-issued commands, so the probe and real traffic never
// interleave reads on the shared socket.
package upstream
