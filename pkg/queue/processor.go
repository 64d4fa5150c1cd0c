package queue

import (
	"context"
	"time"

	"github.com/mikrotik-fleet/routerproxy/pkg/upstream"
	"github.com/mikrotik-fleet/routerproxy/pkg/wire"
)

// batchSize is the maximum number of commands claimed per processing pass.
const batchSize = 20

// idleSleep is how long the processor sleeps between passes that found
// nothing to do.
const idleSleep = 2 * time.Second

// SessionLookup resolves a device ID to its live upstream.Session. It is
// injected rather than imported directly so this package does not need to
// know about pkg/supervisor, which is what actually owns the device-to-
// session map and would otherwise create an import cycle
// (supervisor -> queue -> supervisor).
type SessionLookup func(deviceID int64) (*upstream.Session, bool)

// Processor drains a Store's pending commands for one device, replaying
// each against that device's upstream.Session once it is both connected
// and has been idle of live client traffic for at least IdleTimeout. This
// keeps queue replay from competing with interactive commands on the
// shared, serialized upstream connection.
type Processor struct {
	deviceID int64
	store    *Store
	lookup   SessionLookup
}

// NewProcessor creates a processor for one device's queue.
func NewProcessor(deviceID int64, store *Store, lookup SessionLookup) *Processor {
	return &Processor{deviceID: deviceID, store: store, lookup: lookup}
}

// Run processes deviceID's queue until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		drained, err := p.runPass(ctx)
		if err != nil || !drained {
			select {
			case <-ctx.Done():
				return
			case <-time.After(idleSleep):
			}
		}
	}
}

// runPass claims at most one batch for the device and either replays it,
// resets it, or fails it, per spec.md §4.4 step 3. It returns drained=true
// only when the batch was actually replayed against the device (so the
// caller should immediately check for more); the missing-session,
// disconnected, and idle-guarded branches all return drained=false so the
// caller's idleSleep throttles the next pass instead of hot-looping.
func (p *Processor) runPass(ctx context.Context) (drained bool, err error) {
	batch, err := p.store.ClaimBatch(p.deviceID, batchSize)
	if err != nil {
		return false, err
	}
	if len(batch) == 0 {
		return false, nil
	}

	session, ok := p.lookup(p.deviceID)
	if !ok || !session.Connected() {
		for _, cmd := range batch {
			final := cmd.RetryCount+1 >= MaxRetries
			p.store.Fail(cmd.ID, ErrDeviceNotConnected, final)
		}
		return false, nil
	}

	if session.IdleFor() < IdleTimeout {
		if err := p.store.Reset(p.deviceID); err != nil {
			return false, err
		}
		return false, nil
	}

	for _, cmd := range batch {
		p.replay(ctx, session, cmd)
	}
	return true, nil
}

// replay decodes and runs one claimed command, then completes or fails it
// in the store according to spec.md's failure classification: a logical
// trap is terminal (never retried), anything else is transient and retried
// up to MaxRetries.
func (p *Processor) replay(ctx context.Context, session *upstream.Session, cmd Command) {
	sentence, _, ok, err := wire.DecodeSentence(cmd.Sentence)
	if err != nil || !ok {
		p.store.Fail(cmd.ID, err, cmd.RetryCount+1 >= MaxRetries)
		return
	}

	_, err = session.RunCommand(ctx, sentence)
	if err == nil {
		p.store.Complete(cmd.ID)
		return
	}

	if _, ok := upstream.AsLogicalTrap(err); ok {
		// The device logically refused the command; retrying would only
		// produce the same refusal, so the row is dropped rather than
		// retried.
		p.store.Fail(cmd.ID, err, true)
		return
	}

	final := cmd.RetryCount+1 >= MaxRetries
	p.store.Fail(cmd.ID, err, final)
}
