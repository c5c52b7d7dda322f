// Package throttle implements the pacing primitive the SynEmitter uses to
// approximate a target packets-per-second rate, grounded on the rate.Limiter
// usage in _examples/pymq-tailscale/derp/derp_client.go and
// _examples/other_examples/28704f79_wb-zk-optimism__op-node-p2p-sync.go.go.
package throttle

import (
	"context"

	"golang.org/x/time/rate"
)

// Throttler hands out send batches so that, summed over time, a caller
// approximates maxPPS packets per second.
type Throttler struct {
	limiter *rate.Limiter
	batch   int
}

// New builds a Throttler targeting maxPPS packets/second. Burst size is
// maxPPS/1000 (a notional 1ms tick), floored at 1.
func New(maxPPS int) *Throttler {
	if maxPPS <= 0 {
		maxPPS = 1
	}
	batch := maxPPS / 1000
	if batch < 1 {
		batch = 1
	}
	return &Throttler{
		limiter: rate.NewLimiter(rate.Limit(maxPPS), batch),
		batch:   batch,
	}
}

// NextBatch blocks until batch more packets may be sent, then returns the
// batch size. Callers decrement a local counter and call NextBatch again
// once it reaches zero.
func (t *Throttler) NextBatch(ctx context.Context) int {
	if err := t.limiter.WaitN(ctx, t.batch); err != nil {
		return 0
	}
	return t.batch
}
