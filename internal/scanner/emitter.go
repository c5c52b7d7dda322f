// Package scanner wires RangeSet, Throttler, FlowTable, Driver and
// ResultSink into two of the three coupled subsystems spec §1 describes: the
// SYN emitter and the stateless receiver. The flow table and its garbage
// collector live in internal/flow. Goroutine-per-role concurrency over
// plain structs follows _examples/virtuallynathan-fbtracert/main.go's
// Sender/TCPReceiver shape.
package scanner

import (
	"context"
	"math/rand"
	"time"

	"github.com/golang/glog"

	"github.com/terrafind/sporefinder/internal/addr"
	"github.com/terrafind/sporefinder/internal/driver"
	"github.com/terrafind/sporefinder/internal/flow"
	"github.com/terrafind/sporefinder/internal/logctl"
	"github.com/terrafind/sporefinder/internal/metrics"
	"github.com/terrafind/sporefinder/internal/ranges"
	"github.com/terrafind/sporefinder/internal/throttle"
)

// pkgName is the "crate" logctl.Enabled consults for this package's
// RUST_LOG-style overrides (spec §6, SPEC_FULL.md AMBIENT STACK).
const pkgName = "scanner"

// maxISN reserves headroom below 2^32 so peer-side +1 acks can't wrap into
// collisions with other flows (spec §4.5).
const maxISN = 1<<32 - 100000

// Emitter iterates a RangeSet, emitting a rate-limited SYN per destination
// and registering a Flow for each.
type Emitter struct {
	drv       driver.Driver
	table     *flow.Table
	throttler *throttle.Throttler
}

// NewEmitter builds an Emitter over the given driver, flow table and
// throttler.
func NewEmitter(drv driver.Driver, table *flow.Table, throttler *throttle.Throttler) *Emitter {
	return &Emitter{drv: drv, table: table, throttler: throttler}
}

// Run walks set in its defined nested order, emitting one SYN per
// destination under the throttler and inserting a Flow for each. It blocks
// the calling goroutine and returns once the whole set has been walked, or
// earlier if ctx is cancelled.
func (e *Emitter) Run(ctx context.Context, set *ranges.Set) {
	total := set.Count()
	var sent, lastSecondCount uint64
	batchRemaining := 0
	lastLog := time.Now()

	set.ForEach(func(dst addr.SocketV4) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}

		if batchRemaining <= 0 {
			batchRemaining = e.throttler.NextBatch(ctx)
			if batchRemaining <= 0 {
				return false
			}
		}

		isn := uint32(rand.Int63n(maxISN))
		if err := e.drv.SendSYN(dst, isn); err != nil && logctl.Enabled(pkgName, logctl.LevelTrace) {
			glog.Infof("scanner: send_syn to %s failed: %v", dst, err)
		}
		e.table.Insert(dst, time.Now())
		metrics.SynsSent.Inc()

		batchRemaining--
		sent++
		lastSecondCount++

		if now := time.Now(); now.Sub(lastLog) >= time.Second {
			pct := float64(sent) / float64(total) * 100
			glog.Infof("scanner: %d pps, %.1f%% complete, %d/%d sent", lastSecondCount, pct, sent, total)
			lastSecondCount = 0
			lastLog = now
		}
		return true
	})

	glog.Infof("scanner: emitter done, %d/%d sent", sent, total)
}
