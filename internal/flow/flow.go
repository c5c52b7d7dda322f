// Package flow holds the transient per-destination probe state: the flow
// table SynEmitter populates, StatelessReceiver mutates, and GarbageCollector
// prunes. The concurrent-map-plus-ticker shape is grounded on
// _examples/etalazz-vsa/internal/ratelimiter/core/store.go and worker.go,
// adapted from a rate-limiter's token buckets to TCP handshake state.
package flow

import (
	"sync"
	"time"

	"github.com/terrafind/sporefinder/internal/addr"
	"github.com/terrafind/sporefinder/internal/metrics"
)

// TTL is the flow lifetime: a flow older than this, or already closed, is
// eligible for eviction.
const TTL = 7 * time.Second

// GCPeriod is the GarbageCollector sweep cadence.
const GCPeriod = 40 * time.Millisecond

// Flow is one in-flight probe's state.
type Flow struct {
	SynTime       time.Time
	HandshakeDone bool
	Closed        bool
}

// Table is a concurrent map from destination to Flow. A single write lock is
// held per receiver iteration so that effects of one flag branch (e.g.
// handshake_done set by SYN+ACK) are visible to the next branch evaluated in
// the same critical section.
type Table struct {
	mu    sync.RWMutex
	flows map[addr.SocketV4]*Flow
}

// New returns an empty Table.
func New() *Table {
	return &Table{flows: make(map[addr.SocketV4]*Flow)}
}

// Insert creates (or overwrites) the flow for key. A retransmitted SYN
// restarts the flow; the scanner never retransmits, so overwrite is safe.
func (t *Table) Insert(key addr.SocketV4, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flows[key] = &Flow{SynTime: now}
	metrics.FlowTableSize.Set(float64(len(t.flows)))
}

// WithLock runs f while holding the table's write lock, passing the flow for
// key (nil if absent) so a receiver iteration can read and mutate it as one
// atomic step. Returning found=false means there was no flow for key.
func (t *Table) WithLock(key addr.SocketV4, f func(fl *Flow)) (found bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fl, ok := t.flows[key]
	if !ok {
		return false
	}
	f(fl)
	return true
}

// Len reports the current flow count, for metrics/logging.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.flows)
}

// Clear removes every flow, used before a rescan pass.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flows = make(map[addr.SocketV4]*Flow)
}

// Evict removes every flow whose syn_time+TTL has elapsed, or that is
// closed, as of now. Returns the number evicted.
func (t *Table) Evict(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var stale []addr.SocketV4
	for k, fl := range t.flows {
		if fl.SynTime.Add(TTL).Before(now) || fl.Closed {
			stale = append(stale, k)
		}
	}
	for _, k := range stale {
		delete(t.flows, k)
	}
	if len(stale) > 0 {
		metrics.FlowsEvicted.Add(float64(len(stale)))
	}
	metrics.FlowTableSize.Set(float64(len(t.flows)))
	return len(stale)
}

// GarbageCollector evicts expired or closed flows from a Table at a fixed
// cadence until stop is closed.
type GarbageCollector struct {
	table *Table
	stop  chan struct{}
	done  chan struct{}
}

// NewGarbageCollector builds a collector for table. Call Run to start it.
func NewGarbageCollector(table *Table) *GarbageCollector {
	return &GarbageCollector{table: table, stop: make(chan struct{}), done: make(chan struct{})}
}

// Run sweeps the table every GCPeriod until Stop is called. Meant to be run
// in its own goroutine — it is one of the scanner's four long-lived threads.
func (gc *GarbageCollector) Run() {
	defer close(gc.done)
	ticker := time.NewTicker(GCPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-gc.stop:
			return
		case now := <-ticker.C:
			gc.table.Evict(now)
		}
	}
}

// Stop signals Run to return and waits for it to do so.
func (gc *GarbageCollector) Stop() {
	close(gc.stop)
	<-gc.done
}
