package flow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrafind/sporefinder/internal/addr"
)

func TestInsertAndWithLock(t *testing.T) {
	table := New()
	key := addr.SocketV4{Addr: addr.V4(1), Port: 7777}
	now := time.Now()
	table.Insert(key, now)

	var seen *Flow
	found := table.WithLock(key, func(fl *Flow) {
		seen = fl
		fl.HandshakeDone = true
	})
	require.True(t, found)
	assert.True(t, seen.HandshakeDone)
	assert.Equal(t, now, seen.SynTime)

	found = table.WithLock(addr.SocketV4{Addr: addr.V4(2), Port: 1}, func(fl *Flow) {})
	assert.False(t, found)
}

func TestInsertOverwritesExisting(t *testing.T) {
	table := New()
	key := addr.SocketV4{Addr: addr.V4(1), Port: 7777}
	table.Insert(key, time.Now())
	table.WithLock(key, func(fl *Flow) { fl.Closed = true })

	table.Insert(key, time.Now())
	table.WithLock(key, func(fl *Flow) {
		assert.False(t, fl.Closed)
	})
}

func TestEvictRemovesExpiredAndClosed(t *testing.T) {
	table := New()
	expired := addr.SocketV4{Addr: addr.V4(1), Port: 1}
	fresh := addr.SocketV4{Addr: addr.V4(2), Port: 2}
	closed := addr.SocketV4{Addr: addr.V4(3), Port: 3}

	now := time.Now()
	table.Insert(expired, now.Add(-TTL-time.Second))
	table.Insert(fresh, now)
	table.Insert(closed, now)
	table.WithLock(closed, func(fl *Flow) { fl.Closed = true })

	n := table.Evict(now)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, table.Len())
	assert.True(t, table.WithLock(fresh, func(fl *Flow) {}))
}

func TestGarbageCollectorEvictsOnSchedule(t *testing.T) {
	table := New()
	key := addr.SocketV4{Addr: addr.V4(9), Port: 9}
	table.Insert(key, time.Now().Add(-TTL-time.Second))

	gc := NewGarbageCollector(table)
	go gc.Run()
	defer gc.Stop()

	assert.Eventually(t, func() bool {
		return table.Len() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestClearEmptiesTable(t *testing.T) {
	table := New()
	table.Insert(addr.SocketV4{Addr: addr.V4(1), Port: 1}, time.Now())
	table.Clear()
	assert.Equal(t, 0, table.Len())
}
