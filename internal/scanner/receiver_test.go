package scanner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrafind/sporefinder/internal/addr"
	"github.com/terrafind/sporefinder/internal/driver"
	"github.com/terrafind/sporefinder/internal/flow"
	"github.com/terrafind/sporefinder/internal/result"
)

func setup() (*Receiver, *driver.Mock, *flow.Table, *result.Sink) {
	drv := driver.NewMock()
	table := flow.New()
	sink := result.New()
	return NewReceiver(drv, table, sink), drv, table, sink
}

// Scenario 3: handshake to Approved.
func TestHandshakeToApproved(t *testing.T) {
	recv, drv, table, sink := setup()
	dst := addr.SocketV4{Addr: addr.V4(1), Port: 7777}
	table.Insert(dst, time.Now())

	recv.handle(driver.Segment{
		Source:         dst,
		DestPort:       61000,
		Sequence:       1000,
		Acknowledgment: 42,
		Flags:          driver.Flags{SYN: true, ACK: true},
	})

	calls := drv.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, driver.CallACK, calls[0].Kind)
	assert.EqualValues(t, 1001, calls[0].Ack)
	assert.Equal(t, driver.CallData, calls[1].Kind)
	assert.EqualValues(t, 42, calls[1].Seq)
	assert.EqualValues(t, 1001, calls[1].Ack)

	table.WithLock(dst, func(fl *flow.Flow) {
		assert.True(t, fl.HandshakeDone)
	})

	frame := []byte{0x0A, 0x00, 0x03, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	recv.handle(driver.Segment{
		Source:         dst,
		DestPort:       61000,
		Sequence:       2000,
		Acknowledgment: 200,
		Flags:          driver.Flags{PSH: true},
		Payload:        frame,
	})

	snap := sink.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "Approved", snap[0].Outcome.String())

	rstCalls := 0
	for _, c := range drv.Calls() {
		if c.Kind == driver.CallRST {
			rstCalls++
		}
	}
	assert.Equal(t, 1, rstCalls)
}

// Scenario 4: booted with reason.
func TestBootedWithReason(t *testing.T) {
	recv, _, table, sink := setup()
	dst := addr.SocketV4{Addr: addr.V4(2), Port: 7777}
	table.Insert(dst, time.Now())

	reason := "Invalid ver"
	strBytes := append([]byte{byte(len(reason) + 2)}, reason...)
	frame := append([]byte{0x00, 0x00, 0x02}, strBytes...)
	frame[0] = byte(len(frame))

	recv.handle(driver.Segment{
		Source:   dst,
		DestPort: 61000,
		Flags:    driver.Flags{PSH: true},
		Payload:  frame,
	})

	snap := sink.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, `Booted("Invalid ver")`, snap[0].Outcome.String())
}

// Scenario 5: unsolicited segment for an unknown destination.
func TestUnknownDestinationGetsExactlyOneRST(t *testing.T) {
	recv, drv, _, sink := setup()
	dst := addr.SocketV4{Addr: addr.V4(3), Port: 7777}

	recv.handle(driver.Segment{
		Source:         dst,
		DestPort:       61000,
		Sequence:       10,
		Acknowledgment: 20,
		Flags:          driver.Flags{PSH: true},
		Payload:        []byte{0, 0, 3},
	})

	calls := drv.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, driver.CallRST, calls[0].Kind)
	assert.EqualValues(t, 20, calls[0].Seq)
	assert.EqualValues(t, 10, calls[0].Ack)
	assert.Equal(t, 0, sink.Len())
}

func TestDuplicatePublicationSuppressed(t *testing.T) {
	recv, drv, table, sink := setup()
	dst := addr.SocketV4{Addr: addr.V4(4), Port: 7777}
	table.Insert(dst, time.Now())
	sink.Publish(dst, result.NewApproved())

	recv.handle(driver.Segment{
		Source:  dst,
		Flags:   driver.Flags{PSH: true},
		Payload: []byte{0x0A, 0x00, 0x03, 0, 0, 0, 0, 0, 0, 0},
	})

	calls := drv.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, driver.CallACK, calls[0].Kind)
	assert.Equal(t, 1, sink.Len())
}

func TestTruncatedPayloadGetsRST(t *testing.T) {
	recv, drv, table, _ := setup()
	dst := addr.SocketV4{Addr: addr.V4(5), Port: 7777}
	table.Insert(dst, time.Now())

	recv.handle(driver.Segment{
		Source:  dst,
		Flags:   driver.Flags{PSH: true},
		Payload: []byte{1, 2},
	})

	calls := drv.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, driver.CallACK, calls[0].Kind)
	assert.Equal(t, driver.CallRST, calls[1].Kind)
}

func TestNetModuleDoesNotRSTOrPublish(t *testing.T) {
	recv, drv, table, sink := setup()
	dst := addr.SocketV4{Addr: addr.V4(6), Port: 7777}
	table.Insert(dst, time.Now())

	frame := []byte{0x05, 0x00, 82, 0xFF}
	recv.handle(driver.Segment{
		Source:  dst,
		Flags:   driver.Flags{PSH: true},
		Payload: frame,
	})

	calls := drv.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, driver.CallACK, calls[0].Kind)
	assert.Equal(t, 0, sink.Len())

	table.WithLock(dst, func(fl *flow.Flow) {
		assert.False(t, fl.Closed)
	})
}

func TestClosedFlowIsNotProcessed(t *testing.T) {
	recv, drv, table, sink := setup()
	dst := addr.SocketV4{Addr: addr.V4(10), Port: 7777}
	table.Insert(dst, time.Now())
	table.WithLock(dst, func(fl *flow.Flow) { fl.Closed = true })

	recv.handle(driver.Segment{
		Source:         dst,
		DestPort:       61000,
		Sequence:       1000,
		Acknowledgment: 42,
		Flags:          driver.Flags{SYN: true, ACK: true, PSH: true},
		Payload:        []byte{0x0A, 0x00, 0x03, 0, 0, 0, 0, 0, 0, 0},
	})

	assert.Empty(t, drv.Calls())
	assert.Equal(t, 0, sink.Len())
}

func TestRSTMarksFlowClosed(t *testing.T) {
	recv, _, table, _ := setup()
	dst := addr.SocketV4{Addr: addr.V4(7), Port: 7777}
	table.Insert(dst, time.Now())

	recv.handle(driver.Segment{Source: dst, Flags: driver.Flags{RST: true}})

	table.WithLock(dst, func(fl *flow.Flow) {
		assert.True(t, fl.Closed)
	})
}

func TestFINSendsFINAndCloses(t *testing.T) {
	recv, drv, table, _ := setup()
	dst := addr.SocketV4{Addr: addr.V4(8), Port: 7777}
	table.Insert(dst, time.Now())

	recv.handle(driver.Segment{Source: dst, Sequence: 5, Acknowledgment: 9, Flags: driver.Flags{FIN: true}})

	calls := drv.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, driver.CallFIN, calls[0].Kind)
	assert.EqualValues(t, 9, calls[0].Seq)
	assert.EqualValues(t, 5, calls[0].Ack)

	table.WithLock(dst, func(fl *flow.Flow) {
		assert.True(t, fl.Closed)
	})
}
