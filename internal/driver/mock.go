package driver

import (
	"sync"

	"github.com/terrafind/sporefinder/internal/addr"
)

// CallKind tags one recorded Mock call.
type CallKind int

const (
	CallSYN CallKind = iota
	CallACK
	CallData
	CallRST
	CallFIN
)

// Call records one outbound send the Mock observed.
type Call struct {
	Kind    CallKind
	Dst     addr.SocketV4
	SrcPort uint16
	ISN     uint32
	Seq     uint32
	Ack     uint32
	Payload []byte
}

// Mock is an in-memory Driver for tests: it records every send and lets a
// test inject inbound Segments for Recv to return, with no real sockets.
type Mock struct {
	mu          sync.Mutex
	calls       []Call
	queue       []Segment
	nextSrcPort uint16
	allocated   map[addr.SocketV4]uint16
	closed      bool
}

// NewMock returns an empty Mock driver.
func NewMock() *Mock {
	return &Mock{
		nextSrcPort: SourcePortBase,
		allocated:   make(map[addr.SocketV4]uint16),
	}
}

func (m *Mock) record(c Call) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
}

func (m *Mock) SendSYN(dst addr.SocketV4, isn uint32) error {
	m.mu.Lock()
	port := m.nextSrcPort
	m.nextSrcPort++
	if m.nextSrcPort >= SourcePortBase+SourcePortSpan {
		m.nextSrcPort = SourcePortBase
	}
	m.allocated[dst] = port
	m.mu.Unlock()
	m.record(Call{Kind: CallSYN, Dst: dst, SrcPort: port, ISN: isn})
	return nil
}

func (m *Mock) SendACK(dst addr.SocketV4, srcPort uint16, seq, ack uint32) error {
	m.record(Call{Kind: CallACK, Dst: dst, SrcPort: srcPort, Seq: seq, Ack: ack})
	return nil
}

func (m *Mock) SendData(dst addr.SocketV4, srcPort uint16, seq, ack uint32, payload []byte) error {
	m.record(Call{Kind: CallData, Dst: dst, SrcPort: srcPort, Seq: seq, Ack: ack, Payload: payload})
	return nil
}

func (m *Mock) SendRST(dst addr.SocketV4, srcPort uint16, seq, ack uint32) error {
	m.record(Call{Kind: CallRST, Dst: dst, SrcPort: srcPort, Seq: seq, Ack: ack})
	return nil
}

func (m *Mock) SendFIN(dst addr.SocketV4, srcPort uint16, seq, ack uint32) error {
	m.record(Call{Kind: CallFIN, Dst: dst, SrcPort: srcPort, Seq: seq, Ack: ack})
	return nil
}

// Recv pops the oldest queued Segment, if any.
func (m *Mock) Recv() (Segment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return Segment{}, false
	}
	seg := m.queue[0]
	m.queue = m.queue[1:]
	return seg, true
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// InjectSegment enqueues a reply for the next Recv call(s) to return, in
// FIFO order.
func (m *Mock) InjectSegment(seg Segment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, seg)
}

// Calls returns a snapshot of every send observed so far.
func (m *Mock) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// AllocatedPort returns the source port SendSYN chose for dst, and whether
// a SYN was ever sent to it.
func (m *Mock) AllocatedPort(dst addr.SocketV4) (uint16, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.allocated[dst]
	return p, ok
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
