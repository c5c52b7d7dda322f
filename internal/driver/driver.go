// Package driver defines the TX/RX abstraction the scanner sends and
// receives raw TCP segments through (spec §6) and the source-port range
// probes are sent from. The interface is the only polymorphic
// boundary in the system (spec §9); concrete implementations live in
// rawsocket_linux.go (production) and mock.go (tests).
package driver

import (
	"github.com/terrafind/sporefinder/internal/addr"
)

// Flags are the TCP control bits relevant to the scan path.
type Flags struct {
	SYN bool
	ACK bool
	PSH bool
	RST bool
	FIN bool
}

// Segment is what Recv hands back: the source address/port the reply came
// from, plus the TCP fields the receiver branches on.
type Segment struct {
	Source         addr.SocketV4
	DestPort       uint16
	Sequence       uint32
	Acknowledgment uint32
	Flags          Flags
	Payload        []byte
}

// Driver sends raw TCP control segments to a destination and receives
// replies, without using a kernel TCP socket. Source port selection for a
// probe is driver-internal; callers learn it back out of Segment.DestPort on
// replies routed to the receiver's own local port range.
type Driver interface {
	// SendSYN opens a new probe to dst with the given initial sequence
	// number, from a driver-chosen source port in [61000, 65000).
	SendSYN(dst addr.SocketV4, isn uint32) error

	// SendACK, SendData, SendRST and SendFIN continue a probe already
	// identified by srcPort (the local port the SYN went out from).
	SendACK(dst addr.SocketV4, srcPort uint16, seq, ack uint32) error
	SendData(dst addr.SocketV4, srcPort uint16, seq, ack uint32, payload []byte) error
	SendRST(dst addr.SocketV4, srcPort uint16, seq, ack uint32) error
	SendFIN(dst addr.SocketV4, srcPort uint16, seq, ack uint32) error

	// Recv returns the next available segment, or ok=false if none is
	// currently available (callers back off and retry).
	Recv() (seg Segment, ok bool)

	// Close releases the underlying sockets.
	Close() error
}

// SourcePortBase and SourcePortSpan bound the ephemeral port range probes
// are sent from, per spec §6.
const (
	SourcePortBase = 61000
	SourcePortSpan = 4000
)
