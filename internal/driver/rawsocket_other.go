//go:build !linux

package driver

import (
	"fmt"
	"net"

	"github.com/terrafind/sporefinder/internal/addr"
)

// NewRawSocket is only implemented on Linux (IP_HDRINCL raw sockets and the
// ip4:tcp listen socket are Linux-specific in this driver). Other platforms
// get the Mock driver for tests; there is no production target here.
func NewRawSocket(localIP net.IP) (*RawSocket, error) {
	return nil, fmt.Errorf("driver: raw-socket driver is only implemented on linux")
}

// RawSocket is an opaque placeholder on non-Linux builds so the type name
// still resolves for callers that reference it in build-tag-independent
// code (cmd/sporefinder/main.go).
type RawSocket struct{}

func (r *RawSocket) SendSYN(dst addr.SocketV4, isn uint32) error                     { return nil }
func (r *RawSocket) SendACK(dst addr.SocketV4, srcPort uint16, seq, ack uint32) error { return nil }
func (r *RawSocket) SendData(dst addr.SocketV4, srcPort uint16, seq, ack uint32, payload []byte) error {
	return nil
}
func (r *RawSocket) SendRST(dst addr.SocketV4, srcPort uint16, seq, ack uint32) error { return nil }
func (r *RawSocket) SendFIN(dst addr.SocketV4, srcPort uint16, seq, ack uint32) error { return nil }
func (r *RawSocket) Recv() (Segment, bool)                                           { return Segment{}, false }
func (r *RawSocket) Close() error                                                    { return nil }
