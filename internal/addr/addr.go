// Package addr holds the small IPv4 value types shared by the range set, the
// flow table and the result sink. Everything here is a plain comparable
// struct so it can be used directly as a map key.
package addr

import (
	"fmt"
	"net"
)

// V4 is a dotted-quad IPv4 address stored as a host-order uint32, the same
// representation the range math in internal/ranges operates on.
type V4 uint32

// FromNetIP converts a net.IP (v4 or v4-in-v6) into a V4. It panics if ip is
// not an IPv4 address; callers are expected to have already validated the
// address family.
func FromNetIP(ip net.IP) V4 {
	ip4 := ip.To4()
	if ip4 == nil {
		panic(fmt.Sprintf("addr: %s is not an IPv4 address", ip))
	}
	return V4(uint32(ip4[0])<<24 | uint32(ip4[1])<<16 | uint32(ip4[2])<<8 | uint32(ip4[3]))
}

// ToNetIP renders the address as a net.IP.
func (a V4) ToNetIP() net.IP {
	return net.IPv4(byte(a>>24), byte(a>>16), byte(a>>8), byte(a))
}

func (a V4) String() string {
	return a.ToNetIP().String()
}

// Add returns a+delta, saturating at the top of the IPv4 space instead of
// wrapping. Used when walking a range address-by-address.
func (a V4) Add(delta uint32) V4 {
	if uint64(a)+uint64(delta) > 0xFFFFFFFF {
		return V4(0xFFFFFFFF)
	}
	return a + V4(delta)
}

// SocketV4 is a (remote address, remote port) pair. It is comparable and
// hashable, so it is used directly as the FlowTable / ResultSink key.
type SocketV4 struct {
	Addr V4
	Port uint16
}

func (s SocketV4) String() string {
	return fmt.Sprintf("%s:%d", s.Addr, s.Port)
}

// Range is an inclusive IPv4 address range, start <= end.
type Range struct {
	Start V4
	End   V4
}

// Single returns a one-address range.
func Single(a V4) Range {
	return Range{Start: a, End: a}
}
