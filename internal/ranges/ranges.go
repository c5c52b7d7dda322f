// Package ranges implements the compact (address range × port range) probe
// set the scanner walks: ScanRange/RangeSet from spec §3–§4.1. The exclusion
// algorithm and the CLI grammar it parses are both grounded on
// _examples/original_source/libs/matscan-ranges/src/targets.rs, translated
// into the teacher's plain-struct, no-framework style.
package ranges

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/terrafind/sporefinder/internal/addr"
)

// ScanRange is one (address range × port range) rectangle of the probe
// space, inclusive on both dimensions.
type ScanRange struct {
	AddrStart addr.V4
	AddrEnd   addr.V4
	PortStart uint16
	PortEnd   uint16
}

// CountAddresses returns the number of distinct addresses in the range.
func (r ScanRange) CountAddresses() uint64 {
	return uint64(r.AddrEnd) - uint64(r.AddrStart) + 1
}

// CountPorts returns the number of distinct ports in the range.
func (r ScanRange) CountPorts() uint64 {
	return uint64(r.PortEnd) - uint64(r.PortStart) + 1
}

// Count returns the total number of (address, port) pairs in the range.
func (r ScanRange) Count() uint64 {
	return r.CountAddresses() * r.CountPorts()
}

// Index returns the i-th (address, port) pair in nested order: addresses
// ascending outer, ports ascending inner. i must be < r.Count().
func (r ScanRange) Index(i uint64) addr.SocketV4 {
	portCount := r.CountPorts()
	addrIdx := i / portCount
	portIdx := i % portCount
	return addr.SocketV4{
		Addr: r.AddrStart.Add(uint32(addrIdx)),
		Port: r.PortStart + uint16(portIdx),
	}
}

// Single builds a one-address, one-port ScanRange.
func Single(a addr.V4, port uint16) ScanRange {
	return ScanRange{AddrStart: a, AddrEnd: a, PortStart: port, PortEnd: port}
}

// ParseScanRange parses one "<addr-spec>:<port-spec>" item per spec §6.
// addr-spec is "A.B.C.D", "A.B.C.D/mask" or "A.B.C.D-E.F.G.H"; port-spec is
// "N" or "M-N".
func ParseScanRange(s string) (ScanRange, error) {
	addrPart, portPart, ok := strings.Cut(s, ":")
	if !ok {
		return ScanRange{}, fmt.Errorf("ranges: %q has no port specified", s)
	}

	isSlash := strings.Contains(addrPart, "/")
	isHyphen := strings.Contains(addrPart, "-")
	if isSlash && isHyphen {
		return ScanRange{}, fmt.Errorf("ranges: %q is invalid, contains both - and /", addrPart)
	}

	var start, end addr.V4
	switch {
	case isSlash:
		ipStr, maskStr, _ := strings.Cut(addrPart, "/")
		maskBits, err := strconv.ParseUint(maskStr, 10, 8)
		if err != nil || maskBits > 32 {
			return ScanRange{}, fmt.Errorf("ranges: failed to parse subnet mask in %q", addrPart)
		}
		ip, err := parseIPv4(ipStr)
		if err != nil {
			return ScanRange{}, fmt.Errorf("ranges: failed to parse net address in %q: %w", addrPart, err)
		}
		hostBits := 32 - maskBits
		var hostMask uint32
		if hostBits > 0 {
			hostMask = (uint32(1) << hostBits) - 1
		}
		start = addr.V4(uint32(ip) &^ hostMask)
		end = addr.V4(uint32(ip) | hostMask)
	case isHyphen:
		startStr, endStr, _ := strings.Cut(addrPart, "-")
		s, err := parseIPv4(startStr)
		if err != nil {
			return ScanRange{}, fmt.Errorf("ranges: could not parse range start in %q: %w", addrPart, err)
		}
		e, err := parseIPv4(endStr)
		if err != nil {
			return ScanRange{}, fmt.Errorf("ranges: could not parse range end in %q: %w", addrPart, err)
		}
		if s > e {
			return ScanRange{}, fmt.Errorf("ranges: start address is bigger than end address in %q", addrPart)
		}
		start, end = s, e
	default:
		ip, err := parseIPv4(addrPart)
		if err != nil {
			return ScanRange{}, fmt.Errorf("ranges: could not parse address in %q: %w", addrPart, err)
		}
		start, end = ip, ip
	}

	portStart, portEnd, err := parsePortSpec(portPart)
	if err != nil {
		return ScanRange{}, err
	}

	return ScanRange{AddrStart: start, AddrEnd: end, PortStart: portStart, PortEnd: portEnd}, nil
}

func parsePortSpec(s string) (uint16, uint16, error) {
	if startStr, endStr, ok := strings.Cut(s, "-"); ok {
		start, err := strconv.ParseUint(startStr, 10, 16)
		if err != nil {
			return 0, 0, fmt.Errorf("ranges: could not parse port start in %q: %w", s, err)
		}
		end, err := strconv.ParseUint(endStr, 10, 16)
		if err != nil {
			return 0, 0, fmt.Errorf("ranges: could not parse port end in %q: %w", s, err)
		}
		return uint16(start), uint16(end), nil
	}
	p, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("ranges: failed to parse port in %q: %w", s, err)
	}
	return uint16(p), uint16(p), nil
}

func parseIPv4(s string) (addr.V4, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 4 {
		return 0, fmt.Errorf("not an IPv4 address")
	}
	var out uint32
	for _, p := range parts {
		v, err := strconv.ParseUint(p, 10, 8)
		if err != nil {
			return 0, fmt.Errorf("not an IPv4 address")
		}
		out = out<<8 | uint32(v)
	}
	return addr.V4(out), nil
}

// ParseRanges parses a comma-separated list of "<addr-spec>:<port-spec>"
// items, the format of the scanner's first positional CLI argument.
func ParseRanges(s string) ([]ScanRange, error) {
	items := strings.Split(s, ",")
	out := make([]ScanRange, 0, len(items))
	for _, item := range items {
		r, err := ParseScanRange(item)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// Set is an ordered sequence of ScanRange, sorted by AddrStart. No entry ever
// has zero cardinality; overlap between entries is tolerated.
type Set struct {
	ranges []ScanRange
}

// Ranges returns the set's ranges in sorted order. The slice must not be
// mutated by the caller.
func (s *Set) Ranges() []ScanRange {
	return s.ranges
}

// Extend appends more ranges to the set and re-sorts by AddrStart.
func (s *Set) Extend(rs []ScanRange) {
	s.ranges = append(s.ranges, rs...)
	sort.Slice(s.ranges, func(i, j int) bool { return s.ranges[i].AddrStart < s.ranges[j].AddrStart })
}

// Count returns the sum of cardinalities of every range in the set.
func (s *Set) Count() uint64 {
	var total uint64
	for _, r := range s.ranges {
		total += r.Count()
	}
	return total
}

// IsEmpty reports whether the set has no ranges left.
func (s *Set) IsEmpty() bool {
	return len(s.ranges) == 0
}

// Exclude subtracts every range in xs from the set, per spec §4.1.
func (s *Set) Exclude(xs []addr.Range) {
	for _, x := range xs {
		s.excludeOne(x)
	}
}

// excludeOne subtracts a single exclusion range from the set, splitting or
// truncating overlapping ScanRanges as needed. The port range of a ScanRange
// carries through unchanged into any split/truncated fragment.
//
// x.Start == 0 and x.End == addr.V4 max are handled safely: the "shrink
// left"/"shrink right" branches below only fire when a surviving ScanRange
// boundary is strictly inside x, which by construction keeps x.Start-1 and
// x.End+1 off the uint32 edges (addr.V4.Add saturates defensively regardless).
func (s *Set) excludeOne(x addr.Range) {
	i := 0
	for i < len(s.ranges) && s.ranges[i].AddrEnd < x.Start {
		i++
	}

	var queued []ScanRange
	for i < len(s.ranges) && s.ranges[i].AddrStart <= x.End {
		r := s.ranges[i]
		switch {
		case r.AddrStart >= x.Start && r.AddrEnd <= x.End:
			// R ⊆ X: remove outright.
			s.ranges = append(s.ranges[:i], s.ranges[i+1:]...)
		case r.AddrStart < x.Start && r.AddrEnd > x.End:
			// X ⊂ R: split into a left remainder (kept in place) and a
			// right remainder (queued for reinsertion).
			queued = append(queued, ScanRange{
				AddrStart: x.End.Add(1),
				AddrEnd:   r.AddrEnd,
				PortStart: r.PortStart,
				PortEnd:   r.PortEnd,
			})
			s.ranges[i].AddrEnd = addr.V4(uint32(x.Start) - 1)
			i++
		case r.AddrStart < x.Start && r.AddrEnd <= x.End:
			// Truncate the right side off R.
			s.ranges[i].AddrEnd = addr.V4(uint32(x.Start) - 1)
			i++
		case r.AddrStart >= x.Start && r.AddrEnd > x.End:
			// Truncate the left side off R. Changing AddrStart would move
			// R out of sorted position, so remove and requeue instead.
			s.ranges = append(s.ranges[:i], s.ranges[i+1:]...)
			queued = append(queued, ScanRange{
				AddrStart: x.End.Add(1),
				AddrEnd:   r.AddrEnd,
				PortStart: r.PortStart,
				PortEnd:   r.PortEnd,
			})
		default:
			panic("ranges: unreachable overlap case")
		}
	}

	s.Extend(queued)
}

// ForEach walks every (address, port) pair in the set, in the order defined
// by spec §4.1: ranges in sorted order, addresses ascending within a range,
// ports ascending within an address. Stops early if f returns false.
func (s *Set) ForEach(f func(addr.SocketV4) bool) {
	for _, r := range s.ranges {
		a := r.AddrStart
		for {
			for port := r.PortStart; ; port++ {
				if !f(addr.SocketV4{Addr: a, Port: port}) {
					return
				}
				if port == r.PortEnd {
					break
				}
			}
			if a == r.AddrEnd {
				break
			}
			a = a.Add(1)
		}
	}
}
