package ranges

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"github.com/terrafind/sporefinder/internal/addr"
)

//go:embed exclusions.txt
var defaultExclusionsAsset string

// DefaultExclusions parses the compiled-in exclusion list (spec §6). It is
// loaded once at startup and subtracted from every RangeSet before scanning.
func DefaultExclusions() ([]addr.Range, error) {
	return ParseExclusions(defaultExclusionsAsset)
}

// ParseExclusions parses "<addr>/<mask>" lines, one per line; blank lines
// and "#" comments are ignored.
func ParseExclusions(text string) ([]addr.Range, error) {
	var out []addr.Range
	for lineNo, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ipStr, maskStr, ok := strings.Cut(line, "/")
		if !ok {
			return nil, fmt.Errorf("ranges: exclusion line %d (%q): missing /mask", lineNo+1, line)
		}
		maskBits, err := strconv.ParseUint(maskStr, 10, 8)
		if err != nil || maskBits > 32 {
			return nil, fmt.Errorf("ranges: exclusion line %d (%q): bad mask", lineNo+1, line)
		}
		ip, err := parseIPv4(ipStr)
		if err != nil {
			return nil, fmt.Errorf("ranges: exclusion line %d (%q): %w", lineNo+1, line, err)
		}
		hostBits := 32 - maskBits
		var hostMask uint32
		if hostBits > 0 {
			hostMask = (uint32(1) << hostBits) - 1
		}
		out = append(out, addr.Range{
			Start: addr.V4(uint32(ip) &^ hostMask),
			End:   addr.V4(uint32(ip) | hostMask),
		})
	}
	return out, nil
}
