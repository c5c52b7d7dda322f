package scanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrafind/sporefinder/internal/driver"
	"github.com/terrafind/sporefinder/internal/flow"
	"github.com/terrafind/sporefinder/internal/ranges"
	"github.com/terrafind/sporefinder/internal/throttle"
)

func TestEmitterSendsSYNPerDestinationAndInsertsFlow(t *testing.T) {
	drv := driver.NewMock()
	table := flow.New()
	th := throttle.New(1_000_000)
	emitter := NewEmitter(drv, table, th)

	var set ranges.Set
	set.Extend([]ranges.ScanRange{{AddrStart: 10, AddrEnd: 11, PortStart: 7777, PortEnd: 7778}})

	emitter.Run(context.Background(), &set)

	calls := drv.Calls()
	require.Len(t, calls, 4)
	for _, c := range calls {
		assert.Equal(t, driver.CallSYN, c.Kind)
		assert.Less(t, c.ISN, uint32(maxISN))
	}
	assert.Equal(t, 4, table.Len())
}

func TestEmitterStopsOnContextCancellation(t *testing.T) {
	drv := driver.NewMock()
	table := flow.New()
	th := throttle.New(1)
	emitter := NewEmitter(drv, table, th)

	var set ranges.Set
	set.Extend([]ranges.ScanRange{{AddrStart: 0, AddrEnd: 1000, PortStart: 1, PortEnd: 1}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	emitter.Run(ctx, &set)

	assert.Less(t, len(drv.Calls()), 1001)
}
