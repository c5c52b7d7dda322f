package throttle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextBatchSize(t *testing.T) {
	th := New(10000)
	n := th.NextBatch(context.Background())
	assert.Equal(t, 10, n)
}

func TestNextBatchFloorsBurstAtOne(t *testing.T) {
	th := New(1)
	assert.Equal(t, 1, th.batch)
}

func TestNextBatchPaces(t *testing.T) {
	th := New(1000) // batch=1, ~1ms per token
	ctx := context.Background()
	th.NextBatch(ctx) // drains initial burst

	start := time.Now()
	for i := 0; i < 20; i++ {
		th.NextBatch(ctx)
	}
	assert.Greater(t, time.Since(start), 10*time.Millisecond)
}

func TestNextBatchRespectsCancellation(t *testing.T) {
	th := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, 0, th.NextBatch(ctx))
}
