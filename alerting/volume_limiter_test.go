package alerting

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/amirphl/jobboard-alerts/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryVolumeLimiter_ConcurrentCap(t *testing.T) {
	l := NewMemoryVolumeLimiter(StaticCap(3))
	ctx := context.Background()

	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.TryConsume(ctx, models.ChannelPhone, "2026-03-04")
			if err == nil && ok {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), granted.Load())
	used, err := l.Used(ctx, models.ChannelPhone, "2026-03-04")
	require.NoError(t, err)
	assert.Equal(t, int64(3), used)
}

func TestMemoryVolumeLimiter_DayRollover(t *testing.T) {
	l := NewMemoryVolumeLimiter(StaticCap(1))
	ctx := context.Background()

	ok, _ := l.TryConsume(ctx, models.ChannelPhone, "2026-03-04")
	assert.True(t, ok)
	ok, _ = l.TryConsume(ctx, models.ChannelPhone, "2026-03-04")
	assert.False(t, ok)
	ok, _ = l.TryConsume(ctx, models.ChannelPhone, "2026-03-05")
	assert.True(t, ok)
}

func TestMemoryVolumeLimiter_UncappedChannels(t *testing.T) {
	l := NewMemoryVolumeLimiter(StaticCap(1))
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		ok, err := l.TryConsume(ctx, models.ChannelEmail, "2026-03-04")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	unlimited := NewMemoryVolumeLimiter(StaticCap(0))
	for i := 0; i < 10; i++ {
		ok, _ := unlimited.TryConsume(ctx, models.ChannelPhone, "2026-03-04")
		assert.True(t, ok)
	}
	used, _ := unlimited.Used(ctx, models.ChannelPhone, "2026-03-04")
	assert.Equal(t, int64(10), used)
}
