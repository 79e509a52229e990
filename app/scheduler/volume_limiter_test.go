package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/amirphl/jobboard-alerts/alerting"
	"github.com/amirphl/jobboard-alerts/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisVolumeLimiter_ConcurrentCallersNeverExceedCap(t *testing.T) {
	_, client := newRedis(t)
	limiter := NewRedisVolumeLimiter(client, "test:", alerting.StaticCap(3))
	ctx := context.Background()

	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := limiter.TryConsume(ctx, models.ChannelPhone, "2026-03-04")
			assert.NoError(t, err)
			if ok {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), granted.Load())
	used, err := limiter.Used(ctx, models.ChannelPhone, "2026-03-04")
	require.NoError(t, err)
	assert.Equal(t, int64(3), used)
}

func TestRedisVolumeLimiter_DayRollover(t *testing.T) {
	_, client := newRedis(t)
	limiter := NewRedisVolumeLimiter(client, "test:", alerting.StaticCap(1))
	ctx := context.Background()

	ok, err := limiter.TryConsume(ctx, models.ChannelPhone, "2026-03-04")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = limiter.TryConsume(ctx, models.ChannelPhone, "2026-03-04")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = limiter.TryConsume(ctx, models.ChannelPhone, "2026-03-05")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisVolumeLimiter_UncappedAndUnlimited(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()

	capped := NewRedisVolumeLimiter(client, "test:", alerting.StaticCap(1))
	for i := 0; i < 3; i++ {
		ok, err := capped.TryConsume(ctx, models.ChannelEmail, "2026-03-04")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.False(t, mr.Exists("test:"+alerting.VolumeKey(models.ChannelEmail, "2026-03-04")))

	unlimited := NewRedisVolumeLimiter(client, "other:", alerting.StaticCap(0))
	for i := 0; i < 5; i++ {
		ok, err := unlimited.TryConsume(ctx, models.ChannelPhone, "2026-03-04")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	used, err := unlimited.Used(ctx, models.ChannelPhone, "2026-03-04")
	require.NoError(t, err)
	assert.Equal(t, int64(5), used)
}

func TestSettingsCap(t *testing.T) {
	capFn := SettingsCap(StaticSettings{MaxCallsPerDay: 7})
	n, err := capFn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}
