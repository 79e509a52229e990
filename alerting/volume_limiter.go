package alerting

import (
	"context"
	"sync"

	"github.com/amirphl/jobboard-alerts/models"
)

// VolumeLimiter enforces the tenant-wide daily cap. Only the phone channel
// is capped; other channels always pass. Implementations must never let
// concurrent callers exceed the cap.
type VolumeLimiter interface {
	TryConsume(ctx context.Context, channel models.NotificationChannel, dayKey string) (bool, error)
	Used(ctx context.Context, channel models.NotificationChannel, dayKey string) (int64, error)
}

// CapFunc returns the current daily cap; 0 means unlimited
type CapFunc func(ctx context.Context) (int, error)

// StaticCap returns a CapFunc with a fixed cap
func StaticCap(n int) CapFunc {
	return func(context.Context) (int, error) { return n, nil }
}

// IsCapped reports whether a channel is subject to the daily cap
func IsCapped(channel models.NotificationChannel) bool {
	return channel == models.ChannelPhone
}

// MemoryVolumeLimiter keeps counters in process. Counters are keyed by day
// so rollover needs no reset.
type MemoryVolumeLimiter struct {
	mu       sync.Mutex
	counters map[string]int64
	capFn    CapFunc
}

func NewMemoryVolumeLimiter(capFn CapFunc) *MemoryVolumeLimiter {
	if capFn == nil {
		capFn = StaticCap(0)
	}
	return &MemoryVolumeLimiter{counters: make(map[string]int64), capFn: capFn}
}

func (l *MemoryVolumeLimiter) TryConsume(ctx context.Context, channel models.NotificationChannel, dayKey string) (bool, error) {
	if !IsCapped(channel) {
		return true, nil
	}
	limit, err := l.capFn(ctx)
	if err != nil {
		return false, err
	}
	key := VolumeKey(channel, dayKey)

	l.mu.Lock()
	defer l.mu.Unlock()
	if limit > 0 && l.counters[key] >= int64(limit) {
		return false, nil
	}
	l.counters[key]++
	return true, nil
}

func (l *MemoryVolumeLimiter) Used(_ context.Context, channel models.NotificationChannel, dayKey string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counters[VolumeKey(channel, dayKey)], nil
}

// VolumeKey is the counter key of a channel and day
func VolumeKey(channel models.NotificationChannel, dayKey string) string {
	return "volume:" + string(channel) + ":" + dayKey
}
