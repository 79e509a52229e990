package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/jobboard-alerts/alerting"
	"github.com/amirphl/jobboard-alerts/models"
	"github.com/amirphl/jobboard-alerts/utils"
	"github.com/redis/go-redis/v9"
)

const maxVolumeTxRetries = 100

// RedisVolumeLimiter keeps the daily counters in redis so every instance
// shares one cap. The check and the increment run in one optimistic
// transaction; a concurrent writer aborts it and the attempt is retried.
type RedisVolumeLimiter struct {
	client *redis.Client
	prefix string
	capFn  alerting.CapFunc
}

func NewRedisVolumeLimiter(client *redis.Client, prefix string, capFn alerting.CapFunc) *RedisVolumeLimiter {
	if capFn == nil {
		capFn = alerting.StaticCap(0)
	}
	return &RedisVolumeLimiter{client: client, prefix: prefix, capFn: capFn}
}

func (l *RedisVolumeLimiter) key(channel models.NotificationChannel, dayKey string) string {
	return l.prefix + alerting.VolumeKey(channel, dayKey)
}

func (l *RedisVolumeLimiter) TryConsume(ctx context.Context, channel models.NotificationChannel, dayKey string) (bool, error) {
	if !alerting.IsCapped(channel) {
		return true, nil
	}
	limit, err := l.capFn(ctx)
	if err != nil {
		return false, fmt.Errorf("load volume cap: %w", err)
	}
	key := l.key(channel, dayKey)

	if limit <= 0 {
		pipe := l.client.TxPipeline()
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, utils.VolumeCounterTTL)
		if _, err := pipe.Exec(ctx); err != nil {
			return false, fmt.Errorf("increment %s: %w", key, err)
		}
		return true, nil
	}

	for attempt := 0; attempt < maxVolumeTxRetries; attempt++ {
		granted := false
		err := l.client.Watch(ctx, func(tx *redis.Tx) error {
			used, err := tx.Get(ctx, key).Int64()
			if err != nil && !errors.Is(err, redis.Nil) {
				return err
			}
			if used >= int64(limit) {
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Incr(ctx, key)
				pipe.Expire(ctx, key, utils.VolumeCounterTTL)
				return nil
			})
			if err == nil {
				granted = true
			}
			return err
		}, key)

		switch {
		case err == nil:
			return granted, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return false, fmt.Errorf("consume %s: %w", key, err)
		}
	}
	return false, alerting.ErrVolumeContention
}

func (l *RedisVolumeLimiter) Used(ctx context.Context, channel models.NotificationChannel, dayKey string) (int64, error) {
	n, err := l.client.Get(ctx, l.key(channel, dayKey)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read volume counter: %w", err)
	}
	return n, nil
}

// SettingsCap reads the daily cap from the admin settings
func SettingsCap(src SettingsSource) alerting.CapFunc {
	return func(ctx context.Context) (int, error) {
		return src.Current(ctx).MaxCallsPerDay, nil
	}
}
