package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PendingItem is a match waiting for its release
type PendingItem struct {
	AlertID   uint
	JobID     uint
	MatchedAt time.Time
	PostedAt  time.Time
}

// BucketRef identifies the digest bucket of one alert and window
type BucketRef struct {
	Key      string
	AlertID  uint
	Boundary time.Time
}

// DispatchStore keeps the shared dispatch state in redis:
//
//	matched:{alert}:{job}       ledger of pairs already accepted, with TTL
//	bucket:{alert}:{boundary}   ZSET of "job:matchedMillis" scored by postedAt
//	buckets                     SET of live bucket keys
//	deferred                    ZSET of "alert:job" scored by matchedAt millis
type DispatchStore struct {
	client   *redis.Client
	prefix   string
	matchTTL time.Duration
}

func NewDispatchStore(client *redis.Client, prefix string, matchTTL time.Duration) *DispatchStore {
	return &DispatchStore{client: client, prefix: prefix, matchTTL: matchTTL}
}

var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (s *DispatchStore) matchedKey(alertID, jobID uint) string {
	return fmt.Sprintf("%smatched:%d:%d", s.prefix, alertID, jobID)
}

func (s *DispatchStore) bucketKey(alertID uint, boundary time.Time) string {
	return fmt.Sprintf("%sbucket:%d:%d", s.prefix, alertID, boundary.Unix())
}

func (s *DispatchStore) bucketIndexKey() string { return s.prefix + "buckets" }
func (s *DispatchStore) deferredKey() string    { return s.prefix + "deferred" }
func (s *DispatchStore) lockKey() string        { return s.prefix + "tick-lock" }

// MarkMatched records the pair and reports whether it was new
func (s *DispatchStore) MarkMatched(ctx context.Context, alertID, jobID uint) (bool, error) {
	first, err := s.client.SetNX(ctx, s.matchedKey(alertID, jobID), 1, s.matchTTL).Result()
	if err != nil {
		return false, fmt.Errorf("mark matched alert=%d job=%d: %w", alertID, jobID, err)
	}
	return first, nil
}

// UnmarkMatched forgets a pair so a later scan may accept it again
func (s *DispatchStore) UnmarkMatched(ctx context.Context, alertID, jobID uint) error {
	if err := s.client.Del(ctx, s.matchedKey(alertID, jobID)).Err(); err != nil {
		return fmt.Errorf("unmark matched alert=%d job=%d: %w", alertID, jobID, err)
	}
	return nil
}

// AddToBucket appends items to the bucket closing at boundary
func (s *DispatchStore) AddToBucket(ctx context.Context, alertID uint, boundary time.Time, items ...PendingItem) error {
	if len(items) == 0 {
		return nil
	}
	key := s.bucketKey(alertID, boundary)
	members := make([]redis.Z, 0, len(items))
	for _, it := range items {
		members = append(members, redis.Z{
			Score:  float64(it.PostedAt.Unix()),
			Member: fmt.Sprintf("%d:%d", it.JobID, it.MatchedAt.UnixMilli()),
		})
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, members...)
		pipe.SAdd(ctx, s.bucketIndexKey(), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("add to bucket %s: %w", key, err)
	}
	return nil
}

// Buckets lists every live bucket
func (s *DispatchStore) Buckets(ctx context.Context) ([]BucketRef, error) {
	keys, err := s.client.SMembers(ctx, s.bucketIndexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	out := make([]BucketRef, 0, len(keys))
	for _, k := range keys {
		ref, err := s.parseBucketKey(k)
		if err != nil {
			continue
		}
		out = append(out, ref)
	}
	return out, nil
}

// DueBuckets lists buckets whose boundary is at or before now
func (s *DispatchStore) DueBuckets(ctx context.Context, now time.Time) ([]BucketRef, error) {
	all, err := s.Buckets(ctx)
	if err != nil {
		return nil, err
	}
	due := all[:0]
	for _, b := range all {
		if !now.Before(b.Boundary) {
			due = append(due, b)
		}
	}
	return due, nil
}

// BucketSize returns the number of jobs held in a bucket
func (s *DispatchStore) BucketSize(ctx context.Context, ref BucketRef) (int64, error) {
	return s.client.ZCard(ctx, ref.Key).Result()
}

// FlushBucket atomically reads and removes a bucket. Concurrent flushes of
// the same bucket see its content exactly once.
func (s *DispatchStore) FlushBucket(ctx context.Context, ref BucketRef) ([]PendingItem, error) {
	var members *redis.ZSliceCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		members = pipe.ZRangeWithScores(ctx, ref.Key, 0, -1)
		pipe.Del(ctx, ref.Key)
		pipe.SRem(ctx, s.bucketIndexKey(), ref.Key)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("flush bucket %s: %w", ref.Key, err)
	}

	out := make([]PendingItem, 0, len(members.Val()))
	for _, z := range members.Val() {
		jobPart, matchedPart, ok := strings.Cut(fmt.Sprint(z.Member), ":")
		if !ok {
			continue
		}
		jobID, err := strconv.ParseUint(jobPart, 10, 64)
		if err != nil {
			continue
		}
		ms, _ := strconv.ParseInt(matchedPart, 10, 64)
		out = append(out, PendingItem{
			AlertID:   ref.AlertID,
			JobID:     uint(jobID),
			MatchedAt: time.UnixMilli(ms).UTC(),
			PostedAt:  time.Unix(int64(z.Score), 0).UTC(),
		})
	}
	return out, nil
}

// Defer parks instant matches until the next tick. A pair already parked
// keeps its original match time.
func (s *DispatchStore) Defer(ctx context.Context, items ...PendingItem) error {
	if len(items) == 0 {
		return nil
	}
	members := make([]redis.Z, 0, len(items))
	for _, it := range items {
		members = append(members, redis.Z{
			Score:  float64(it.MatchedAt.UnixMilli()),
			Member: fmt.Sprintf("%d:%d", it.AlertID, it.JobID),
		})
	}
	if err := s.client.ZAddNX(ctx, s.deferredKey(), members...).Err(); err != nil {
		return fmt.Errorf("defer matches: %w", err)
	}
	return nil
}

// Deferred lists parked instant matches, oldest first
func (s *DispatchStore) Deferred(ctx context.Context) ([]PendingItem, error) {
	zs, err := s.client.ZRangeWithScores(ctx, s.deferredKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list deferred: %w", err)
	}
	out := make([]PendingItem, 0, len(zs))
	for _, z := range zs {
		alertID, jobID, ok := parsePair(fmt.Sprint(z.Member))
		if !ok {
			continue
		}
		out = append(out, PendingItem{
			AlertID:   alertID,
			JobID:     jobID,
			MatchedAt: time.UnixMilli(int64(z.Score)).UTC(),
		})
	}
	return out, nil
}

// RemoveDeferred drops parked matches
func (s *DispatchStore) RemoveDeferred(ctx context.Context, items ...PendingItem) error {
	if len(items) == 0 {
		return nil
	}
	members := make([]any, 0, len(items))
	for _, it := range items {
		members = append(members, fmt.Sprintf("%d:%d", it.AlertID, it.JobID))
	}
	if err := s.client.ZRem(ctx, s.deferredKey(), members...).Err(); err != nil {
		return fmt.Errorf("remove deferred: %w", err)
	}
	return nil
}

// ClaimDeferred removes parked matches and returns the ones this caller
// removed. Each member is claimed by exactly one of any concurrent callers.
func (s *DispatchStore) ClaimDeferred(ctx context.Context, items ...PendingItem) ([]PendingItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	cmds := make([]*redis.IntCmd, len(items))
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, it := range items {
			cmds[i] = pipe.ZRem(ctx, s.deferredKey(), fmt.Sprintf("%d:%d", it.AlertID, it.JobID))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim deferred: %w", err)
	}
	claimed := make([]PendingItem, 0, len(items))
	for i, cmd := range cmds {
		if cmd.Val() == 1 {
			claimed = append(claimed, items[i])
		}
	}
	return claimed, nil
}

// DeleteBucket drops a bucket without releasing it
func (s *DispatchStore) DeleteBucket(ctx context.Context, ref BucketRef) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, ref.Key)
		pipe.SRem(ctx, s.bucketIndexKey(), ref.Key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete bucket %s: %w", ref.Key, err)
	}
	return nil
}

// DiscardAlert drops every pending match of an alert
func (s *DispatchStore) DiscardAlert(ctx context.Context, alertID uint) error {
	deferred, err := s.Deferred(ctx)
	if err != nil {
		return err
	}
	var mine []PendingItem
	for _, it := range deferred {
		if it.AlertID == alertID {
			mine = append(mine, it)
		}
	}
	if err := s.RemoveDeferred(ctx, mine...); err != nil {
		return err
	}

	buckets, err := s.Buckets(ctx)
	if err != nil {
		return err
	}
	for _, b := range buckets {
		if b.AlertID != alertID {
			continue
		}
		if err := s.DeleteBucket(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

// PendingCount returns how many matches wait for release
func (s *DispatchStore) PendingCount(ctx context.Context) (int64, error) {
	total, err := s.client.ZCard(ctx, s.deferredKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("count deferred: %w", err)
	}
	buckets, err := s.Buckets(ctx)
	if err != nil {
		return 0, err
	}
	for _, b := range buckets {
		n, err := s.BucketSize(ctx, b)
		if err != nil {
			return 0, fmt.Errorf("count bucket %s: %w", b.Key, err)
		}
		total += n
	}
	return total, nil
}

// AcquireTickLock takes the cross-instance tick lock. The token releases it.
func (s *DispatchStore) AcquireTickLock(ctx context.Context, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, s.lockKey(), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire tick lock: %w", err)
	}
	return token, ok, nil
}

// ReleaseTickLock frees the lock if token still owns it
func (s *DispatchStore) ReleaseTickLock(ctx context.Context, token string) error {
	err := releaseLockScript.Run(ctx, s.client, []string{s.lockKey()}, token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release tick lock: %w", err)
	}
	return nil
}

func (s *DispatchStore) parseBucketKey(key string) (BucketRef, error) {
	rest, ok := strings.CutPrefix(key, s.prefix+"bucket:")
	if !ok {
		return BucketRef{}, fmt.Errorf("not a bucket key: %s", key)
	}
	alertPart, boundaryPart, ok := strings.Cut(rest, ":")
	if !ok {
		return BucketRef{}, fmt.Errorf("malformed bucket key: %s", key)
	}
	alertID, err := strconv.ParseUint(alertPart, 10, 64)
	if err != nil {
		return BucketRef{}, fmt.Errorf("malformed bucket key: %s", key)
	}
	unix, err := strconv.ParseInt(boundaryPart, 10, 64)
	if err != nil {
		return BucketRef{}, fmt.Errorf("malformed bucket key: %s", key)
	}
	return BucketRef{Key: key, AlertID: uint(alertID), Boundary: time.Unix(unix, 0).UTC()}, nil
}

func parsePair(member string) (uint, uint, bool) {
	a, j, ok := strings.Cut(member, ":")
	if !ok {
		return 0, 0, false
	}
	alertID, err := strconv.ParseUint(a, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	jobID, err := strconv.ParseUint(j, 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return uint(alertID), uint(jobID), true
}
