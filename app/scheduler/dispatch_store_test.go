package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchStore_MatchLedger(t *testing.T) {
	mr, client := newRedis(t)
	store := NewDispatchStore(client, "t:", time.Hour)
	ctx := context.Background()

	first, err := store.MarkMatched(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, first)

	first, err = store.MarkMatched(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, first)

	require.NoError(t, store.UnmarkMatched(ctx, 1, 2))
	first, err = store.MarkMatched(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, first)

	mr.FastForward(2 * time.Hour)
	first, err = store.MarkMatched(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, first, "ledger entries expire")
}

func TestDispatchStore_BucketFlushedExactlyOnce(t *testing.T) {
	_, client := newRedis(t)
	store := NewDispatchStore(client, "t:", time.Hour)
	ctx := context.Background()

	boundary := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	matched := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	for j := uint(1); j <= 3; j++ {
		require.NoError(t, store.AddToBucket(ctx, 7, boundary, PendingItem{
			AlertID:   7,
			JobID:     j,
			MatchedAt: matched,
			PostedAt:  matched.Add(-time.Duration(j) * time.Minute),
		}))
	}

	due, err := store.DueBuckets(ctx, boundary.Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = store.DueBuckets(ctx, boundary)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, uint(7), due[0].AlertID)
	assert.True(t, due[0].Boundary.Equal(boundary))

	var (
		mu    sync.Mutex
		total []PendingItem
		wg    sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			items, err := store.FlushBucket(ctx, due[0])
			assert.NoError(t, err)
			mu.Lock()
			total = append(total, items...)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, total, 3)
	for _, it := range total {
		assert.True(t, it.MatchedAt.Equal(matched))
	}
	buckets, err := store.Buckets(ctx)
	require.NoError(t, err)
	assert.Empty(t, buckets)
}

func TestDispatchStore_DeferKeepsFirstMatchTime(t *testing.T) {
	_, client := newRedis(t)
	store := NewDispatchStore(client, "t:", time.Hour)
	ctx := context.Background()

	first := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Defer(ctx, PendingItem{AlertID: 1, JobID: 2, MatchedAt: first}))
	require.NoError(t, store.Defer(ctx, PendingItem{AlertID: 1, JobID: 2, MatchedAt: first.Add(time.Hour)}))
	require.NoError(t, store.Defer(ctx, PendingItem{AlertID: 3, JobID: 4, MatchedAt: first.Add(time.Minute)}))

	items, err := store.Deferred(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, uint(1), items[0].AlertID)
	assert.True(t, items[0].MatchedAt.Equal(first))

	require.NoError(t, store.RemoveDeferred(ctx, items[0]))
	items, err = store.Deferred(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, uint(4), items[0].JobID)
}

func TestDispatchStore_DiscardAlertAndPendingCount(t *testing.T) {
	_, client := newRedis(t)
	store := NewDispatchStore(client, "t:", time.Hour)
	ctx := context.Background()
	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	boundary := now.Add(15 * time.Hour)

	require.NoError(t, store.Defer(ctx, PendingItem{AlertID: 1, JobID: 10, MatchedAt: now}))
	require.NoError(t, store.Defer(ctx, PendingItem{AlertID: 2, JobID: 10, MatchedAt: now}))
	require.NoError(t, store.AddToBucket(ctx, 1, boundary,
		PendingItem{AlertID: 1, JobID: 11, MatchedAt: now, PostedAt: now},
		PendingItem{AlertID: 1, JobID: 12, MatchedAt: now, PostedAt: now}))
	require.NoError(t, store.AddToBucket(ctx, 2, boundary, PendingItem{AlertID: 2, JobID: 13, MatchedAt: now, PostedAt: now}))

	n, err := store.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	require.NoError(t, store.DiscardAlert(ctx, 1))

	n, err = store.PendingCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	buckets, err := store.Buckets(ctx)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, uint(2), buckets[0].AlertID)
}

func TestDispatchStore_TickLock(t *testing.T) {
	_, client := newRedis(t)
	store := NewDispatchStore(client, "t:", time.Hour)
	ctx := context.Background()

	token, ok, err := store.AcquireTickLock(ctx, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = store.AcquireTickLock(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.ReleaseTickLock(ctx, "someone-else"))
	_, ok, err = store.AcquireTickLock(ctx, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "a foreign token must not release the lock")

	require.NoError(t, store.ReleaseTickLock(ctx, token))
	_, ok, err = store.AcquireTickLock(ctx, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDispatchStore_ClaimDeferredOnce(t *testing.T) {
	_, client := newRedis(t)
	store := NewDispatchStore(client, "t:", time.Hour)
	ctx := context.Background()

	now := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Defer(ctx,
		PendingItem{AlertID: 1, JobID: 2, MatchedAt: now},
		PendingItem{AlertID: 1, JobID: 3, MatchedAt: now},
	))
	items, err := store.Deferred(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		total int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := store.ClaimDeferred(ctx, items...)
			assert.NoError(t, err)
			mu.Lock()
			total += len(claimed)
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 2, total)

	claimed, err := store.ClaimDeferred(ctx, items...)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}
