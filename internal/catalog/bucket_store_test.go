package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestBucketStore(t *testing.T) BucketStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisBucketStore(client, "fever:events:month:")
}

func TestRedisBucketStore_GetMiss(t *testing.T) {
	store := newTestBucketStore(t)
	_, err := store.Get(context.Background(), "2024-12")
	require.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisBucketStore_PutGetRoundTrip(t *testing.T) {
	store := newTestBucketStore(t)
	ctx := context.Background()

	b := Bucket{Events: []Event{
		{ID: uuid.New(), Title: "ConcertMadrid", StartDate: "2024-12-15", StartTime: "20:00:00",
			EndDate: "2024-12-15", EndTime: "23:00:00", MinPrice: 2500, MaxPrice: 10000},
	}}
	require.NoError(t, store.Put(ctx, "2024-12", b, time.Hour))

	got, err := store.Get(ctx, "2024-12")
	require.NoError(t, err)
	require.Len(t, got.Events, 1)
	require.Equal(t, "ConcertMadrid", got.Events[0].Title)
}

func TestRedisBucketStore_EmptyBucketIsAHit(t *testing.T) {
	store := newTestBucketStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "2024-12", Bucket{}, time.Hour))

	got, err := store.Get(ctx, "2024-12")
	require.NoError(t, err)
	require.Empty(t, got.Events)
}

func TestRedisBucketStore_Delete(t *testing.T) {
	store := newTestBucketStore(t)
	ctx := context.Background()

	existed, err := store.Delete(ctx, "2024-12")
	require.NoError(t, err)
	require.False(t, existed)

	require.NoError(t, store.Put(ctx, "2024-12", Bucket{}, time.Hour))
	existed, err = store.Delete(ctx, "2024-12")
	require.NoError(t, err)
	require.True(t, existed)

	_, err = store.Get(ctx, "2024-12")
	require.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisBucketStore_Count(t *testing.T) {
	store := newTestBucketStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "2024-11", Bucket{}, time.Hour))
	require.NoError(t, store.Put(ctx, "2024-12", Bucket{}, time.Hour))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
}

func TestTTLTier(t *testing.T) {
	current, normal, longTerm := 2*time.Hour, 6*time.Hour, 168*time.Hour

	require.Equal(t, current, TTLTier("2024-12", "2024-12", true, current, normal, longTerm))
	require.Equal(t, normal, TTLTier("2024-10", "2024-12", true, current, normal, longTerm))
	require.Equal(t, longTerm, TTLTier("2024-01", "2024-12", true, current, normal, longTerm))
	require.Equal(t, normal, TTLTier("2020-01", "2024-12", false, current, normal, longTerm))
}
