package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrCacheMiss signals an absent bucket — a legal, expected outcome, not a
// failure.
var ErrCacheMiss = errors.New("catalog: cache miss")

// Bucket is the cached snapshot of every event intersecting one calendar
// month. A present bucket, even an empty one, is authoritative for its
// month (I1).
type Bucket struct {
	Events []Event
}

// BucketStore is the month-keyed KV adapter (Component C). Get, Put and
// Delete are each a single atomic Redis action; Count iterates with SCAN.
type BucketStore interface {
	Get(ctx context.Context, month string) (*Bucket, error)
	Put(ctx context.Context, month string, bucket Bucket, ttl time.Duration) error
	Delete(ctx context.Context, month string) (bool, error)
	Count(ctx context.Context) (int64, error)
}

type redisBucketStore struct {
	client *redis.Client
	prefix string
}

// NewRedisBucketStore builds a BucketStore keyed under "<prefix><YYYY-MM>".
func NewRedisBucketStore(client *redis.Client, keyPrefix string) BucketStore {
	return &redisBucketStore{client: client, prefix: keyPrefix}
}

func (s *redisBucketStore) key(month string) string {
	return s.prefix + month
}

// Get returns ErrCacheMiss when the month's bucket is absent, distinguishing
// that from a transport error on the wrapped value.
func (s *redisBucketStore) Get(ctx context.Context, month string) (*Bucket, error) {
	raw, err := s.client.Get(ctx, s.key(month)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: bucket store get %s: %w", month, err)
	}

	var b Bucket
	// msgpack's decoder silently skips unknown fields, giving the bucket
	// value a schema-stable encoding that tolerates additive changes
	// across deploys (§4.3).
	if err := msgpack.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("catalog: bucket store decode %s: %w", month, err)
	}
	return &b, nil
}

func (s *redisBucketStore) Put(ctx context.Context, month string, bucket Bucket, ttl time.Duration) error {
	raw, err := msgpack.Marshal(bucket)
	if err != nil {
		return fmt.Errorf("catalog: bucket store encode %s: %w", month, err)
	}
	if err := s.client.Set(ctx, s.key(month), raw, ttl).Err(); err != nil {
		return fmt.Errorf("catalog: bucket store put %s: %w", month, err)
	}
	return nil
}

func (s *redisBucketStore) Delete(ctx context.Context, month string) (bool, error) {
	n, err := s.client.Del(ctx, s.key(month)).Result()
	if err != nil {
		return false, fmt.Errorf("catalog: bucket store delete %s: %w", month, err)
	}
	return n > 0, nil
}

// Count approximates the number of live bucket keys under the prefix via
// SCAN, avoiding the production hazard of a blocking KEYS call.
func (s *redisBucketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", 200).Result()
		if err != nil {
			return 0, fmt.Errorf("catalog: bucket store count: %w", err)
		}
		count += int64(len(keys))
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return count, nil
}

// TTLTier computes the configured TTL for a month bucket given the current
// month, per the tiering table in §4.3.
func TTLTier(month, currentMonth string, tieringEnabled bool, current, normal, longTerm time.Duration) time.Duration {
	if !tieringEnabled {
		return normal
	}
	age := monthDistance(currentMonth, month)
	switch {
	case age <= 0:
		return current
	case age <= 3:
		return normal
	default:
		return longTerm
	}
}

// monthDistance returns months(N) - months(M) for "YYYY-MM" keys N and M.
func monthDistance(currentMonth, month string) int {
	n, err1 := time.Parse("2006-01", currentMonth)
	m, err2 := time.Parse("2006-01", month)
	if err1 != nil || err2 != nil {
		return 0
	}
	return (n.Year()-m.Year())*12 + int(n.Month()) - int(m.Month())
}
