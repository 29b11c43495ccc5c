package catalog

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/fevermarket/catalog-sync/internal/metrics"
	"github.com/fevermarket/catalog-sync/pkg/logger"
)

// QueryResult is what the bucket cache strategy hands back to the composer.
// Bypassed signals that month decomposition exceeded the configured limit
// and the composer must go to the durable store itself (§4.4).
type QueryResult struct {
	Events   []Event
	Bypassed bool
}

// CacheStrategy is the bucket cache strategy's public contract (Component D).
type CacheStrategy interface {
	Query(ctx context.Context, fromTS, toTS string) (QueryResult, error)
	Fill(ctx context.Context, fromTS, toTS string, events []Event)
	Invalidate(ctx context.Context, events []Event) error
}

// CacheStrategyConfig carries the tiering and bypass tunables from §4.3/4.4.
type CacheStrategyConfig struct {
	CurrentMonthTTL   time.Duration
	NormalTTL         time.Duration
	LongTermTTL       time.Duration
	EnableTieredTTL   bool
	MaxMonthsPerQuery int
	FillWorkers       int
	FillQueueDepth    int
}

type bucketCache struct {
	store   BucketStore
	durable DurableStore
	cfg     CacheStrategyConfig
	pool    *asyncPool
	metrics *metrics.Collectors
	log     *logger.Logger
	now     func() time.Time
}

// NewBucketCache builds the bucket cache strategy. It owns a bounded async
// pool for bucket fill work so the composer's critical path never waits on
// it (§5, §9); invalidation runs synchronously in the caller.
func NewBucketCache(store BucketStore, durable DurableStore, cfg CacheStrategyConfig, m *metrics.Collectors, log *logger.Logger) CacheStrategy {
	if cfg.FillWorkers == 0 {
		cfg.FillWorkers = 4
	}
	if cfg.FillQueueDepth == 0 {
		cfg.FillQueueDepth = 256
	}
	return &bucketCache{
		store:   store,
		durable: durable,
		cfg:     cfg,
		pool:    newAsyncPool(cfg.FillWorkers, cfg.FillQueueDepth),
		metrics: m,
		log:     log,
		now:     time.Now,
	}
}

func monthOfTS(civilTS string) string {
	if len(civilTS) < 7 {
		return civilTS
	}
	return civilTS[:7]
}

// Query implements the month decomposition and partial-hit assembly
// algorithm from §4.4.
func (c *bucketCache) Query(ctx context.Context, fromTS, toTS string) (QueryResult, error) {
	months := monthRange(monthOfTS(fromTS), monthOfTS(toTS))
	if len(months) > c.cfg.MaxMonthsPerQuery {
		c.metrics.CacheBypasses.Inc()
		c.log.LogCacheBypass(ctx, len(months))
		return QueryResult{Bypassed: true}, nil
	}

	cachedEvents := make([]Event, 0)
	missedMonths := make([]string, 0)
	missedSet := make(map[string]bool)

	for _, m := range months {
		b, err := c.store.Get(ctx, m)
		switch {
		case errors.Is(err, ErrCacheMiss):
			missedMonths = append(missedMonths, m)
			missedSet[m] = true
		case err != nil:
			c.metrics.CacheErrors.Inc()
			return QueryResult{}, err
		default:
			cachedEvents = append(cachedEvents, b.Events...)
		}
	}

	if len(missedMonths) == 0 {
		c.metrics.CacheHits.Inc()
		c.log.LogCacheHit(ctx, months, false)
		return QueryResult{Events: assembleResult(cachedEvents, fromTS, toTS)}, nil
	}

	c.metrics.CacheMisses.Inc()
	c.log.LogCacheMiss(ctx, missedMonths)

	durableEvents, err := c.durable.FindOverlapping(ctx, fromTS, toTS)
	if err != nil {
		return QueryResult{}, err
	}

	// Only events whose starting month lies in missedMonths are merged in,
	// to avoid re-mixing months already authoritatively covered by the
	// cache (§4.4 step 4).
	merged := make([]Event, 0, len(cachedEvents)+len(durableEvents))
	merged = append(merged, cachedEvents...)
	for _, e := range durableEvents {
		if missedSet[monthOf(e.StartDate)] {
			merged = append(merged, e)
		}
	}

	if len(missedMonths) < len(months) {
		c.log.LogCacheHit(ctx, months, true)
	}
	c.asyncRepopulate(missedMonths, durableEvents)

	return QueryResult{Events: assembleResult(merged, fromTS, toTS)}, nil
}

// Fill populates the bucket of every month in [fromTS, toTS] from an
// already-fetched event set — used by the composer after a cache bypass
// (§4.4 public contract).
func (c *bucketCache) Fill(ctx context.Context, fromTS, toTS string, events []Event) {
	months := monthRange(monthOfTS(fromTS), monthOfTS(toTS))
	c.asyncRepopulate(months, events)
}

// asyncRepopulate enqueues, per month, a best-effort bucket write built from
// the events that touch it. Per O2, a fill racing an invalidation may be
// lost; the next miss repopulates it.
func (c *bucketCache) asyncRepopulate(months []string, events []Event) {
	currentMonth := c.now().UTC().Format("2006-01")
	for _, month := range months {
		month := month
		bucketEvents := make([]Event, 0)
		for _, e := range events {
			if monthsContain(e, month) {
				bucketEvents = append(bucketEvents, e)
			}
		}
		ttl := TTLTier(month, currentMonth, c.cfg.EnableTieredTTL, c.cfg.CurrentMonthTTL, c.cfg.NormalTTL, c.cfg.LongTermTTL)
		if !c.pool.Submit(func(ctx context.Context) {
			if err := c.store.Put(ctx, month, Bucket{Events: bucketEvents}, ttl); err != nil {
				c.log.LogCacheFillFailure(ctx, month, err)
			}
		}) {
			c.log.Warn("bucket fill dropped, async queue full", "month", month)
		}
	}
}

func monthsContain(e Event, month string) bool {
	for _, m := range e.MonthsTouched() {
		if m == month {
			return true
		}
	}
	return false
}

// Invalidate drops every bucket touched by any input event's
// [start_date, end_date] span. This runs synchronously and must complete
// before the caller (the sync pipeline) begins the durable upsert (O1).
func (c *bucketCache) Invalidate(ctx context.Context, events []Event) error {
	touched := make(map[string]bool)
	for _, e := range events {
		for _, m := range e.MonthsTouched() {
			touched[m] = true
		}
	}
	if len(touched) == 0 {
		return nil
	}

	months := make([]string, 0, len(touched))
	for m := range touched {
		months = append(months, m)
	}
	sort.Strings(months)

	var firstErr error
	for _, m := range months {
		if _, err := c.store.Delete(ctx, m); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.metrics.Invalidations.Add(float64(len(months)))
	c.log.LogInvalidation(ctx, months)
	return firstErr
}

// assembleResult filters by overlap with the window, deduplicates by id
// (an event may appear in more than one contributing bucket), and sorts by
// (start_date, start_time) ascending with id as the stable tiebreak (P1, P3).
func assembleResult(events []Event, fromTS, toTS string) []Event {
	seen := make(map[string]bool, len(events))
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if !e.Overlaps(fromTS, toTS) {
			continue
		}
		key := e.ID.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartDate != out[j].StartDate {
			return out[i].StartDate < out[j].StartDate
		}
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}
