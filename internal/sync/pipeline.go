// Package sync drives the fetch → decode → map → invalidate → upsert
// ingestion pipeline (Component H) on a periodic, non-overlapping scheduler
// (Component I).
package sync

import (
	"context"
	"time"

	"github.com/fevermarket/catalog-sync/internal/catalog"
	"github.com/fevermarket/catalog-sync/internal/metrics"
	"github.com/fevermarket/catalog-sync/pkg/logger"
)

// Fetcher is satisfied by the provider client.
type Fetcher interface {
	FetchOnlineEvents(ctx context.Context) ([]catalog.Event, error)
}

// Invalidator is satisfied by the bucket cache strategy.
type Invalidator interface {
	Invalidate(ctx context.Context, events []catalog.Event) error
}

// Upserter is satisfied by the durable store adapter.
type Upserter interface {
	UpsertBatch(ctx context.Context, events []catalog.Event) (catalog.UpsertCounts, error)
}

// CompletionPublisher is satisfied by the sync-completion event bus.
// Publishing is best-effort: a failure here never fails the tick.
type CompletionPublisher interface {
	PublishSyncCompletion(ctx context.Context, completion SyncCompletion) error
}

// SyncCompletion summarizes one sync_once invocation for the event bus.
type SyncCompletion struct {
	MonthsTouched []string
	Inserted      int
	Updated       int
}

// Pipeline runs sync_once (Component H).
type Pipeline struct {
	fetcher     Fetcher
	invalidator Invalidator
	upserter    Upserter
	publisher   CompletionPublisher
	metrics     *metrics.Collectors
	log         *logger.Logger
}

// NewPipeline builds the sync pipeline. publisher may be nil to disable the
// completion event bus entirely.
func NewPipeline(fetcher Fetcher, invalidator Invalidator, upserter Upserter, publisher CompletionPublisher, m *metrics.Collectors, log *logger.Logger) *Pipeline {
	return &Pipeline{
		fetcher:     fetcher,
		invalidator: invalidator,
		upserter:    upserter,
		publisher:   publisher,
		metrics:     m,
		log:         log,
	}
}

// SyncOnce runs one fetch → invalidate → upsert cycle (§4.8). It never
// returns an error to the caller in the sense the scheduler cares about —
// every failure is logged and swallowed so the scheduler keeps ticking; the
// returned error exists only to make this testable in isolation.
func (p *Pipeline) SyncOnce(ctx context.Context) error {
	start := time.Now()
	p.metrics.SyncAttempts.Inc()
	p.log.LogSyncAttempt(ctx)

	events, err := p.fetcher.FetchOnlineEvents(ctx)
	if err != nil {
		p.metrics.SyncFailures.Inc()
		p.log.LogSyncFailure(ctx, "fetch", err)
		return nil
	}
	if len(events) == 0 {
		return nil
	}

	// O1: invalidation must complete before the upsert begins. A failure
	// here is logged but never aborts the write — I1 is repaired by the
	// next composer fill.
	if err := p.invalidator.Invalidate(ctx, events); err != nil {
		p.log.LogSyncFailure(ctx, "invalidate", err)
	}

	counts, err := p.upserter.UpsertBatch(ctx, events)
	if err != nil {
		p.metrics.SyncFailures.Inc()
		p.log.LogSyncFailure(ctx, "upsert", err)
		return nil
	}

	p.log.LogSyncResult(ctx, len(events), counts.Inserted, counts.Updated, time.Since(start))

	if p.publisher != nil {
		months := touchedMonths(events)
		if err := p.publisher.PublishSyncCompletion(ctx, SyncCompletion{
			MonthsTouched: months,
			Inserted:      counts.Inserted,
			Updated:       counts.Updated,
		}); err != nil {
			p.log.LogSyncFailure(ctx, "publish-completion", err)
		}
	}

	return nil
}

func touchedMonths(events []catalog.Event) []string {
	seen := make(map[string]bool)
	months := make([]string, 0)
	for _, e := range events {
		for _, m := range e.MonthsTouched() {
			if !seen[m] {
				seen[m] = true
				months = append(months, m)
			}
		}
	}
	return months
}
