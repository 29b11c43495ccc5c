package sync

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fevermarket/catalog-sync/internal/catalog"
	"github.com/fevermarket/catalog-sync/internal/metrics"
	"github.com/fevermarket/catalog-sync/pkg/logger"
	"github.com/stretchr/testify/require"
)

type slowFetcher struct {
	running  int32
	overlaps int32
	delay    time.Duration
}

func (f *slowFetcher) FetchOnlineEvents(context.Context) ([]catalog.Event, error) {
	if !atomic.CompareAndSwapInt32(&f.running, 0, 1) {
		atomic.AddInt32(&f.overlaps, 1)
	}
	time.Sleep(f.delay)
	atomic.StoreInt32(&f.running, 0)
	return nil, nil
}

func TestScheduler_NonOverlappingTicks(t *testing.T) {
	fetcher := &slowFetcher{delay: 60 * time.Millisecond}
	p := NewPipeline(fetcher, &fakeInvalidator{}, &fakeUpserter{}, nil, metrics.NewForTest(), logger.New())
	s := NewScheduler(p, 15*time.Millisecond, true, logger.New())

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(250 * time.Millisecond)
	s.Stop()

	require.Zero(t, atomic.LoadInt32(&fetcher.overlaps), "no two sync_once invocations should overlap")
}

func TestScheduler_DisabledIsNoOp(t *testing.T) {
	fetcher := &slowFetcher{}
	p := NewPipeline(fetcher, &fakeInvalidator{}, &fakeUpserter{}, nil, metrics.NewForTest(), logger.New())
	s := NewScheduler(p, 10*time.Millisecond, false, logger.New())

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	require.Zero(t, atomic.LoadInt32(&fetcher.running))
}

type panicFetcher struct{ calls int32 }

func (f *panicFetcher) FetchOnlineEvents(context.Context) ([]catalog.Event, error) {
	atomic.AddInt32(&f.calls, 1)
	panic("boom")
}

func TestScheduler_SurvivesPanicInSyncOnce(t *testing.T) {
	fetcher := &panicFetcher{}
	p := NewPipeline(fetcher, &fakeInvalidator{}, &fakeUpserter{}, nil, metrics.NewForTest(), logger.New())
	s := NewScheduler(p, 15*time.Millisecond, true, logger.New())

	require.NoError(t, s.Start(context.Background()))
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	require.Greater(t, atomic.LoadInt32(&fetcher.calls), int32(1), "scheduler should keep ticking after a panic")
}
