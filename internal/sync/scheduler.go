package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/fevermarket/catalog-sync/pkg/logger"
	"github.com/robfig/cron/v3"
)

// Scheduler drives Pipeline.SyncOnce on a fixed interval (Component I). It
// is built on robfig/cron with a fixed-delay schedule rather than calendar
// cron, wrapped with cron.SkipIfStillRunning for the non-overlap guarantee
// (O3) and, inside it, cron.Recover so a panicking sync_once never kills the
// driver or blocks later ticks (§4.9).
type Scheduler struct {
	cron     *cron.Cron
	interval time.Duration
	pipeline *Pipeline
	enabled  bool
	log      *logger.Logger
}

type cronLogAdapter struct{ log *logger.Logger }

func (a cronLogAdapter) Info(msg string, keysAndValues ...interface{}) {
	a.log.Debug(msg, keysAndValues...)
}

func (a cronLogAdapter) Error(err error, msg string, keysAndValues ...interface{}) {
	a.log.WithError(err).Error(msg, keysAndValues...)
}

// NewScheduler builds the scheduler. enabled corresponds to sync.enabled
// (§4.10); when false, Start is a no-op, matching the feature flag that
// disables the scheduler for tests and one-shot runs.
func NewScheduler(pipeline *Pipeline, interval time.Duration, enabled bool, log *logger.Logger) *Scheduler {
	adapter := cronLogAdapter{log: log}
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(adapter),
		cron.Recover(adapter),
	))
	return &Scheduler{cron: c, interval: interval, pipeline: pipeline, enabled: enabled, log: log}
}

// Start registers the fixed-interval job and starts the cron driver. It is
// a no-op if the scheduler is disabled.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.enabled {
		s.log.Info("scheduler disabled, not starting")
		return nil
	}
	if s.interval <= 0 {
		return fmt.Errorf("sync: schedule sync_once: non-positive interval %s", s.interval)
	}
	s.cron.Schedule(fixedInterval(s.interval), cron.FuncJob(func() {
		_ = s.pipeline.SyncOnce(ctx)
	}))
	s.cron.Start()
	return nil
}

// fixedInterval is a cron.Schedule that fires d after each activation, at
// the full resolution of d (cron's "@every" rounds up to whole seconds).
type fixedInterval time.Duration

func (d fixedInterval) Next(t time.Time) time.Time { return t.Add(time.Duration(d)) }

// Stop halts the driver and blocks until any in-flight sync_once returns.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
