package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fevermarket/catalog-sync/internal/catalog"
	"github.com/fevermarket/catalog-sync/internal/config"
	"github.com/fevermarket/catalog-sync/internal/metrics"
	"github.com/fevermarket/catalog-sync/pkg/logger"
	"github.com/sony/gobreaker"
)

// breakerHalfOpenProbes is the number of probe calls gobreaker permits while
// half-open (§4.6's "default 3"). The key table in §4.10 doesn't carry a
// dedicated option for it, so it's a constant rather than a config field.
const breakerHalfOpenProbes = 3

// Client is the typed upstream fetch client (Component F): a single
// asynchronous operation wrapped, outer to inner, by timeout, retry, and
// circuit breaker.
type Client struct {
	httpClient *http.Client
	catalogURL string

	timeout          time.Duration
	retryMaxAttempts int
	retryWait        time.Duration
	retryMultiplier  float64

	breaker *gobreaker.CircuitBreaker
	metrics *metrics.Collectors
	log     *logger.Logger
}

// NewClient builds the provider client from §4.10's provider.* settings.
func NewClient(cfg config.ProviderConfig, m *metrics.Collectors, log *logger.Logger) *Client {
	c := &Client{
		httpClient:       &http.Client{},
		catalogURL:       cfg.BaseURL + "/api/events",
		timeout:          time.Duration(cfg.TimeoutMs) * time.Millisecond,
		retryMaxAttempts: cfg.RetryMaxAttempts,
		retryWait:        time.Duration(cfg.RetryWaitMs) * time.Millisecond,
		retryMultiplier:  cfg.RetryMultiplier,
		metrics:          m,
		log:              log,
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "external-provider",
		MaxRequests: breakerHalfOpenProbes,
		Timeout:     time.Duration(cfg.BreakerOpenMs) * time.Millisecond,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < uint32(cfg.BreakerMinCalls) {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio*100 >= float64(cfg.BreakerThresholdPct)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			m.BreakerTransition.WithLabelValues(to.String()).Inc()
			log.LogBreakerTransition(context.Background(), from.String(), to.String())
		},
	})

	return c
}

// FetchOnlineEvents fetches, decodes, and maps the upstream catalog. A
// breaker trip, exhausted retries, or a permanent upstream error all
// resolve to an empty slice with a nil error — indistinguishable from a
// legitimate steady-state empty catalog at this layer (§4.6, P7).
func (c *Client) FetchOnlineEvents(ctx context.Context) ([]catalog.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var events []catalog.Event
	attempt := 0

	operation := func() error {
		attempt++
		start := time.Now()
		raw, err := c.breaker.Execute(func() (interface{}, error) {
			return c.fetchRaw(ctx)
		})
		c.metrics.UpstreamLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			if attempt > 1 {
				c.log.LogProviderRetry(ctx, attempt, err)
			}
			return err
		}

		mapped, err := MapOnlineEvents(ctx, c.log, raw.([]byte))
		if err != nil {
			return err
		}
		events = mapped
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryWait
	bo.Multiplier = c.retryMultiplier
	bo.MaxElapsedTime = 0
	retrier := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(maxInt(c.retryMaxAttempts-1, 0))), ctx)

	if err := backoff.Retry(operation, retrier); err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, ctx.Err()
		}
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.log.Warn("provider breaker open, returning empty result")
		} else {
			c.log.WithError(err).Warn("provider fetch exhausted retries, returning empty result")
		}
		return nil, nil
	}

	return events, nil
}

// fetchRaw performs the single HTTP round trip. 5xx and transport errors
// are retryable; 4xx is wrapped as permanent so the retry loop stops early.
func (c *Client) fetchRaw(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.catalogURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("provider: build request: %w", err))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider: fetch catalog: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("provider: read catalog body: %w", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("provider: upstream returned %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, backoff.Permanent(fmt.Errorf("provider: upstream returned %d", resp.StatusCode))
	}

	return body, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
