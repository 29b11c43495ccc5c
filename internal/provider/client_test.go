package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fevermarket/catalog-sync/internal/config"
	"github.com/fevermarket/catalog-sync/internal/metrics"
	"github.com/fevermarket/catalog-sync/pkg/logger"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"
)

func testProviderConfig(baseURL string) config.ProviderConfig {
	return config.ProviderConfig{
		BaseURL:             baseURL,
		TimeoutMs:           2000,
		RetryMaxAttempts:    3,
		RetryWaitMs:         1,
		RetryMultiplier:     1.0,
		BreakerWindow:       10,
		BreakerThresholdPct: 50,
		BreakerMinCalls:     2,
		BreakerOpenMs:       50,
	}
}

func TestClient_FetchOnlineEvents_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(sampleCatalogXML))
	}))
	defer srv.Close()

	c := NewClient(testProviderConfig(srv.URL), metrics.NewForTest(), logger.New())
	events, err := c.FetchOnlineEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestClient_FetchOnlineEvents_RetriesThenSucceeds(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(sampleCatalogXML))
	}))
	defer srv.Close()

	c := NewClient(testProviderConfig(srv.URL), metrics.NewForTest(), logger.New())
	events, err := c.FetchOnlineEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.GreaterOrEqual(t, calls, 2)
}

func TestClient_FetchOnlineEvents_PermanentErrorReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(testProviderConfig(srv.URL), metrics.NewForTest(), logger.New())
	events, err := c.FetchOnlineEvents(context.Background())
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestClient_FetchOnlineEvents_BreakerOpensOnSustainedFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testProviderConfig(srv.URL)
	cfg.RetryMaxAttempts = 5
	c := NewClient(cfg, metrics.NewForTest(), logger.New())

	events, err := c.FetchOnlineEvents(context.Background())
	require.NoError(t, err)
	require.Empty(t, events)
	require.Equal(t, gobreaker.StateOpen, c.breaker.State())

	events, err = c.FetchOnlineEvents(context.Background())
	require.NoError(t, err)
	require.Empty(t, events)
}
