package catalog

import (
	"context"
	"errors"

	"github.com/fevermarket/catalog-sync/pkg/logger"
)

// ErrInvalidRange is the domain error returned when a query window is
// inverted (fromTS > toTS).
var ErrInvalidRange = errors.New("catalog: from_ts after to_ts")

// Composer glues the bucket cache strategy and the durable store into a
// single coherent answer (Component E).
type Composer struct {
	cache   CacheStrategy
	durable DurableStore
	log     *logger.Logger
}

// NewComposer builds the range query composer.
func NewComposer(cache CacheStrategy, durable DurableStore, log *logger.Logger) *Composer {
	return &Composer{cache: cache, durable: durable, log: log}
}

// Search answers a single overlap range query (§4.5). It never blocks on
// cache fill: a miss triggers an asynchronous, best-effort repopulation and
// returns immediately with the durable-store answer.
func (c *Composer) Search(ctx context.Context, fromTS, toTS string) ([]Event, error) {
	if fromTS > toTS {
		return nil, ErrInvalidRange
	}

	result, err := c.cache.Query(ctx, fromTS, toTS)
	if err != nil {
		// Cache transport/serialization failure: fall back to the durable
		// store directly, never attempting to write back (§4.5 step 3).
		c.log.WithError(err).Warn("cache query failed, falling back to durable store")
		return c.durable.FindOverlapping(ctx, fromTS, toTS)
	}

	if !result.Bypassed {
		return result.Events, nil
	}

	// Cache bypass: decomposition too large, go straight to the durable
	// store and best-effort fill the touched months afterward.
	events, err := c.durable.FindOverlapping(ctx, fromTS, toTS)
	if err != nil {
		return nil, err
	}
	c.cache.Fill(ctx, fromTS, toTS, events)
	return events, nil
}
