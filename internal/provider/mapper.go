package provider

import (
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/fevermarket/catalog-sync/internal/catalog"
	"github.com/fevermarket/catalog-sync/pkg/logger"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// isoLocalLayout matches the upstream's plan_start_date/plan_end_date
// format, a naive (timezone-less) ISO local date-time.
const isoLocalLayout = "2006-01-02T15:04:05"

// validate checks the mapper's derived fields (title non-empty, price
// ordering) before an Event is allowed into the pipeline — repurposing the
// teacher's request-DTO validator for upstream data-quality checks instead.
var validate = validator.New()

type mappedFields struct {
	Title    string `validate:"required"`
	MinPrice int64  `validate:"gte=0"`
	MaxPrice int64  `validate:"gtefield=MinPrice"`
}

// MapOnlineEvents decodes the upstream XML document and emits one
// catalog.Event per <plan> under a <base_plan sell_mode="online">. Records
// with unparseable dates or that fail validation are dropped individually
// with a warning; the batch continues (§4.7).
func MapOnlineEvents(ctx context.Context, log *logger.Logger, raw []byte) ([]catalog.Event, error) {
	var doc planList
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("provider: decode catalog xml: %w", err)
	}

	events := make([]catalog.Event, 0)
	for _, bp := range doc.Output.BasePlans {
		if bp.SellMode != sellModeOnline {
			continue
		}
		for _, p := range bp.Plans {
			e, err := mapPlan(bp.Title, p)
			if err != nil {
				log.LogDroppedRecord(ctx, bp.Title, err.Error())
				continue
			}
			events = append(events, e)
		}
	}
	return events, nil
}

func mapPlan(title string, p plan) (catalog.Event, error) {
	start, err := time.Parse(isoLocalLayout, p.StartDate)
	if err != nil {
		return catalog.Event{}, fmt.Errorf("unparseable plan_start_date %q: %w", p.StartDate, err)
	}
	end, err := time.Parse(isoLocalLayout, p.EndDate)
	if err != nil {
		return catalog.Event{}, fmt.Errorf("unparseable plan_end_date %q: %w", p.EndDate, err)
	}

	minPrice, maxPrice := priceRange(p.Zones)

	fields := mappedFields{Title: title, MinPrice: minPrice, MaxPrice: maxPrice}
	if err := validate.Struct(fields); err != nil {
		return catalog.Event{}, fmt.Errorf("invalid record: %w", err)
	}

	e := catalog.Event{
		ID:        uuid.New(),
		Title:     title,
		StartDate: start.Format("2006-01-02"),
		StartTime: start.Format("15:04:05"),
		EndDate:   end.Format("2006-01-02"),
		EndTime:   end.Format("15:04:05"),
		MinPrice:  minPrice,
		MaxPrice:  maxPrice,
	}
	if err := e.Validate(); err != nil {
		return catalog.Event{}, err
	}
	return e.WithHash(), nil
}

// priceRange derives (min_price, max_price) in minor currency units from
// zones with capacity > 0; (0, 0) if none qualify (§4.7).
func priceRange(zones []zone) (int64, int64) {
	var min, max int64
	first := true
	for _, z := range zones {
		if z.Capacity <= 0 {
			continue
		}
		cents := int64(z.Price*100 + 0.5)
		if first {
			min, max = cents, cents
			first = false
			continue
		}
		if cents < min {
			min = cents
		}
		if cents > max {
			max = cents
		}
	}
	return min, max
}
