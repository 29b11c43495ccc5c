package httpapi

import (
	"fmt"

	"github.com/fevermarket/catalog-sync/internal/catalog"
)

// EventDTO is the wire shape of one event in a /search response (§6).
type EventDTO struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	StartDate string `json:"start_date"`
	StartTime string `json:"start_time"`
	EndDate   string `json:"end_date"`
	EndTime   string `json:"end_time"`
	MinPrice  string `json:"min_price"`
	MaxPrice  string `json:"max_price"`
}

// SearchResponse is the envelope every /search response is wrapped in,
// success or failure (§6: "400 ... body is the empty envelope").
type SearchResponse struct {
	Data SearchData `json:"data"`
}

// SearchData holds the events array inside the envelope.
type SearchData struct {
	Events []EventDTO `json:"events"`
}

func emptyResponse() SearchResponse {
	return SearchResponse{Data: SearchData{Events: []EventDTO{}}}
}

func toDTO(e catalog.Event) EventDTO {
	return EventDTO{
		ID:        e.ID.String(),
		Title:     e.Title,
		StartDate: e.StartDate,
		StartTime: e.StartTime,
		EndDate:   e.EndDate,
		EndTime:   e.EndTime,
		MinPrice:  formatCents(e.MinPrice),
		MaxPrice:  formatCents(e.MaxPrice),
	}
}

func toDTOs(events []catalog.Event) []EventDTO {
	dtos := make([]EventDTO, len(events))
	for i, e := range events {
		dtos[i] = toDTO(e)
	}
	return dtos
}

// formatCents renders minor-currency-unit cents as a two-fractional-digit
// decimal string, matching §6's "prices decimal with two fractional digits".
func formatCents(cents int64) string {
	negative := cents < 0
	if negative {
		cents = -cents
	}
	whole, fraction := cents/100, cents%100
	sign := ""
	if negative {
		sign = "-"
	}
	return fmt.Sprintf("%s%d.%02d", sign, whole, fraction)
}
