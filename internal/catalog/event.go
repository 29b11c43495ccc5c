// Package catalog holds the event domain model and the durable/bucket store
// adapters and cache strategy that serve overlap range queries against it.
package catalog

import (
	"errors"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// hashSeparator joins the hash-forming fields of an Event. 0x1f (unit
// separator) is not a legal character in an upstream title, so it can't
// collide across field boundaries.
const hashSeparator = "\x1f"

// ErrInvalidEvent is returned when an Event fails one of its invariants.
var ErrInvalidEvent = errors.New("catalog: invalid event")

// Event is the immutable domain record. Two Events with the same Hash are
// the same business event; price and ID are never part of the hash.
type Event struct {
	ID        uuid.UUID
	Title     string
	StartDate string // civil date, "YYYY-MM-DD"
	StartTime string // civil time of day, "HH:MM:SS"
	EndDate   string
	EndTime   string
	MinPrice  int64 // fixed-point currency, minor units (cents)
	MaxPrice  int64
	Hash      uint64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StartTS returns the civil start timestamp, comparable lexicographically.
func (e Event) StartTS() string {
	return e.StartDate + "T" + e.StartTime
}

// EndTS returns the civil end timestamp, comparable lexicographically.
func (e Event) EndTS() string {
	return e.EndDate + "T" + e.EndTime
}

// Overlaps reports whether the Event's [StartTS, EndTS] interval intersects
// the closed window [fromTS, toTS] (P1): start_ts <= to_ts AND end_ts >= from_ts.
func (e Event) Overlaps(fromTS, toTS string) bool {
	return e.StartTS() <= toTS && e.EndTS() >= fromTS
}

// Validate checks the invariants from §3: non-empty title, ordered
// start/end timestamps, non-negative and correctly ordered prices.
func (e Event) Validate() error {
	if e.Title == "" {
		return errors.New("catalog: empty title")
	}
	if e.StartDate == "" || e.StartTime == "" || e.EndDate == "" || e.EndTime == "" {
		return errors.New("catalog: missing date/time component")
	}
	if e.StartTS() > e.EndTS() {
		return errors.New("catalog: start after end")
	}
	if e.MinPrice < 0 || e.MaxPrice < 0 {
		return errors.New("catalog: negative price")
	}
	if e.MinPrice > e.MaxPrice {
		return errors.New("catalog: min_price greater than max_price")
	}
	return nil
}

// ComputeHash derives the business-key hash from (title, start_date,
// start_time, end_date, end_time) only — id and prices are never included,
// so a reissued event with the same timing but a new price still dedups to
// the same row (§4.1). xxhash is a portable, deterministic, non-cryptographic
// 64-bit digest, chosen explicitly to resolve the Open Question on hash
// function portability (see DESIGN.md).
func ComputeHash(title, startDate, startTime, endDate, endTime string) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(title)
	_, _ = d.WriteString(hashSeparator)
	_, _ = d.WriteString(startDate)
	_, _ = d.WriteString(hashSeparator)
	_, _ = d.WriteString(startTime)
	_, _ = d.WriteString(hashSeparator)
	_, _ = d.WriteString(endDate)
	_, _ = d.WriteString(hashSeparator)
	_, _ = d.WriteString(endTime)
	return d.Sum64()
}

// WithHash returns a copy of e with Hash populated from its current
// hash-forming fields.
func (e Event) WithHash() Event {
	e.Hash = ComputeHash(e.Title, e.StartDate, e.StartTime, e.EndDate, e.EndTime)
	return e
}

// monthOf returns the bucket key (first day of the month, "YYYY-MM") for a
// civil date "YYYY-MM-DD".
func monthOf(civilDate string) string {
	if len(civilDate) < 7 {
		return civilDate
	}
	return civilDate[:7]
}

// MonthsTouched returns the inclusive, deduplicated sequence of bucket
// months that e's [StartDate, EndDate] span touches.
func (e Event) MonthsTouched() []string {
	return monthRange(monthOf(e.StartDate), monthOf(e.EndDate))
}

// monthRange returns the inclusive month sequence between two "YYYY-MM"
// keys (month decomposition, §4.4).
func monthRange(fromMonth, toMonth string) []string {
	start, err1 := time.Parse("2006-01", fromMonth)
	end, err2 := time.Parse("2006-01", toMonth)
	if err1 != nil || err2 != nil || end.Before(start) {
		return []string{fromMonth}
	}
	var months []string
	for m := start; !m.After(end); m = m.AddDate(0, 1, 0) {
		months = append(months, m.Format("2006-01"))
	}
	return months
}
