package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// gormEvent is the persisted row shape for the durable store (§6's "Durable
// store schema"). StartTS/EndTS are derived, indexed columns that let the
// overlap predicate run as a plain range comparison instead of a four-column
// expression on every read.
type gormEvent struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Title     string    `gorm:"not null"`
	StartDate string    `gorm:"not null;index:idx_start_date_time,priority:1;index:idx_start_end_date,priority:1"`
	StartTime string    `gorm:"not null;index:idx_start_date_time,priority:2"`
	EndDate   string    `gorm:"not null;index:idx_start_end_date,priority:2"`
	EndTime   string    `gorm:"not null"`
	StartTS   string    `gorm:"not null;index:idx_overlap,priority:1"`
	EndTS     string    `gorm:"not null;index:idx_overlap,priority:2"`
	MinPrice  int64     `gorm:"not null"`
	MaxPrice  int64     `gorm:"not null"`
	EventHash uint64    `gorm:"not null;uniqueIndex"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (gormEvent) TableName() string { return "events" }

func fromEvent(e Event) gormEvent {
	return gormEvent{
		ID:        e.ID,
		Title:     e.Title,
		StartDate: e.StartDate,
		StartTime: e.StartTime,
		EndDate:   e.EndDate,
		EndTime:   e.EndTime,
		StartTS:   e.StartTS(),
		EndTS:     e.EndTS(),
		MinPrice:  e.MinPrice,
		MaxPrice:  e.MaxPrice,
		EventHash: e.Hash,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func (g gormEvent) toEvent() Event {
	return Event{
		ID:        g.ID,
		Title:     g.Title,
		StartDate: g.StartDate,
		StartTime: g.StartTime,
		EndDate:   g.EndDate,
		EndTime:   g.EndTime,
		MinPrice:  g.MinPrice,
		MaxPrice:  g.MaxPrice,
		Hash:      g.EventHash,
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
}

// UpsertCounts reports the effect of an UpsertBatch call.
type UpsertCounts struct {
	Inserted int
	Updated  int
}

// DurableStore is the durable store adapter's contract (Component B).
type DurableStore interface {
	FindOverlapping(ctx context.Context, fromTS, toTS string) ([]Event, error)
	UpsertBatch(ctx context.Context, events []Event) (UpsertCounts, error)
}

type postgresStore struct {
	db *gorm.DB
}

// NewPostgresStore builds a DurableStore backed by the given GORM connection.
func NewPostgresStore(db *gorm.DB) DurableStore {
	return &postgresStore{db: db}
}

// FindOverlapping returns every event whose [start_ts, end_ts] intersects
// [fromTS, toTS], ordered by (start_date, start_time) ascending with id as
// the tiebreak (§4.2, P3).
func (s *postgresStore) FindOverlapping(ctx context.Context, fromTS, toTS string) ([]Event, error) {
	var rows []gormEvent
	err := s.db.WithContext(ctx).
		Where("start_ts <= ? AND end_ts >= ?", toTS, fromTS).
		Order("start_date ASC, start_time ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("catalog: find overlapping: %w", err)
	}

	events := make([]Event, 0, len(rows))
	for _, r := range rows {
		events = append(events, r.toEvent())
	}
	return events, nil
}

// UpsertBatch inserts new hashes and updates mutable fields of existing
// ones, all within a single transaction (O4). Within-batch conflicts on the
// same hash are resolved deterministically by sorting the batch by hash
// first, so the last occurrence wins (§4.2).
func (s *postgresStore) UpsertBatch(ctx context.Context, events []Event) (UpsertCounts, error) {
	if len(events) == 0 {
		return UpsertCounts{}, nil
	}

	ordered := make([]Event, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Hash < ordered[j].Hash })

	var counts UpsertCounts
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		for _, e := range ordered {
			var existing gormEvent
			err := tx.Where("event_hash = ?", e.Hash).First(&existing).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				row := fromEvent(e)
				row.CreatedAt = now
				row.UpdatedAt = now
				if row.ID == uuid.Nil {
					row.ID = uuid.New()
				}
				if err := tx.Create(&row).Error; err != nil {
					return fmt.Errorf("catalog: insert event hash %d: %w", e.Hash, err)
				}
				counts.Inserted++
			case err == nil:
				updates := map[string]interface{}{
					"title":      e.Title,
					"start_date": e.StartDate,
					"start_time": e.StartTime,
					"end_date":   e.EndDate,
					"end_time":   e.EndTime,
					"start_ts":   e.StartTS(),
					"end_ts":     e.EndTS(),
					"min_price":  e.MinPrice,
					"max_price":  e.MaxPrice,
					"updated_at": now,
				}
				if err := tx.Model(&existing).Updates(updates).Error; err != nil {
					return fmt.Errorf("catalog: update event hash %d: %w", e.Hash, err)
				}
				counts.Updated++
			default:
				return fmt.Errorf("catalog: lookup event hash %d: %w", e.Hash, err)
			}
		}
		return nil
	})
	if err != nil {
		return UpsertCounts{}, err
	}
	return counts, nil
}
