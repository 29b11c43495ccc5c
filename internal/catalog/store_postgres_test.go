package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockedStore(t *testing.T) (*postgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	return &postgresStore{db: gdb}, mock
}

func TestPostgresStore_FindOverlapping(t *testing.T) {
	store, mock := newMockedStore(t)

	rows := sqlmock.NewRows([]string{
		"id", "title", "start_date", "start_time", "end_date", "end_time",
		"start_ts", "end_ts", "min_price", "max_price", "event_hash", "created_at", "updated_at",
	}).AddRow(uuid.New(), "ConcertMadrid", "2024-12-15", "20:00:00", "2024-12-15", "23:00:00",
		"2024-12-15T20:00:00", "2024-12-15T23:00:00", 2500, 10000, 111, time.Now(), time.Now())

	mock.ExpectQuery(`SELECT \* FROM "events" WHERE`).WillReturnRows(rows)

	events, err := store.FindOverlapping(context.Background(), "2024-12-01T00:00:00", "2024-12-31T23:59:00")
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "ConcertMadrid", events[0].Title)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertBatch_InsertsNewHash(t *testing.T) {
	store, mock := newMockedStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "events" WHERE event_hash`).
		WillReturnError(gorm.ErrRecordNotFound)
	mock.ExpectExec(`INSERT INTO "events"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	e := Event{
		ID: uuid.New(), Title: "ConcertMadrid", StartDate: "2024-12-15", StartTime: "20:00:00",
		EndDate: "2024-12-15", EndTime: "23:00:00", MinPrice: 2500, MaxPrice: 10000,
	}.WithHash()

	counts, err := store.UpsertBatch(context.Background(), []Event{e})
	require.NoError(t, err)
	require.Equal(t, 1, counts.Inserted)
	require.Equal(t, 0, counts.Updated)
}

func TestPostgresStore_UpsertBatch_UpdatesExistingHashPreservingID(t *testing.T) {
	store, mock := newMockedStore(t)

	existingID := uuid.New()
	e := Event{
		ID: uuid.New(), Title: "ConcertMadrid", StartDate: "2024-12-15", StartTime: "20:00:00",
		EndDate: "2024-12-15", EndTime: "23:00:00", MinPrice: 3000, MaxPrice: 12000,
	}.WithHash()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "events" WHERE event_hash`).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "title", "start_date", "start_time", "end_date", "end_time",
			"start_ts", "end_ts", "min_price", "max_price", "event_hash", "created_at", "updated_at",
		}).AddRow(existingID, "ConcertMadrid", "2024-12-15", "20:00:00", "2024-12-15", "23:00:00",
			"2024-12-15T20:00:00", "2024-12-15T23:00:00", 2500, 10000, e.Hash, time.Now(), time.Now()))
	// The update map built by UpsertBatch never includes "id", so the
	// generated UPDATE can only ever touch mutable fields and filter by
	// the existing row's id — preserving it rather than overwriting it.
	mock.ExpectExec(`UPDATE "events" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	counts, err := store.UpsertBatch(context.Background(), []Event{e})
	require.NoError(t, err)
	require.Equal(t, 0, counts.Inserted)
	require.Equal(t, 1, counts.Updated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertBatch_Empty(t *testing.T) {
	store, _ := newMockedStore(t)
	counts, err := store.UpsertBatch(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, UpsertCounts{}, counts)
}
