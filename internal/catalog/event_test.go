package catalog

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_Overlaps(t *testing.T) {
	e := Event{
		StartDate: "2024-12-15", StartTime: "20:00:00",
		EndDate: "2024-12-15", EndTime: "23:00:00",
	}

	cases := []struct {
		name     string
		from, to string
		want     bool
	}{
		{"fully inside window", "2024-12-01T00:00:00", "2024-12-31T23:59:00", true},
		{"window ends exactly at start", "2024-12-15T20:00:00", "2024-12-15T20:00:00", true},
		{"window before event", "2024-12-01T00:00:00", "2024-12-15T19:59:59", false},
		{"window after event", "2024-12-15T23:00:01", "2024-12-31T00:00:00", false},
		{"window touches end instant", "2024-12-15T23:00:00", "2024-12-16T00:00:00", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, e.Overlaps(c.from, c.to))
		})
	}
}

func TestEvent_Validate(t *testing.T) {
	base := Event{
		Title: "ConcertMadrid", StartDate: "2024-12-15", StartTime: "20:00:00",
		EndDate: "2024-12-15", EndTime: "23:00:00", MinPrice: 2500, MaxPrice: 10000,
	}
	require.NoError(t, base.Validate())

	noTitle := base
	noTitle.Title = ""
	assert.Error(t, noTitle.Validate())

	inverted := base
	inverted.StartDate, inverted.EndDate = "2024-12-16", "2024-12-15"
	assert.Error(t, inverted.Validate())

	badPrice := base
	badPrice.MinPrice, badPrice.MaxPrice = 100, 50
	assert.Error(t, badPrice.Validate())

	negative := base
	negative.MinPrice = -1
	assert.Error(t, negative.Validate())
}

func TestComputeHash_StableAndExcludesIDAndPrice(t *testing.T) {
	h1 := ComputeHash("ConcertMadrid", "2024-12-15", "20:00:00", "2024-12-15", "23:00:00")
	h2 := ComputeHash("ConcertMadrid", "2024-12-15", "20:00:00", "2024-12-15", "23:00:00")
	assert.Equal(t, h1, h2)

	e1 := Event{Title: "ConcertMadrid", StartDate: "2024-12-15", StartTime: "20:00:00",
		EndDate: "2024-12-15", EndTime: "23:00:00", MinPrice: 2500, MaxPrice: 10000, ID: uuid.New()}
	e2 := e1
	e2.ID = uuid.New()
	e2.MinPrice, e2.MaxPrice = 3000, 12000
	assert.Equal(t, e1.WithHash().Hash, e2.WithHash().Hash)

	different := ComputeHash("TheaterShow", "2024-12-15", "20:00:00", "2024-12-15", "23:00:00")
	assert.NotEqual(t, h1, different)
}

func TestEvent_MonthsTouched(t *testing.T) {
	single := Event{StartDate: "2024-12-05", EndDate: "2024-12-20"}
	assert.Equal(t, []string{"2024-12"}, single.MonthsTouched())

	spanning := Event{StartDate: "2024-11-28", EndDate: "2025-01-03"}
	assert.Equal(t, []string{"2024-11", "2024-12", "2025-01"}, spanning.MonthsTouched())
}
