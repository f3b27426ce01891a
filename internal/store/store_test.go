package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-watch-sync/internal/weather"
)

var london = weather.Location{City: "London", Country: "GB"}

func newStores(t *testing.T) map[string]Store {
	t.Helper()
	return newStoresWithRetention(t, 0, 0)
}

func newStoresWithRetention(t *testing.T, maxHistory int, maxAge time.Duration) map[string]Store {
	t.Helper()

	sqlite, err := NewSQLite(filepath.Join(t.TempDir(), "weather.db"), maxHistory, maxAge, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(maxHistory, maxAge),
		"sqlite": sqlite,
	}
}

func TestQueryLatestPicksEarliestFromToday(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	today := weather.StartOfDay(now)

	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			// Saved out of order; yesterday must be skipped.
			require.NoError(t, s.SaveRecord(ctx, weather.Record{Location: london, Date: today.AddDate(0, 0, 2), ConditionCode: 800, MaxTemp: 30}))
			require.NoError(t, s.SaveRecord(ctx, weather.Record{Location: london, Date: today.AddDate(0, 0, -1), ConditionCode: 500, MaxTemp: 10}))
			require.NoError(t, s.SaveRecord(ctx, weather.Record{Location: london, Date: today.Add(3 * time.Hour), ConditionCode: 200, ShortDescription: "rain", MaxTemp: 22, MinTemp: 14}))

			rec, err := s.QueryLatest(ctx, london, now)
			require.NoError(t, err)
			assert.Equal(t, 200, rec.ConditionCode)
			assert.Equal(t, "rain", rec.ShortDescription)
			assert.Equal(t, 22.0, rec.MaxTemp)
			assert.Equal(t, 14.0, rec.MinTemp)
			assert.True(t, rec.Date.Equal(today))
			assert.Equal(t, london, rec.Location)
		})
	}
}

func TestQueryLatestNoData(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.QueryLatest(ctx, london, now)
			assert.ErrorIs(t, err, weather.ErrNoData)

			// Only past data for the location.
			require.NoError(t, s.SaveRecord(ctx, weather.Record{Location: london, Date: now.AddDate(0, 0, -3)}))
			_, err = s.QueryLatest(ctx, london, now)
			assert.ErrorIs(t, err, weather.ErrNoData)

			// Data for another location does not leak.
			paris := weather.Location{City: "Paris", Country: "FR"}
			require.NoError(t, s.SaveRecord(ctx, weather.Record{Location: paris, Date: now}))
			_, err = s.QueryLatest(ctx, london, now)
			assert.ErrorIs(t, err, weather.ErrNoData)
		})
	}
}

func TestSaveRecordReplacesSameDay(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.SaveRecord(ctx, weather.Record{Location: london, Date: now, ConditionCode: 500}))
			require.NoError(t, s.SaveRecord(ctx, weather.Record{Location: london, Date: now, ConditionCode: 800}))

			rec, err := s.QueryLatest(ctx, london, now)
			require.NoError(t, err)
			assert.Equal(t, 800, rec.ConditionCode)
		})
	}
}

func TestRetentionKeepsForecastDays(t *testing.T) {
	ctx := context.Background()
	today := weather.StartOfDay(time.Now())

	for name, s := range newStoresWithRetention(t, 7, 7*24*time.Hour) {
		t.Run(name, func(t *testing.T) {
			// A two-week forecast starting today.
			for i := 0; i < 14; i++ {
				require.NoError(t, s.SaveRecord(ctx, weather.Record{Location: london, Date: today.AddDate(0, 0, i), ConditionCode: i}))
			}

			rec, err := s.QueryLatest(ctx, london, today)
			require.NoError(t, err)
			assert.Equal(t, 0, rec.ConditionCode)
			assert.True(t, rec.Date.Equal(today))

			rec, err = s.QueryLatest(ctx, london, today.AddDate(0, 0, 13))
			require.NoError(t, err)
			assert.Equal(t, 13, rec.ConditionCode)
		})
	}
}

func TestRetentionDropsOldestPastDays(t *testing.T) {
	ctx := context.Background()
	today := weather.StartOfDay(time.Now())

	for name, s := range newStoresWithRetention(t, 3, 0) {
		t.Run(name, func(t *testing.T) {
			for i := -5; i <= 1; i++ {
				require.NoError(t, s.SaveRecord(ctx, weather.Record{Location: london, Date: today.AddDate(0, 0, i), ConditionCode: 100 + i}))
			}

			// Yesterday, today and tomorrow survive.
			rec, err := s.QueryLatest(ctx, london, today.AddDate(0, 0, -5))
			require.NoError(t, err)
			assert.Equal(t, 99, rec.ConditionCode)

			rec, err = s.QueryLatest(ctx, london, today)
			require.NoError(t, err)
			assert.Equal(t, 100, rec.ConditionCode)
		})
	}
}

func TestRetentionByAge(t *testing.T) {
	ctx := context.Background()
	today := weather.StartOfDay(time.Now())

	for name, s := range newStoresWithRetention(t, 0, 48*time.Hour) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.SaveRecord(ctx, weather.Record{Location: london, Date: today.AddDate(0, 0, -5), ConditionCode: 1}))
			_, err := s.QueryLatest(ctx, london, today.AddDate(0, 0, -10))
			assert.ErrorIs(t, err, weather.ErrNoData)

			require.NoError(t, s.SaveRecord(ctx, weather.Record{Location: london, Date: today.AddDate(0, 0, -1), ConditionCode: 2}))
			rec, err := s.QueryLatest(ctx, london, today.AddDate(0, 0, -10))
			require.NoError(t, err)
			assert.Equal(t, 2, rec.ConditionCode)
		})
	}
}

func TestOpenAppliesRetention(t *testing.T) {
	ctx := context.Background()
	today := weather.StartOfDay(time.Now())

	s, err := Open(Options{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "w.db"), MaxHistory: 1}, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SaveRecord(ctx, weather.Record{Location: london, Date: today.AddDate(0, 0, -2), ConditionCode: 1}))
	require.NoError(t, s.SaveRecord(ctx, weather.Record{Location: london, Date: today.AddDate(0, 0, -1), ConditionCode: 2}))

	rec, err := s.QueryLatest(ctx, london, today.AddDate(0, 0, -3))
	require.NoError(t, err)
	assert.Equal(t, 2, rec.ConditionCode)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(Options{Driver: "postgres"}, zerolog.Nop())
	assert.Error(t, err)
}
