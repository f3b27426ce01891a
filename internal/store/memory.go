package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/weather-watch-sync/internal/weather"
)

// RecordHistory holds a date-ordered list of weather records for a location.
type RecordHistory struct {
	Records []weather.Record
}

// MemoryStore is a concurrency-safe in-memory implementation of a weather store.
type MemoryStore struct {
	mu sync.RWMutex

	// key: location key, value: history
	data map[string]*RecordHistory

	// retention configuration
	maxHistory int           // max number of records per location, past days only
	maxAge     time.Duration // optional max age for records
}

// NewMemoryStore creates a new MemoryStore with optional limits.
// If maxHistory is <= 0, it is treated as unlimited.
func NewMemoryStore(maxHistory int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		data:       make(map[string]*RecordHistory),
		maxHistory: maxHistory,
		maxAge:     maxAge,
	}
}

// SaveRecord stores a record for its location and day, replacing any record
// already held for that day, and enforces retention.
func (s *MemoryStore) SaveRecord(_ context.Context, rec weather.Record) error {
	rec.Date = weather.StartOfDay(rec.Date)
	key := rec.Location.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.data[key]
	if !ok {
		history = &RecordHistory{}
		s.data[key] = history
	}

	replaced := false
	for i := range history.Records {
		if history.Records[i].Date.Equal(rec.Date) {
			history.Records[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		history.Records = append(history.Records, rec)
		sort.Slice(history.Records, func(i, j int) bool {
			return history.Records[i].Date.Before(history.Records[j].Date)
		})
	}

	// Enforce retention by count, dropping the oldest past days. Today and
	// forecast days are never evicted.
	if s.maxHistory > 0 && len(history.Records) > s.maxHistory {
		over := len(history.Records) - s.maxHistory
		today := weather.StartOfDay(time.Now())
		past := sort.Search(len(history.Records), func(i int) bool {
			return !history.Records[i].Date.Before(today)
		})
		history.Records = history.Records[min(over, past):]
	}

	// Enforce retention by age.
	if s.maxAge > 0 {
		cutoff := weather.StartOfDay(time.Now().Add(-s.maxAge))
		i := 0
		for ; i < len(history.Records); i++ {
			if !history.Records[i].Date.Before(cutoff) {
				break
			}
		}
		history.Records = history.Records[i:]
	}
	return nil
}

// QueryLatest returns the earliest record on or after the start of since's day.
func (s *MemoryStore) QueryLatest(_ context.Context, loc weather.Location, since time.Time) (weather.Record, error) {
	from := weather.StartOfDay(since)

	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.data[loc.Key()]
	if !ok {
		return weather.Record{}, weather.ErrNoData
	}
	for _, rec := range history.Records {
		if !rec.Date.Before(from) {
			return rec, nil
		}
	}
	return weather.Record{}, weather.ErrNoData
}
