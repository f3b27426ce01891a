package weather

import (
	"context"
	"errors"
	"time"
)

// ErrNoData is returned by a Source when no record matches the query.
var ErrNoData = errors.New("no weather data for location")

// Source abstracts the phone's local weather store.
type Source interface {
	// QueryLatest returns today's record for loc: the earliest-dated record
	// whose date is on or after the start of since's day.
	QueryLatest(ctx context.Context, loc Location, since time.Time) (Record, error)
}

// Formatter renders a temperature for display.
type Formatter interface {
	FormatTemperature(value float64) string
}

// IconResolver maps a condition code to the icon the watch shows.
// ok is false when the code has no icon.
type IconResolver interface {
	ResolveIcon(code int) (Condition, bool)
}
