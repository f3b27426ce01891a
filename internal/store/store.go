package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/i474232898/weather-watch-sync/internal/weather"
)

// Store is the local weather store consumed by the phone side.
type Store interface {
	weather.Source
	SaveRecord(ctx context.Context, rec weather.Record) error
	Close() error
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// Options selects and tunes a Store implementation.
type Options struct {
	Driver     string // "memory" or "sqlite"
	Path       string // sqlite database file
	MaxHistory int
	MaxAge     time.Duration
}

// Open builds the Store described by opts.
func Open(opts Options, log zerolog.Logger) (Store, error) {
	switch opts.Driver {
	case "", "memory":
		return NewMemoryStore(opts.MaxHistory, opts.MaxAge), nil
	case "sqlite":
		return NewSQLite(opts.Path, opts.MaxHistory, opts.MaxAge, log)
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
}
