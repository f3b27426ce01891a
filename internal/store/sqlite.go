package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/i474232898/weather-watch-sync/internal/weather"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS weather (
	location_key TEXT NOT NULL,
	city TEXT NOT NULL,
	country TEXT NOT NULL,
	date INTEGER NOT NULL,
	weather_id INTEGER NOT NULL,
	short_desc TEXT NOT NULL,
	max_temp REAL NOT NULL,
	min_temp REAL NOT NULL,
	UNIQUE (location_key, date) ON CONFLICT REPLACE
);`

// SQLiteStore keeps weather records in a sqlite database (pure Go driver
// modernc.org/sqlite). Dates are stored as unix milliseconds.
type SQLiteStore struct {
	db *sql.DB

	// retention configuration, same semantics as MemoryStore
	maxHistory int
	maxAge     time.Duration
}

// NewSQLite opens (or creates) the database at path and applies the schema.
// maxHistory and maxAge bound each location's rows; values <= 0 are unlimited.
func NewSQLite(path string, maxHistory int, maxAge time.Duration, log zerolog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		log.Warn().Err(err).Msg("could not set WAL mode")
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db, maxHistory: maxHistory, maxAge: maxAge}, nil
}

// SaveRecord stores rec, replacing the record for the same location and day,
// and enforces retention in the same transaction.
func (s *SQLiteStore) SaveRecord(ctx context.Context, rec weather.Record) error {
	day := weather.StartOfDay(rec.Date)
	key := rec.Location.Key()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO weather(location_key, city, country, date, weather_id, short_desc, max_temp, min_temp) VALUES(?,?,?,?,?,?,?,?)`,
		key, rec.Location.City, rec.Location.Country, day.UnixMilli(),
		rec.ConditionCode, rec.ShortDescription, rec.MaxTemp, rec.MinTemp)
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}

	if err := s.prune(ctx, tx, key); err != nil {
		return fmt.Errorf("enforce retention: %w", err)
	}
	return tx.Commit()
}

// prune drops the oldest past days beyond maxHistory, then every day older
// than maxAge.
func (s *SQLiteStore) prune(ctx context.Context, tx *sql.Tx, key string) error {
	now := time.Now()

	if s.maxHistory > 0 {
		var count int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM weather WHERE location_key = ?`, key).Scan(&count); err != nil {
			return err
		}
		if over := count - s.maxHistory; over > 0 {
			_, err := tx.ExecContext(ctx,
				`DELETE FROM weather WHERE rowid IN (
				   SELECT rowid FROM weather WHERE location_key = ? AND date < ?
				   ORDER BY date ASC LIMIT ?)`,
				key, weather.StartOfDay(now).UnixMilli(), over)
			if err != nil {
				return err
			}
		}
	}

	if s.maxAge > 0 {
		cutoff := weather.StartOfDay(now.Add(-s.maxAge))
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM weather WHERE location_key = ? AND date < ?`,
			key, cutoff.UnixMilli()); err != nil {
			return err
		}
	}
	return nil
}

// QueryLatest returns the earliest record on or after the start of since's day.
func (s *SQLiteStore) QueryLatest(ctx context.Context, loc weather.Location, since time.Time) (weather.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT city, country, date, weather_id, short_desc, max_temp, min_temp FROM weather
		 WHERE location_key = ? AND date >= ? ORDER BY date ASC LIMIT 1`,
		loc.Key(), weather.StartOfDay(since).UnixMilli())

	var (
		rec    weather.Record
		dateMs int64
	)
	err := row.Scan(&rec.Location.City, &rec.Location.Country, &dateMs,
		&rec.ConditionCode, &rec.ShortDescription, &rec.MaxTemp, &rec.MinTemp)
	if errors.Is(err, sql.ErrNoRows) {
		return weather.Record{}, weather.ErrNoData
	}
	if err != nil {
		return weather.Record{}, fmt.Errorf("query latest: %w", err)
	}
	rec.Date = time.UnixMilli(dateMs).UTC()
	return rec, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
