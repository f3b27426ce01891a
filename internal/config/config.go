package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-watch-sync/internal/weather"
)

type AppConfig struct {
	// RelayAddr is where the phone and the watch reach the relay:
	// unix:///path, tcp://host:port or host:port.
	RelayAddr string `validate:"required"`

	// Location the phone pushes weather for. Only the phone needs it; see
	// PhoneLocation.
	Location weather.Location `validate:"-"`

	Units weather.Units `validate:"oneof=metric imperial"`

	// SyncInterval controls periodic pushes (0 = only on request).
	SyncInterval time.Duration `validate:"gte=0"`

	StoreDriver string `validate:"oneof=memory sqlite"`
	StorePath   string `validate:"required_if=StoreDriver sqlite"`
	// Store retention, applied by both drivers.
	StoreMaxHistory int           `validate:"gte=0"` // max number of days per location (0 = unlimited)
	StoreMaxAge     time.Duration `validate:"gte=0"` // max age of records (0 = unlimited)

	ConnectTimeout time.Duration `validate:"gt=0"`

	Port      string `validate:"required,numeric"`
	WatchPort string `validate:"required,numeric"`

	LogLevel string `validate:"oneof=debug info warn error"`
}

var validate = validator.New()

// Load reads configuration from .env and the environment with sensible
// defaults, then validates it.
func Load() (*AppConfig, error) {
	// A missing .env file is fine; the environment still applies.
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("no .env file loaded")
	}

	cfg := &AppConfig{}
	var err error

	cfg.RelayAddr = getenvDefault("RELAY_ADDR", "tcp://127.0.0.1:7070")
	cfg.Location = weather.Location{
		City:    os.Getenv("WEATHER_LOCATION_CITY"),
		Country: os.Getenv("WEATHER_LOCATION_COUNTRY"),
	}
	cfg.Units = weather.Units(getenvDefault("TEMPERATURE_UNITS", string(weather.UnitsMetric)))

	// Periodic push: default 15 minutes.
	if cfg.SyncInterval, err = getenvDuration("SYNC_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}

	cfg.StoreDriver = getenvDefault("STORE_DRIVER", "memory")
	cfg.StorePath = getenvDefault("STORE_PATH", "weather.db")
	cfg.StoreMaxHistory = getenvInt("STORE_MAX_HISTORY", 7)
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", 7*24*time.Hour); err != nil {
		return nil, err
	}

	if cfg.ConnectTimeout, err = getenvDuration("CONNECT_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.WatchPort = getenvDefault("WATCH_PORT", "8081")
	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// PhoneLocation returns the configured location, failing when it is
// incomplete.
func (c *AppConfig) PhoneLocation() (weather.Location, error) {
	if err := validate.Struct(c.Location); err != nil {
		return weather.Location{}, fmt.Errorf("WEATHER_LOCATION_CITY and WEATHER_LOCATION_COUNTRY are required: %w", err)
	}
	return c.Location, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
