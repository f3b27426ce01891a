package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/i474232898/weather-watch-sync/internal/transport"
	"github.com/i474232898/weather-watch-sync/internal/weather"
)

func TestPayloadFromSnapshot(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	p := PayloadFromSnapshot(weather.Snapshot{
		ConditionCode:    200,
		ShortDescription: "rain",
		MaxTemperature:   "22°",
		MinTemperature:   "14°",
		CapturedAt:       at,
	})

	assert.Equal(t, transport.DataMap{
		"resId":     200,
		"maxTemp":   "22°",
		"minTemp":   "14°",
		"timestamp": int64(1700000000123),
	}, p.DataMap())
}

func TestDecodeSyncPayload(t *testing.T) {
	t.Run("json numbers", func(t *testing.T) {
		p, ok := DecodeSyncPayload(transport.DataMap{
			"resId":     float64(800),
			"maxTemp":   "30°",
			"minTemp":   "18°",
			"timestamp": float64(1700000000000),
		})
		assert.True(t, ok)
		assert.Equal(t, SyncPayload{ConditionCode: 800, MaxTemperature: "30°", MinTemperature: "18°", Timestamp: 1700000000000}, p)
	})

	t.Run("missing keys decode to defaults", func(t *testing.T) {
		p, ok := DecodeSyncPayload(transport.DataMap{"maxTemp": "30°"})
		assert.False(t, ok)
		assert.Equal(t, SyncPayload{MaxTemperature: "30°"}, p)

		p, ok = DecodeSyncPayload(nil)
		assert.False(t, ok)
		assert.Equal(t, SyncPayload{}, p)
	})
}

func TestInitialSignal(t *testing.T) {
	m := InitialSignal(time.UnixMilli(42))
	assert.Equal(t, int64(42), m.Int64("timestamp"))
	assert.Len(t, m, 1)
}
