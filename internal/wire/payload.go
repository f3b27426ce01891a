// Package wire defines the items the phone and the watch exchange.
package wire

import (
	"time"

	"github.com/i474232898/weather-watch-sync/internal/transport"
	"github.com/i474232898/weather-watch-sync/internal/weather"
)

// Item paths.
const (
	WeatherPath = "/weather"
	InitialPath = "/initial"
)

// Keys of the /weather item.
const (
	KeyResID     = "resId"
	KeyMaxTemp   = "maxTemp"
	KeyMinTemp   = "minTemp"
	KeyTimestamp = "timestamp"
)

// SyncPayload is the /weather item. ConditionCode is the source condition
// code, not a resolved icon.
type SyncPayload struct {
	ConditionCode  int
	MaxTemperature string
	MinTemperature string
	Timestamp      int64 // ms since epoch, informational
}

// PayloadFromSnapshot builds the payload for s.
func PayloadFromSnapshot(s weather.Snapshot) SyncPayload {
	return SyncPayload{
		ConditionCode:  s.ConditionCode,
		MaxTemperature: s.MaxTemperature,
		MinTemperature: s.MinTemperature,
		Timestamp:      s.CapturedAt.UnixMilli(),
	}
}

// DataMap encodes the payload.
func (p SyncPayload) DataMap() transport.DataMap {
	return transport.DataMap{
		KeyResID:     p.ConditionCode,
		KeyMaxTemp:   p.MaxTemperature,
		KeyMinTemp:   p.MinTemperature,
		KeyTimestamp: p.Timestamp,
	}
}

// DecodeSyncPayload reads a /weather item. Missing keys decode to zero
// values; hasCondition reports whether resId was present and numeric.
func DecodeSyncPayload(m transport.DataMap) (p SyncPayload, hasCondition bool) {
	p.ConditionCode, hasCondition = m.IntOK(KeyResID)
	p.MaxTemperature = m.String(KeyMaxTemp)
	p.MinTemperature = m.String(KeyMinTemp)
	p.Timestamp = m.Int64(KeyTimestamp)
	return p, hasCondition
}

// InitialSignal is the body of the /initial item. Receivers never read it.
func InitialSignal(now time.Time) transport.DataMap {
	return transport.DataMap{KeyTimestamp: now.UnixMilli()}
}
