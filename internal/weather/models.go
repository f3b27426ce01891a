package weather

import (
	"time"
)

// Condition represents a normalized high-level weather condition.
// The watch uses it as the display resource for the weather icon.
type Condition string

const (
	ConditionUnknown     Condition = "unknown"
	ConditionClear       Condition = "clear"
	ConditionLightClouds Condition = "light_clouds"
	ConditionCloudy      Condition = "cloudy"
	ConditionLightRain   Condition = "light_rain"
	ConditionRain        Condition = "rain"
	ConditionSnow        Condition = "snow"
	ConditionStorm       Condition = "storm"
	ConditionFog         Condition = "fog"
)

// Location represents the place the phone tracks weather for.
// City/Country must be provided.
type Location struct {
	City    string `json:"city" validate:"required"`
	Country string `json:"country" validate:"required"`
}

// Key returns a canonical string key for indexing this location in stores.
func (l Location) Key() string {
	return l.City + ":" + l.Country
}

// Record is one day of weather for a location, as held by the local store.
// Temperatures are Celsius.
type Record struct {
	Location         Location  `json:"location"`
	Date             time.Time `json:"date"` // start of day, UTC
	ConditionCode    int       `json:"conditionCode"`
	ShortDescription string    `json:"shortDescription"`
	MaxTemp          float64   `json:"maxTemp"`
	MinTemp          float64   `json:"minTemp"`
}

// Snapshot is the weather at one point in time, ready to be pushed to the
// watch. Temperatures are already formatted for display.
type Snapshot struct {
	ConditionCode    int       `json:"conditionCode"`
	ShortDescription string    `json:"shortDescription"`
	MaxTemperature   string    `json:"maxTemperature"`
	MinTemperature   string    `json:"minTemperature"`
	CapturedAt       time.Time `json:"capturedAt"`
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
