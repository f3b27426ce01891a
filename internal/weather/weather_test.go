package weather

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConditionForCode(t *testing.T) {
	tests := []struct {
		code int
		want Condition
	}{
		{200, ConditionStorm},
		{232, ConditionStorm},
		{301, ConditionLightRain},
		{500, ConditionRain},
		{511, ConditionSnow},
		{522, ConditionRain},
		{601, ConditionSnow},
		{741, ConditionFog},
		{761, ConditionFog},
		{781, ConditionStorm},
		{800, ConditionClear},
		{801, ConditionLightClouds},
		{804, ConditionCloudy},
		{0, ConditionUnknown},
		{505, ConditionUnknown},
		{900, ConditionUnknown},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ConditionForCode(tt.code), "code %d", tt.code)
	}
}

func TestConditionIconsUnresolved(t *testing.T) {
	_, ok := ConditionIcons{}.ResolveIcon(42)
	assert.False(t, ok)

	c, ok := ConditionIcons{}.ResolveIcon(200)
	assert.True(t, ok)
	assert.Equal(t, ConditionStorm, c)
}

func TestTemperatureFormatter(t *testing.T) {
	metric := TemperatureFormatter{Units: UnitsMetric}
	assert.Equal(t, "22°", metric.FormatTemperature(22.0))
	assert.Equal(t, "14°", metric.FormatTemperature(14.2))
	assert.Equal(t, "-3°", metric.FormatTemperature(-3.4))

	imperial := TemperatureFormatter{Units: UnitsImperial}
	assert.Equal(t, "72°", imperial.FormatTemperature(22.0))
	assert.Equal(t, "32°", imperial.FormatTemperature(0))
}

func TestStartOfDay(t *testing.T) {
	ts := time.Date(2024, 3, 9, 17, 45, 3, 12, time.UTC)
	assert.Equal(t, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), StartOfDay(ts))
}
