package weather

import "fmt"

// Units selects how temperatures are displayed.
type Units string

const (
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
)

// TemperatureFormatter formats Celsius values as whole degrees in the
// configured units, e.g. "22°".
type TemperatureFormatter struct {
	Units Units
}

// FormatTemperature implements Formatter.
func (f TemperatureFormatter) FormatTemperature(celsius float64) string {
	v := celsius
	if f.Units == UnitsImperial {
		v = celsius*1.8 + 32
	}
	return fmt.Sprintf("%.0f°", v)
}
