// Package forecast generates synthetic weather forecasts.
package forecast

import (
	"encoding/json"
	"math/rand/v2"
	"time"
)

// Days is the number of entries produced by Generate.
const Days = 5

// Temperature bounds in Celsius, lower inclusive, upper exclusive.
const (
	MinTemperatureC = -20
	MaxTemperatureC = 55
)

// Summaries is the fixed vocabulary a forecast summary is drawn from.
var Summaries = [...]string{
	"Freezing", "Bracing", "Chilly", "Cool", "Mild",
	"Warm", "Balmy", "Hot", "Sweltering", "Scorching",
}

// Forecast is one day of synthetic weather.
type Forecast struct {
	Date         time.Time
	TemperatureC int
	Summary      string
}

// TemperatureF approximates the Fahrenheit temperature as
// 32 + trunc(C / 0.5556). It is not the exact C*9/5+32 conversion and can
// differ from it by one degree.
func (f Forecast) TemperatureF() int {
	return 32 + int(float64(f.TemperatureC)/0.5556)
}

type forecastJSON struct {
	Date         string `json:"date"`
	TemperatureC int    `json:"temperatureC"`
	TemperatureF int    `json:"temperatureF"`
	Summary      string `json:"summary"`
}

// MarshalJSON encodes the forecast with a calendar date and the derived
// Fahrenheit temperature.
func (f Forecast) MarshalJSON() ([]byte, error) {
	return json.Marshal(forecastJSON{
		Date:         f.Date.Format(time.DateOnly),
		TemperatureC: f.TemperatureC,
		TemperatureF: f.TemperatureF(),
		Summary:      f.Summary,
	})
}

// Generate returns Days forecasts for the calendar days following today.
// All randomness comes from rng, so a seeded source yields a fixed result.
func Generate(rng *rand.Rand, today time.Time) []Forecast {
	y, m, d := today.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, today.Location())

	out := make([]Forecast, Days)
	for i := range out {
		out[i] = Forecast{
			Date:         start.AddDate(0, 0, i+1),
			TemperatureC: MinTemperatureC + rng.IntN(MaxTemperatureC-MinTemperatureC),
			Summary:      Summaries[rng.IntN(len(Summaries))],
		}
	}
	return out
}

// NewSource returns a random generator seeded from the runtime's entropy.
func NewSource() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}
