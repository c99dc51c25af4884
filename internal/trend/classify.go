// Package trend derives direction labels and rates of change from glucose history
package trend

import (
	"math"

	"github.com/mrcode/glucose-widget/internal/models"
)

const (
	// MinSamples is the number of values Classify consults
	MinSamples = 6

	sensorReadIntervalMinutes = 5
)

// tier holds the per-minute and per-window magnitudes of one arrow class
type tier struct {
	up, down  string
	perMinute float64
	window    float64
}

// Checked from the steepest arrow down; the first match wins.
var tiers = []tier{
	{models.DirectionDoubleUp, models.DirectionDoubleDown, 4, 90},
	{models.DirectionSingleUp, models.DirectionSingleDown, 2, 60},
	{models.DirectionFortyFiveUp, models.DirectionFortyFiveDown, 1, 30},
}

// Classify labels the newest-first values with a trend direction.
// It never fails: short or non-finite input yields NOT COMPUTABLE.
func Classify(values []float64) string {
	if len(values) < MinSamples {
		return models.DirectionNotComputable
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return models.DirectionNotComputable
		}
	}

	var total float64
	changes := make([]float64, MinSamples-1)
	for i := range changes {
		changes[i] = values[i] - values[i+1]
		total += changes[i]
	}
	lastMinute := changes[0] / sensorReadIntervalMinutes

	for _, t := range tiers {
		switch {
		case lastMinute > t.perMinute || total > t.window:
			return t.up
		case lastMinute < -t.perMinute || total < -t.window:
			return t.down
		}
	}

	return models.DirectionFlat
}
