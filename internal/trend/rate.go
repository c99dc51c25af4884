package trend

import (
	"math"

	"github.com/mrcode/glucose-widget/internal/models"
)

const rateWindowMs = 5 * 60 * 1000

// RateOfChange returns the change of the newest reading against the reading
// closest to five minutes earlier, normalised to value units per 5 minutes and
// rounded to two decimals. Readings must be newest first. Degenerate input
// (fewer than two readings, coinciding timestamps) yields 0.
func RateOfChange(readings []models.Reading) float64 {
	if len(readings) < 2 {
		return 0
	}

	latest := readings[0]
	target := latest.Timestamp - rateWindowMs

	closest := 0
	best := int64(math.MaxInt64)
	for i, r := range readings {
		if d := absInt64(r.Timestamp - target); d < best {
			best = d
			closest = i
		}
	}

	if latest.Timestamp-readings[closest].Timestamp <= 0 {
		closest++
	}
	if closest >= len(readings) {
		return 0
	}

	deltaTimeMs := latest.Timestamp - readings[closest].Timestamp
	if deltaTimeMs == 0 {
		return 0
	}

	delta := (latest.Value - readings[closest].Value) / (float64(deltaTimeMs) / rateWindowMs)
	// Halves round towards positive infinity.
	rounded := math.Floor(delta*100+0.5) / 100
	if rounded == 0 {
		return 0
	}
	return rounded
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
