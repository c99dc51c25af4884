package trend

import (
	"math"
	"slices"
	"testing"
	"time"

	"github.com/mrcode/glucose-widget/internal/models"
)

func reversed(values []float64) []float64 {
	out := slices.Clone(values)
	slices.Reverse(out)
	return out
}

func TestClassify(t *testing.T) {
	doubleLastMinute := []float64{170, 140, 130, 120, 110, 80}
	doubleWindow := []float64{180, 160, 140, 130, 110, 80}
	singleLastMinute := []float64{155, 140, 130, 120, 110, 95}
	singleWindow := []float64{160, 150, 135, 120, 105, 90}
	fortyFiveLastMinute := []float64{155, 149, 150, 150, 150, 144}
	fortyFiveWindow := []float64{130, 124, 118, 112, 96, 90}

	tests := []struct {
		name     string
		values   []float64
		expected string
	}{
		{"DoubleUp last minute", doubleLastMinute, models.DirectionDoubleUp},
		{"DoubleUp window", doubleWindow, models.DirectionDoubleUp},
		{"SingleUp last minute", singleLastMinute, models.DirectionSingleUp},
		{"SingleUp window", singleWindow, models.DirectionSingleUp},
		{"FortyFiveUp last minute", fortyFiveLastMinute, models.DirectionFortyFiveUp},
		{"FortyFiveUp window", fortyFiveWindow, models.DirectionFortyFiveUp},
		{"FortyFiveDown last minute", reversed(fortyFiveLastMinute), models.DirectionFortyFiveDown},
		{"FortyFiveDown window", reversed(fortyFiveWindow), models.DirectionFortyFiveDown},
		{"SingleDown last minute", reversed(singleLastMinute), models.DirectionSingleDown},
		{"SingleDown window", reversed(singleWindow), models.DirectionSingleDown},
		{"DoubleDown last minute", reversed(doubleLastMinute), models.DirectionDoubleDown},
		{"DoubleDown window", reversed(doubleWindow), models.DirectionDoubleDown},
		{"Flat", []float64{105, 100, 95, 100, 105, 100}, models.DirectionFlat},
		{"Only first six consulted", []float64{100, 100, 100, 100, 100, 100, 400}, models.DirectionFlat},
		{"Too short", []float64{100, 110, 120, 130, 140}, models.DirectionNotComputable},
		{"Empty", nil, models.DirectionNotComputable},
		{"NaN", []float64{100, 110, math.NaN(), 100, 100, 100}, models.DirectionNotComputable},
		{"Infinity", []float64{100, 110, math.Inf(1), 120, 130, 120}, models.DirectionNotComputable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := Classify(tt.values); result != tt.expected {
				t.Errorf("Classify(%v) = %s, want %s", tt.values, result, tt.expected)
			}
		})
	}
}

func readingsAt(now time.Time, points ...[2]float64) []models.Reading {
	out := make([]models.Reading, len(points))
	for i, p := range points {
		out[i] = models.Reading{
			Value:     p[0],
			Timestamp: now.Add(-time.Duration(p[1] * float64(time.Minute))).UnixMilli(),
		}
	}
	return out
}

func TestRateOfChange(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name     string
		readings []models.Reading
		expected float64
	}{
		{
			name:     "Rise over exactly five minutes",
			readings: readingsAt(now, [2]float64{90, 3}, [2]float64{80, 8}, [2]float64{80, 12}),
			expected: 10,
		},
		{
			name:     "Closest reading is not five minutes away",
			readings: readingsAt(now, [2]float64{80, 0}, [2]float64{90, 3}, [2]float64{80, 8}),
			expected: -16.67,
		},
		{
			name:     "Normalised over ten minutes",
			readings: readingsAt(now, [2]float64{100, 0}, [2]float64{80, 10}),
			expected: 10,
		},
		{
			name:     "No change",
			readings: readingsAt(now, [2]float64{80, 8}, [2]float64{80, 12}, [2]float64{80, 17}),
			expected: 0,
		},
		{
			name:     "Closest is the head itself",
			readings: readingsAt(now, [2]float64{120, 0}, [2]float64{100, 30}),
			expected: 3.33,
		},
		{
			name:     "Coinciding timestamps",
			readings: readingsAt(now, [2]float64{120, 0}, [2]float64{120, 0}, [2]float64{120, 0}),
			expected: 0,
		},
		{
			name:     "Single reading",
			readings: readingsAt(now, [2]float64{120, 0}),
			expected: 0,
		},
		{
			name:     "Empty",
			readings: nil,
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := RateOfChange(tt.readings); result != tt.expected {
				t.Errorf("RateOfChange() = %v, want %v", result, tt.expected)
			}
		})
	}
}
