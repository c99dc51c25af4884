// Package models contains data structures used throughout the application
package models

import (
	"math"
	"time"
)

// Trend direction labels
const (
	DirectionNone           = "NONE"
	DirectionTripleUp       = "TripleUp"
	DirectionDoubleUp       = "DoubleUp"
	DirectionSingleUp       = "SingleUp"
	DirectionFortyFiveUp    = "FortyFiveUp"
	DirectionFlat           = "Flat"
	DirectionFortyFiveDown  = "FortyFiveDown"
	DirectionSingleDown     = "SingleDown"
	DirectionDoubleDown     = "DoubleDown"
	DirectionTripleDown     = "TripleDown"
	DirectionNotComputable  = "NOT COMPUTABLE"
	DirectionRateOutOfRange = "RATE OUT OF RANGE"
	directionFallbackGlyph  = "-"
)

var directionGlyphs = map[string]string{
	DirectionNone:           "⇼",
	DirectionTripleUp:       "⤊",
	DirectionDoubleUp:       "⇈",
	DirectionSingleUp:       "↑",
	DirectionFortyFiveUp:    "↗",
	DirectionFlat:           "→",
	DirectionFortyFiveDown:  "↘",
	DirectionSingleDown:     "↓",
	DirectionDoubleDown:     "⇊",
	DirectionTripleDown:     "⤋",
	DirectionNotComputable:  "-",
	DirectionRateOutOfRange: "⇕",
}

// DirectionGlyph returns the arrow character for a direction label
func DirectionGlyph(direction string) string {
	if glyph, ok := directionGlyphs[direction]; ok {
		return glyph
	}
	return directionFallbackGlyph
}

// Reading is a single glucose sample
type Reading struct {
	Value     float64 `json:"sgv"`  // Sensor glucose value in mg/dL
	Timestamp int64   `json:"date"` // Unix timestamp in milliseconds
	Direction string  `json:"direction,omitempty"`
}

// Time returns the time of the reading
func (r Reading) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// Valid reports whether the reading carries a finite value and a timestamp
func (r Reading) Valid() bool {
	return !math.IsNaN(r.Value) && !math.IsInf(r.Value, 0) && r.Timestamp != 0
}

// DisplayRecord is the render-ready view of the history head
type DisplayRecord struct {
	Last        string  `json:"last"`      // Unit formatted
	Previous    float64 `json:"prev"`      // mg/dL
	DeltaTimeMs int64   `json:"deltaTime"` // Between the two newest readings
	AgeMinutes  int     `json:"age"`       // Minutes since the newest reading
	Delta       string  `json:"delta"`     // Signed, unit formatted, per 5 minutes
	Direction   string  `json:"direction"` // HTML entity of the trend glyph
	Trend       string  `json:"trend"`     // Trend label the entity was derived from
}

// Panel states, mirroring the widget CSS modifiers
const (
	StateOK       = "ok"
	StateWarning  = "warning"
	StateCritical = "critical"
	StateFrozen   = "frozen"
)
