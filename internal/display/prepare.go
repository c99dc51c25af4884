// Package display turns the reading history into a render-ready record
package display

import (
	"errors"
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/mrcode/glucose-widget/internal/models"
	"github.com/mrcode/glucose-widget/internal/trend"
	"github.com/mrcode/glucose-widget/internal/units"
)

// AgeShowLimit is the largest age the widget prints
const AgeShowLimit = 999

// ErrEmptyHistory is returned when there is nothing to display
var ErrEmptyHistory = errors.New("no readings to display")

// Options control unit conversion and trend derivation
type Options struct {
	UnitsInMmol bool
	CalcTrend   bool
}

// Prepare builds the display record from a newest-first history
func Prepare(history []models.Reading, opts Options, now time.Time) (models.DisplayRecord, error) {
	if len(history) == 0 {
		return models.DisplayRecord{}, ErrEmptyHistory
	}

	latest := history[0]
	previous := latest
	if len(history) > 1 {
		previous = history[1]
	}

	record := models.DisplayRecord{
		Previous:    previous.Value,
		DeltaTimeMs: latest.Timestamp - previous.Timestamp,
		AgeMinutes:  int(math.Floor(float64(now.UnixMilli()-latest.Timestamp) / float64(time.Minute.Milliseconds()))),
		Delta:       formatDelta(trend.RateOfChange(history), opts.UnitsInMmol),
	}

	if opts.UnitsInMmol {
		record.Last = units.FormatMmol(units.MgdlToMmol(latest.Value))
	} else {
		record.Last = units.FormatMgdl(latest.Value)
	}

	if opts.CalcTrend {
		values := lo.Map(history, func(r models.Reading, _ int) float64 {
			return r.Value
		})
		record.Trend = trend.Classify(values)
	} else {
		record.Trend = latest.Direction
	}
	record.Direction = CharToEntity(DirectionToChar(record.Trend))

	return record, nil
}

// formatDelta renders a rate with an explicit sign for positive and zero values
func formatDelta(delta float64, inMmol bool) string {
	format := units.FormatMgdl
	zero := "0"
	if inMmol {
		delta = units.MgdlToMmol(delta)
		format = units.FormatMmol
		zero = "0.0"
	}

	switch {
	case delta > 0:
		return "+" + format(delta)
	case delta == 0:
		return "+" + zero
	default:
		return format(delta)
	}
}

// DirectionToChar returns the glyph for a trend label
func DirectionToChar(direction string) string {
	return models.DirectionGlyph(direction)
}

// CharToEntity encodes the first character of s as a numeric HTML entity
func CharToEntity(s string) string {
	if s == "" {
		return ""
	}
	r, _ := utf8.DecodeRuneInString(s)
	return fmt.Sprintf("&#%d;", r)
}

// FormatAge renders an age in minutes, capped at AgeShowLimit
func FormatAge(minutes int) string {
	if minutes > AgeShowLimit {
		minutes = AgeShowLimit
	}
	return fmt.Sprintf("%d", minutes)
}
