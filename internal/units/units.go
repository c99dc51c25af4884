// Package units converts glucose concentrations between mg/dL and mmol/L
package units

import (
	"math"
	"strconv"
)

// MmolToMgdlRate is the mg/dL equivalent of 1 mmol/L
const MmolToMgdlRate = 18

// MgdlToMmol converts mg/dL to mmol/L rounded to one decimal place
func MgdlToMmol(mgdl float64) float64 {
	return roundTo(mgdl/MmolToMgdlRate, 1)
}

// MmolToMgdl converts mmol/L to mg/dL rounded to a whole number
func MmolToMgdl(mmol float64) float64 {
	return roundTo(mmol*MmolToMgdlRate, 0)
}

// FormatMmol renders a mmol/L value with exactly one decimal place
func FormatMmol(mmol float64) string {
	return strconv.FormatFloat(mmol, 'f', 1, 64)
}

// FormatMgdl renders a mg/dL value with the shortest exact representation
func FormatMgdl(mgdl float64) string {
	return strconv.FormatFloat(mgdl, 'f', -1, 64)
}

// Convert converts v to mmol/L when toMmol is set and back to mg/dL otherwise
func Convert(v float64, toMmol bool) float64 {
	if toMmol {
		return MgdlToMmol(v)
	}
	return MmolToMgdl(v)
}

// roundTo rounds half away from zero and folds negative zero into zero
func roundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	r := math.Round(v*p) / p
	if r == 0 {
		return 0
	}
	return r
}
