package chart

import (
	"fmt"
	"math"
	"strconv"
)

var numberUnits = []string{"K", "M", "B"}

// FormatNumber abbreviates values of magnitude 1000 and above (1.5K, 2.3M,
// 1.0B). Smaller values are printed as they are.
func FormatNumber(v float64) string {
	if math.Abs(v) < 1e3 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	scaled := v / 1e3
	unit := 0
	// 999950 rounds to 1000.0K, which reads as 1.0M.
	for unit < len(numberUnits)-1 && math.Abs(roundTenth(scaled)) >= 1e3 {
		scaled /= 1e3
		unit++
	}
	return fmt.Sprintf("%.1f%s", roundTenth(scaled), numberUnits[unit])
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
