package indicators

import (
	"math"
	"time"
)

// Slope angles are timeframe- and scale-independent: the price change is
// taken as a percentage of the starting value, normalized to percent per
// hour, and converted to degrees with atan. The same formula serves line
// slopes (lookback measured in bars) and breakout slopes (elapsed wall-clock
// time since the crossing), so thresholds stay comparable across timeframes.

// SlopeAngle returns the signed slope angle in degrees for a move from
// oldValue to newValue over the elapsed duration.
func SlopeAngle(oldValue, newValue float64, elapsed time.Duration) float64 {
	if oldValue == 0 || elapsed <= 0 {
		return 0
	}
	pct := (newValue - oldValue) / oldValue * 100
	perHour := pct / elapsed.Hours()
	return math.Atan(perHour) * 180 / math.Pi
}

// SlopeAngleBars returns the slope angle over a lookback of whole bars.
func SlopeAngleBars(oldValue, newValue float64, bars int, barDuration time.Duration) float64 {
	if bars <= 0 {
		return 0
	}
	return SlopeAngle(oldValue, newValue, time.Duration(bars)*barDuration)
}
