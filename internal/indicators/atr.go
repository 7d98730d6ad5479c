package indicators

import (
	"fmt"

	"alligator-trader/internal/models"
)

// ATR calculates the Average True Range, the volatility measure that scales
// stop distances and breakout thresholds.
type ATR struct {
	period int
}

// NewATR creates a new ATR indicator.
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

func (a *ATR) Name() string {
	return fmt.Sprintf("ATR_%d", a.period)
}

// RequiredBars is the minimum history for a seeded current value.
func (a *ATR) RequiredBars() int {
	return a.period + 1
}

// Calculate computes ATR over the candle series (oldest-first).
func (a *ATR) Calculate(candles []models.Candle) ([]float64, error) {
	if a.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < a.RequiredBars() {
		return nil, ErrInsufficientData
	}

	n := len(candles)
	result := make([]float64, n)
	tr := make([]float64, n)

	// First TR is just high - low
	tr[0] = candles[0].High - candles[0].Low

	for i := 1; i < n; i++ {
		tr[i] = trueRange(candles[i], candles[i-1])
	}

	// First ATR is SMA of TR
	result[a.period-1] = mean(tr[:a.period])

	// Subsequent ATR using Wilder smoothing
	for i := a.period; i < n; i++ {
		result[i] = (result[i-1]*float64(a.period-1) + tr[i]) / float64(a.period)
	}

	return result, nil
}

// Current computes the ATR value at the newest bar.
func (a *ATR) Current(candles []models.Candle) (float64, error) {
	values, err := a.Calculate(candles)
	if err != nil {
		return 0, err
	}
	return values[len(values)-1], nil
}
