package indicators

import (
	"fmt"

	"alligator-trader/internal/models"
)

// ADX recomputes the Average Directional Index from raw OHLC independently of
// any platform-provided buffer, so the values stay reproducible against a
// reference implementation of the same recurrence.
//
// Candles are oldest-first; the "current" value is the last element. All
// smoothing uses Wilder's factor 1/period, not the conventional EMA factor
// 2/(period+1).
type ADX struct {
	period       int
	smoothPeriod int
}

// ADXResult holds the computed line buffers, aligned to the input candles.
type ADXResult struct {
	ADX     []float64
	PlusDI  []float64
	MinusDI []float64
}

// NewADX creates a new ADX indicator. period smooths TR and the directional
// movements, smoothPeriod smooths DX into ADX.
func NewADX(period, smoothPeriod int) *ADX {
	return &ADX{period: period, smoothPeriod: smoothPeriod}
}

func (a *ADX) Name() string {
	return fmt.Sprintf("ADX_%d_%d", a.period, a.smoothPeriod)
}

// RequiredBars is the minimum history for a seeded current value: one bar of
// lead-in for the first TR/DM, the TR/DM seed window, and the DX seed window.
func (a *ADX) RequiredBars() int {
	return a.period + a.smoothPeriod + 1
}

// Calculate computes ADX, +DI and -DI over the candle series.
func (a *ADX) Calculate(candles []models.Candle) (*ADXResult, error) {
	if a.period <= 0 || a.smoothPeriod <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < a.RequiredBars() {
		return nil, ErrInsufficientData
	}

	n := len(candles)
	tr := make([]float64, n)
	plusDM := make([]float64, n)
	minusDM := make([]float64, n)

	// Raw TR and directional movement. Index 0 has no predecessor.
	for i := 1; i < n; i++ {
		upMove := candles[i].High - candles[i-1].High
		downMove := candles[i-1].Low - candles[i].Low

		if upMove > downMove && upMove > 0 {
			plusDM[i] = upMove
		}
		if downMove > upMove && downMove > 0 {
			minusDM[i] = downMove
		}
		tr[i] = trueRange(candles[i], candles[i-1])
	}

	// Wilder smoothing: seed with the simple average of the first period raw
	// values, then s[i] = s[i-1] - s[i-1]/period + raw[i].
	seedIdx := a.period // raw values exist from index 1
	smoothTR := wilderRunning(tr, seedIdx, a.period)
	smoothPlusDM := wilderRunning(plusDM, seedIdx, a.period)
	smoothMinusDM := wilderRunning(minusDM, seedIdx, a.period)

	plusDI := make([]float64, n)
	minusDI := make([]float64, n)
	dx := make([]float64, n)

	for i := seedIdx; i < n; i++ {
		if smoothTR[i] != 0 {
			plusDI[i] = 100 * smoothPlusDM[i] / smoothTR[i]
			minusDI[i] = 100 * smoothMinusDM[i] / smoothTR[i]
		}
		diSum := plusDI[i] + minusDI[i]
		if diSum != 0 {
			dx[i] = 100 * abs(plusDI[i]-minusDI[i]) / diSum
		}
	}

	// ADX: seed with the simple average of the first smoothPeriod DX values,
	// then Wilder-average DX.
	adx := make([]float64, n)
	adxSeedIdx := seedIdx + a.smoothPeriod - 1
	adx[adxSeedIdx] = mean(dx[seedIdx : adxSeedIdx+1])
	for i := adxSeedIdx + 1; i < n; i++ {
		adx[i] = (adx[i-1]*float64(a.smoothPeriod-1) + dx[i]) / float64(a.smoothPeriod)
	}

	return &ADXResult{ADX: adx, PlusDI: plusDI, MinusDI: minusDI}, nil
}

// Current returns the newest seeded ADX value.
func (r *ADXResult) Current() float64 {
	return r.ADX[len(r.ADX)-1]
}

// wilderRunning seeds the smoothed series at seedIdx with the simple average
// of values[seedIdx-period+1 : seedIdx+1] and continues with the Wilder
// running-sum recurrence.
func wilderRunning(values []float64, seedIdx, period int) []float64 {
	out := make([]float64, len(values))
	out[seedIdx] = mean(values[seedIdx-period+1 : seedIdx+1])
	for i := seedIdx + 1; i < len(values); i++ {
		out[i] = out[i-1] - out[i-1]/float64(period) + values[i]
	}
	return out
}
