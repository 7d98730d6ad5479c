package indicators

import (
	"fmt"

	"alligator-trader/internal/models"
)

// Alligator computes the three Williams Alligator lines: Jaw (slow), Teeth
// (medium) and Lips (fast). Each line is a smoothed moving average (Wilder
// smoothing of median price) displaced forward by its shift, so the value in
// effect at bar i is the SMMA computed shift bars earlier.
type Alligator struct {
	JawPeriod   int
	JawShift    int
	TeethPeriod int
	TeethShift  int
	LipsPeriod  int
	LipsShift   int
}

// AlligatorResult holds the three line buffers aligned to the input candles.
// Entries before a line's seed-plus-shift window are zero and must not be
// used; Ready reports the first usable index.
type AlligatorResult struct {
	Jaw   []float64
	Teeth []float64
	Lips  []float64
	first int
}

// NewAlligator creates an alligator with the classic 13/8, 8/5, 5/3 setup.
func NewAlligator() *Alligator {
	return &Alligator{
		JawPeriod: 13, JawShift: 8,
		TeethPeriod: 8, TeethShift: 5,
		LipsPeriod: 5, LipsShift: 3,
	}
}

func (a *Alligator) Name() string {
	return fmt.Sprintf("Alligator_%d.%d_%d.%d_%d.%d",
		a.JawPeriod, a.JawShift, a.TeethPeriod, a.TeethShift, a.LipsPeriod, a.LipsShift)
}

// RequiredBars is the minimum history for all three lines to be seeded and
// shifted into place at the newest bar.
func (a *Alligator) RequiredBars() int {
	need := a.JawPeriod + a.JawShift
	if n := a.TeethPeriod + a.TeethShift; n > need {
		need = n
	}
	if n := a.LipsPeriod + a.LipsShift; n > need {
		need = n
	}
	return need
}

// Calculate computes the three lines over the candle series (oldest-first).
func (a *Alligator) Calculate(candles []models.Candle) (*AlligatorResult, error) {
	if a.JawPeriod <= 0 || a.TeethPeriod <= 0 || a.LipsPeriod <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < a.RequiredBars() {
		return nil, ErrInsufficientData
	}

	median := medianPrices(candles)

	return &AlligatorResult{
		Jaw:   shiftForward(smma(median, a.JawPeriod), a.JawShift),
		Teeth: shiftForward(smma(median, a.TeethPeriod), a.TeethShift),
		Lips:  shiftForward(smma(median, a.LipsPeriod), a.LipsShift),
		first: a.RequiredBars() - 1,
	}, nil
}

// FirstUsable returns the first index at which all three lines are seeded.
func (r *AlligatorResult) FirstUsable() int {
	return r.first
}

// At returns the jaw, teeth and lips values in effect at index i.
func (r *AlligatorResult) At(i int) (jaw, teeth, lips float64) {
	return r.Jaw[i], r.Teeth[i], r.Lips[i]
}

// Current returns the line values at the newest bar.
func (r *AlligatorResult) Current() (jaw, teeth, lips float64) {
	return r.At(len(r.Jaw) - 1)
}

// smma computes the smoothed moving average: the first value is the simple
// average over period samples, then Wilder's recurrence with factor 1/period.
func smma(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) < period {
		return out
	}
	out[period-1] = mean(values[:period])
	p := float64(period)
	for i := period; i < len(values); i++ {
		out[i] = (out[i-1]*(p-1) + values[i]) / p
	}
	return out
}

// shiftForward displaces a series by shift bars: out[i] = in[i-shift].
func shiftForward(values []float64, shift int) []float64 {
	if shift <= 0 {
		return values
	}
	out := make([]float64, len(values))
	for i := shift; i < len(values); i++ {
		out[i] = values[i-shift]
	}
	return out
}
