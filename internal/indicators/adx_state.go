package indicators

import (
	"alligator-trader/internal/models"
)

// AdxState is the streaming form of the ADX engine: the minimal recurrence
// memory for Wilder's method. After the seed windows fill, each new bar is an
// O(1) update — no history re-scan.
type AdxState struct {
	period       int
	smoothPeriod int

	hasPrev  bool
	prevBar  models.Candle
	seen     int // raw TR/DM samples seen
	seedTR   float64
	seedPDM  float64
	seedMDM  float64
	smTR     float64
	smPDM    float64
	smMDM    float64
	dxSeen   int // DX samples seen
	dxSum    float64
	adx      float64
	plusDI   float64
	minusDI  float64
	adxReady bool
}

// NewAdxState creates an empty streaming ADX state.
func NewAdxState(period, smoothPeriod int) *AdxState {
	return &AdxState{period: period, smoothPeriod: smoothPeriod}
}

// Push feeds the next bar (oldest-first order). It returns the current ADX
// and directional lines, and ok=false until both seed windows have filled.
func (s *AdxState) Push(bar models.Candle) (adx, plusDI, minusDI float64, ok bool) {
	if !s.hasPrev {
		s.hasPrev = true
		s.prevBar = bar
		return 0, 0, 0, false
	}

	tr := trueRange(bar, s.prevBar)
	upMove := bar.High - s.prevBar.High
	downMove := s.prevBar.Low - bar.Low
	var pdm, mdm float64
	if upMove > downMove && upMove > 0 {
		pdm = upMove
	}
	if downMove > upMove && downMove > 0 {
		mdm = downMove
	}
	s.prevBar = bar
	s.seen++

	switch {
	case s.seen < s.period:
		s.seedTR += tr
		s.seedPDM += pdm
		s.seedMDM += mdm
		return 0, 0, 0, false
	case s.seen == s.period:
		// Seed: simple average over the first period raw values.
		s.smTR = (s.seedTR + tr) / float64(s.period)
		s.smPDM = (s.seedPDM + pdm) / float64(s.period)
		s.smMDM = (s.seedMDM + mdm) / float64(s.period)
	default:
		p := float64(s.period)
		s.smTR = s.smTR - s.smTR/p + tr
		s.smPDM = s.smPDM - s.smPDM/p + pdm
		s.smMDM = s.smMDM - s.smMDM/p + mdm
	}

	s.plusDI, s.minusDI = 0, 0
	if s.smTR != 0 {
		s.plusDI = 100 * s.smPDM / s.smTR
		s.minusDI = 100 * s.smMDM / s.smTR
	}
	var dx float64
	if diSum := s.plusDI + s.minusDI; diSum != 0 {
		dx = 100 * abs(s.plusDI-s.minusDI) / diSum
	}

	s.dxSeen++
	switch {
	case s.dxSeen < s.smoothPeriod:
		s.dxSum += dx
		return 0, s.plusDI, s.minusDI, false
	case s.dxSeen == s.smoothPeriod:
		s.adx = (s.dxSum + dx) / float64(s.smoothPeriod)
		s.adxReady = true
	default:
		sp := float64(s.smoothPeriod)
		s.adx = (s.adx*(sp-1) + dx) / sp
	}

	return s.adx, s.plusDI, s.minusDI, true
}

// Ready reports whether both seed windows have filled.
func (s *AdxState) Ready() bool {
	return s.adxReady
}

// Reset clears all recurrence memory.
func (s *AdxState) Reset() {
	*s = AdxState{period: s.period, smoothPeriod: s.smoothPeriod}
}
