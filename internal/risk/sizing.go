// Package risk converts account state and volatility into order sizing.
package risk

import (
	"math"

	apperrors "alligator-trader/internal/errors"
	"alligator-trader/internal/models"
)

// Sizer computes position volume and protective levels from account balance
// and current volatility.
type Sizer struct {
	RiskPercent         float64 // percent of balance risked per trade
	RewardRatio         float64 // take-profit distance as a multiple of stop distance
	ATRStopMultiplier   float64 // stop distance = ATR * multiplier when > 0
	FixedStopDollars    float64 // fixed stop distance, used when ATRStopMultiplier <= 0
	MaxNotionalFraction float64 // cap on volume*entry as a fraction of balance, <= 0 disables
}

// Sizing is the fully resolved order size for one trade.
type Sizing struct {
	Volume       float64
	StopDistance float64
	StopLoss     float64
	TakeProfit   float64
	RiskAmount   float64
}

// Size computes the trade volume and SL/TP levels for an entry at the given
// price. Volume is rounded to the lot step and clamped to the symbol's lot
// range; the notional cap is applied before rounding.
func (s *Sizer) Size(balance, entry, atr float64, dir models.Direction, constraints *models.SymbolConstraints) (*Sizing, error) {
	if balance <= 0 {
		return nil, apperrors.NewRiskError("balance", balance, 0, "balance must be positive")
	}
	if entry <= 0 {
		return nil, apperrors.NewRiskError("entry_price", entry, 0, "entry price must be positive")
	}

	stopDistance := s.stopDistance(atr)
	if stopDistance <= 0 {
		return nil, apperrors.NewRiskError("stop_distance", stopDistance, 0, "stop distance resolved to zero")
	}

	riskAmount := balance * s.RiskPercent / 100
	volume := riskAmount / stopDistance

	// Notional cap keeps a tight stop from producing an outsized position.
	if s.MaxNotionalFraction > 0 {
		maxVolume := balance * s.MaxNotionalFraction / entry
		if volume > maxVolume {
			volume = maxVolume
		}
	}

	volume = roundToStep(volume, constraints.LotStep)
	if volume < constraints.MinLot {
		volume = constraints.MinLot
	}
	if volume > constraints.MaxLot {
		volume = constraints.MaxLot
	}

	// Clamping and rounding change the size, so the risk actually taken is
	// derived from the final volume rather than the percent target.
	riskAmount = volume * stopDistance

	stopLoss, takeProfit := s.levels(entry, stopDistance, dir)

	return &Sizing{
		Volume:       volume,
		StopDistance: stopDistance,
		StopLoss:     stopLoss,
		TakeProfit:   takeProfit,
		RiskAmount:   riskAmount,
	}, nil
}

// stopDistance resolves the stop distance in price units. The ATR-based
// distance wins when a multiplier is configured.
func (s *Sizer) stopDistance(atr float64) float64 {
	if s.ATRStopMultiplier > 0 && atr > 0 {
		return atr * s.ATRStopMultiplier
	}
	return s.FixedStopDollars
}

// levels derives SL and TP from the entry. The take-profit distance is
// anchored to the actual stop distance so the reward ratio holds even when
// the stop was widened.
func (s *Sizer) levels(entry, stopDistance float64, dir models.Direction) (float64, float64) {
	tpDistance := stopDistance * s.RewardRatio
	if dir == models.DirectionBearish {
		return entry + stopDistance, entry - tpDistance
	}
	return entry - stopDistance, entry + tpDistance
}

// roundToStep rounds volume to the nearest multiple of step, half away
// from zero.
func roundToStep(volume, step float64) float64 {
	if step <= 0 {
		return volume
	}
	return math.Round(volume/step) * step
}
