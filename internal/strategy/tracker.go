package strategy

import (
	"time"

	"alligator-trader/internal/indicators"
	"alligator-trader/internal/models"
)

// Line identifies one alligator line in the crossed bitset.
type Line uint8

const (
	LineLips  Line = 1 << iota // fast
	LineTeeth                  // medium
	LineJaw                    // slow, the reference line
)

const allLines = LineLips | LineTeeth | LineJaw

// BreakoutCriteria holds the validation thresholds for one breakout episode.
type BreakoutCriteria struct {
	MinSlopeDegrees         float64
	DistanceATRMultiplier   float64
	MaxWindow               time.Duration
	RequireTrendConsistency bool
	TrendBars               int
}

// BreakoutTracker accumulates evidence across ticks that a genuine breakout
// is underway. One instance covers one episode; every reset trigger returns
// it to the zero state with no partial credit carried over.
type BreakoutTracker struct {
	criteria BreakoutCriteria

	direction  models.Direction
	startTime  time.Time
	startPrice float64
	startATR   float64 // ATR captured at episode start, not current ATR
	startJaw   float64
	crossed    Line

	// Recent price samples, most recent last, including the live tick.
	prices []float64
}

// NewBreakoutTracker creates an empty tracker.
func NewBreakoutTracker(criteria BreakoutCriteria) *BreakoutTracker {
	if criteria.TrendBars <= 0 {
		criteria.TrendBars = 5
	}
	return &BreakoutTracker{criteria: criteria}
}

// Active reports whether a breakout episode is in progress.
func (bt *BreakoutTracker) Active() bool {
	return bt.direction != models.DirectionNone
}

// Direction returns the episode direction.
func (bt *BreakoutTracker) Direction() models.Direction {
	return bt.direction
}

// StartPrice returns the price at which the episode began.
func (bt *BreakoutTracker) StartPrice() float64 {
	return bt.startPrice
}

// StartATR returns the ATR captured when the episode began.
func (bt *BreakoutTracker) StartATR() float64 {
	return bt.startATR
}

// Crossed reports whether the given line has been crossed this episode.
func (bt *BreakoutTracker) Crossed(l Line) bool {
	return bt.crossed&l != 0
}

// Reset returns the tracker to its zero state. No stale start price, ATR or
// crossed line survives into the next episode.
func (bt *BreakoutTracker) Reset() {
	bt.direction = models.DirectionNone
	bt.startTime = time.Time{}
	bt.startPrice = 0
	bt.startATR = 0
	bt.startJaw = 0
	bt.crossed = 0
	bt.prices = bt.prices[:0]
}

// Observe feeds one tick while the engine is monitoring. It starts an
// episode when price moves to either trigger side of the jaw, accumulates
// line crossings and price history, and resets on direction reversal or
// window expiry. Returns false when the tick caused a reset.
func (bt *BreakoutTracker) Observe(now time.Time, price, jaw, teeth, lips, atr float64) bool {
	if !bt.Active() {
		switch {
		case price > jaw:
			bt.begin(models.DirectionBullish, now, price, atr, jaw)
		case price < jaw:
			bt.begin(models.DirectionBearish, now, price, atr, jaw)
		default:
			return true
		}
	}

	// Wrong side of the reference line, or reversal: full reset.
	if bt.direction == models.DirectionBullish && price <= jaw {
		bt.Reset()
		return false
	}
	if bt.direction == models.DirectionBearish && price >= jaw {
		bt.Reset()
		return false
	}

	// Signal expired: exceeded the window without validating.
	if bt.criteria.MaxWindow > 0 && now.Sub(bt.startTime) > bt.criteria.MaxWindow {
		bt.Reset()
		return false
	}

	bt.markCrossings(price, jaw, teeth, lips)
	bt.pushPrice(price)
	return true
}

func (bt *BreakoutTracker) begin(dir models.Direction, now time.Time, price, atr, jaw float64) {
	bt.direction = dir
	bt.startTime = now
	bt.startPrice = price
	bt.startATR = atr
	bt.startJaw = jaw
}

// markCrossings marks lines the price has passed in the trigger direction.
// The bitset is monotonic: a line is marked once per episode and never
// unmarked except by a full reset.
func (bt *BreakoutTracker) markCrossings(price, jaw, teeth, lips float64) {
	if bt.direction == models.DirectionBullish {
		if price > lips {
			bt.crossed |= LineLips
		}
		if price > teeth {
			bt.crossed |= LineTeeth
		}
		if price > jaw {
			bt.crossed |= LineJaw
		}
		return
	}
	if price < lips {
		bt.crossed |= LineLips
	}
	if price < teeth {
		bt.crossed |= LineTeeth
	}
	if price < jaw {
		bt.crossed |= LineJaw
	}
}

func (bt *BreakoutTracker) pushPrice(price float64) {
	bt.prices = append(bt.prices, price)
	if n := bt.criteria.TrendBars + 1; len(bt.prices) > n {
		bt.prices = bt.prices[len(bt.prices)-n:]
	}
}

// SlopeAngle returns the breakout slope in degrees from the episode origin
// to the given price at the given time.
func (bt *BreakoutTracker) SlopeAngle(now time.Time, price float64) float64 {
	if !bt.Active() {
		return 0
	}
	return indicators.SlopeAngle(bt.startPrice, price, now.Sub(bt.startTime))
}

// trendConsistent reports whether the majority of recent price moves,
// including the live sample, point in the trigger direction.
func (bt *BreakoutTracker) trendConsistent() bool {
	if len(bt.prices) < 2 {
		return false
	}
	var with, against int
	for i := 1; i < len(bt.prices); i++ {
		diff := bt.prices[i] - bt.prices[i-1]
		switch {
		case diff > 0 && bt.direction == models.DirectionBullish,
			diff < 0 && bt.direction == models.DirectionBearish:
			with++
		case diff != 0:
			against++
		}
	}
	return with > against
}

// Validate reports whether the episode satisfies every trigger criterion
// simultaneously: all lines crossed, minimum slope from the origin, minimum
// distance from the jaw scaled by the start ATR, and (when enabled) trend
// consistency, all inside the time window.
func (bt *BreakoutTracker) Validate(now time.Time, price, jaw float64) bool {
	if !bt.Active() {
		return false
	}
	if bt.criteria.MaxWindow > 0 && now.Sub(bt.startTime) > bt.criteria.MaxWindow {
		return false
	}
	if bt.crossed != allLines {
		return false
	}

	slope := bt.SlopeAngle(now, price)
	if bt.direction == models.DirectionBearish {
		slope = -slope
	}
	if slope < bt.criteria.MinSlopeDegrees {
		return false
	}

	distance := price - jaw
	if bt.direction == models.DirectionBearish {
		distance = jaw - price
	}
	if distance < bt.startATR*bt.criteria.DistanceATRMultiplier {
		return false
	}

	if bt.criteria.RequireTrendConsistency && !bt.trendConsistent() {
		return false
	}
	return true
}
