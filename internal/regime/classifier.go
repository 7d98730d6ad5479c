// Package regime derives market regime flags from the alligator lines:
// sleeping (lines horizontal and close together), diverging, and bullish or
// bearish awake.
package regime

import (
	"time"

	"github.com/rs/zerolog"

	"alligator-trader/internal/indicators"
	"alligator-trader/internal/logging"
)

// Thresholds holds the classification thresholds.
type Thresholds struct {
	MaxLineSlopeDegrees    float64 // max |slope| for a line to count as horizontal
	MaxLineSpreadDollars   float64 // max pairwise distance for lines to count as close
	DivergenceSlopeDegrees float64 // min pairwise slope-angle difference for divergence
	MinMeaningfulSlope     float64 // min |slope| of at least one line for divergence
}

// Observation is one classification input: the current line values, the line
// values a short lookback ago, and the current price.
type Observation struct {
	Jaw, Teeth, Lips             float64
	PrevJaw, PrevTeeth, PrevLips float64
	Price                        float64
	LookbackBars                 int
	BarDuration                  time.Duration
	Time                         time.Time
}

// State holds the regime flags. Sleeping and awake are mutually exclusive.
type State struct {
	Sleeping     bool
	Horizontal   bool
	SleepStart   time.Time
	Diverging    bool
	BullishAwake bool
	BearishAwake bool
}

// Awake reports whether either awake flag is set.
func (s State) Awake() bool {
	return s.BullishAwake || s.BearishAwake
}

// SleepingFor returns how long the regime has been sleeping as of now.
func (s State) SleepingFor(now time.Time) time.Duration {
	if !s.Sleeping || s.SleepStart.IsZero() {
		return 0
	}
	return now.Sub(s.SleepStart)
}

// Classifier tracks regime state across ticks. Transitions are
// edge-triggered: side effects (logging, sleep-start capture) fire only on
// change, never on steady state.
type Classifier struct {
	thresholds Thresholds
	symbol     string
	logger     zerolog.Logger
	state      State
}

// NewClassifier creates a classifier with the given thresholds.
func NewClassifier(symbol string, t Thresholds, logger zerolog.Logger) *Classifier {
	return &Classifier{
		thresholds: t,
		symbol:     symbol,
		logger:     logging.WithSymbol(logger, symbol),
	}
}

// State returns the current regime state.
func (c *Classifier) State() State {
	return c.state
}

// Classify computes regime flags for an observation without mutating the
// classifier. Calling it twice with identical input yields identical flags.
func (c *Classifier) Classify(obs Observation) State {
	jawSlope := indicators.SlopeAngleBars(obs.PrevJaw, obs.Jaw, obs.LookbackBars, obs.BarDuration)
	teethSlope := indicators.SlopeAngleBars(obs.PrevTeeth, obs.Teeth, obs.LookbackBars, obs.BarDuration)
	lipsSlope := indicators.SlopeAngleBars(obs.PrevLips, obs.Lips, obs.LookbackBars, obs.BarDuration)

	horizontal := absf(jawSlope) <= c.thresholds.MaxLineSlopeDegrees &&
		absf(teethSlope) <= c.thresholds.MaxLineSlopeDegrees &&
		absf(lipsSlope) <= c.thresholds.MaxLineSlopeDegrees

	spread := maxf(absf(obs.Jaw-obs.Teeth), maxf(absf(obs.Teeth-obs.Lips), absf(obs.Jaw-obs.Lips)))
	closeBy := spread <= c.thresholds.MaxLineSpreadDollars

	sleeping := horizontal && closeBy

	// Divergence: at least one pairwise slope-angle difference beyond the
	// threshold, and at least one line moving at a meaningful slope, so
	// near-zero noise never classifies as divergence.
	maxDiff := maxf(absf(jawSlope-teethSlope), maxf(absf(teethSlope-lipsSlope), absf(jawSlope-lipsSlope)))
	maxSlope := maxf(absf(jawSlope), maxf(absf(teethSlope), absf(lipsSlope)))
	diverging := maxDiff >= c.thresholds.DivergenceSlopeDegrees &&
		maxSlope >= c.thresholds.MinMeaningfulSlope

	bullish := !closeBy && diverging &&
		obs.Price > obs.Lips && obs.Lips > obs.Teeth && obs.Teeth > obs.Jaw
	bearish := !closeBy && diverging &&
		obs.Price < obs.Lips && obs.Lips < obs.Teeth && obs.Teeth < obs.Jaw

	// Sleeping and awake are mutually exclusive; close lines veto awake
	// above, so only sleeping needs the guard here.
	if bullish || bearish {
		sleeping = false
	}

	return State{
		Sleeping:     sleeping,
		Horizontal:   horizontal,
		Diverging:    diverging,
		BullishAwake: bullish,
		BearishAwake: bearish,
	}
}

// Update classifies the observation and applies edge-triggered transitions.
func (c *Classifier) Update(obs Observation) State {
	next := c.Classify(obs)

	if next.Sleeping {
		if c.state.Sleeping {
			next.SleepStart = c.state.SleepStart
		} else {
			next.SleepStart = obs.Time
			logging.LogRegimeChange(c.logger, c.symbol, "sleeping")
		}
	} else if c.state.Sleeping {
		logging.LogRegimeChange(c.logger, c.symbol, "not_sleeping")
	}

	if next.BullishAwake && !c.state.BullishAwake {
		logging.LogRegimeChange(c.logger, c.symbol, "bullish_awake")
	}
	if next.BearishAwake && !c.state.BearishAwake {
		logging.LogRegimeChange(c.logger, c.symbol, "bearish_awake")
	}

	c.state = next
	return next
}

func absf(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
