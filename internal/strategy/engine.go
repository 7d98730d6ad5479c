// Package strategy implements the alligator breakout trading engine: the
// tick-driven phase machine that ties regime classification, breakout
// tracking, risk sizing, and order execution together.
package strategy

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"alligator-trader/internal/broker"
	"alligator-trader/internal/config"
	apperrors "alligator-trader/internal/errors"
	"alligator-trader/internal/execution"
	"alligator-trader/internal/indicators"
	"alligator-trader/internal/logging"
	"alligator-trader/internal/models"
	"alligator-trader/internal/regime"
	"alligator-trader/internal/risk"
)

// Engine drives one symbol through the trading phases. It is single
// threaded: OnTick must be called from one goroutine.
type Engine struct {
	cfg    *config.Config
	broker broker.Broker
	logger zerolog.Logger

	classifier *regime.Classifier
	tracker    *BreakoutTracker
	exec       *execution.Manager
	sizer      *risk.Sizer

	alligator *indicators.Alligator
	atr       *indicators.ATR
	adx       *indicators.ADX

	phase      Phase
	phaseSince time.Time

	cooldownUntil time.Time
	warnedSymbol  bool
}

// NewEngine wires the engine from configuration and a broker.
func NewEngine(cfg *config.Config, b broker.Broker, logger zerolog.Logger) *Engine {
	logger = logging.WithSymbol(logger, cfg.Strategy.Symbol)

	alligator := &indicators.Alligator{
		JawPeriod:   cfg.Strategy.JawPeriod,
		JawShift:    cfg.Strategy.JawShift,
		TeethPeriod: cfg.Strategy.TeethPeriod,
		TeethShift:  cfg.Strategy.TeethShift,
		LipsPeriod:  cfg.Strategy.LipsPeriod,
		LipsShift:   cfg.Strategy.LipsShift,
	}

	classifier := regime.NewClassifier(cfg.Strategy.Symbol, regime.Thresholds{
		MaxLineSlopeDegrees:    cfg.Signal.MaxLineSlopeDegrees,
		MaxLineSpreadDollars:   cfg.Signal.MaxLineSpreadDollars,
		DivergenceSlopeDegrees: cfg.Signal.DivergenceSlopeDegrees,
		MinMeaningfulSlope:     cfg.Signal.MinMeaningfulSlope,
	}, logger)

	tracker := NewBreakoutTracker(BreakoutCriteria{
		MinSlopeDegrees:         cfg.Signal.MinBreakoutSlopeDegrees,
		DistanceATRMultiplier:   cfg.Signal.MinATRBreakoutDistance,
		MaxWindow:               time.Duration(cfg.Signal.MaxBreakoutMinutes) * time.Minute,
		RequireTrendConsistency: cfg.Signal.RequireTrendConsistency,
		TrendBars:               cfg.Signal.TrendConsistencyBars,
	})

	exec := execution.NewManager(execution.ManagerConfig{
		Broker:          b,
		Logger:          logger,
		Symbol:          cfg.Strategy.Symbol,
		PrimaryFillMode: models.FillModeFOK,
	})

	sizer := &risk.Sizer{
		RiskPercent:         cfg.Risk.RiskPercent,
		RewardRatio:         cfg.Risk.RewardRatio,
		ATRStopMultiplier:   cfg.Risk.ATRStopMultiplier,
		FixedStopDollars:    cfg.Risk.FixedStopDollars,
		MaxNotionalFraction: cfg.Risk.MaxNotionalFraction,
	}

	return &Engine{
		cfg:        cfg,
		broker:     b,
		logger:     logger,
		classifier: classifier,
		tracker:    tracker,
		exec:       exec,
		sizer:      sizer,
		alligator:  alligator,
		atr:        indicators.NewATR(cfg.Strategy.ATRPeriod),
		adx:        indicators.NewADX(cfg.Strategy.ADXPeriod, cfg.Strategy.ADXSmoothPeriod),
		phase:      PhaseSleeping,
	}
}

// Phase returns the current phase.
func (e *Engine) Phase() Phase {
	return e.phase
}

// snapshot is the per-tick indicator view the phase machine runs on.
type snapshot struct {
	price float64
	time  time.Time

	jaw, teeth, lips             float64
	prevJaw, prevTeeth, prevLips float64
	atr                          float64
	adx                          float64

	regime regime.State
}

// RequiredBars returns the history depth the engine fetches each tick.
func (e *Engine) RequiredBars() int {
	n := e.alligator.RequiredBars()
	if r := e.atr.RequiredBars(); r > n {
		n = r
	}
	if r := e.adx.RequiredBars(); r > n {
		n = r
	}
	return n + e.cfg.Signal.SlopeLookbackBars + e.cfg.Strategy.HistoryMargin
}

// OnTick advances the engine by one market data event. A tick that cannot
// produce a full indicator snapshot is skipped without mutating any state.
func (e *Engine) OnTick(ctx context.Context, tick models.Tick) error {
	if e.exec.Counter().Observe(tick.Timestamp) {
		e.logger.Info().Msg("New trading day, daily trade counter reset")
	}

	if tick.Symbol != e.cfg.Strategy.Symbol {
		if !e.warnedSymbol {
			e.logger.Warn().
				Str("tick_symbol", tick.Symbol).
				Str("configured_symbol", e.cfg.Strategy.Symbol).
				Msg("Tick symbol does not match configuration, ignoring feed")
			e.warnedSymbol = true
		}
		return nil
	}

	snap, err := e.buildSnapshot(ctx, tick)
	if err != nil {
		logging.LogSkippedTick(e.logger, tick.Symbol, err.Error())
		return nil
	}

	snap.regime = e.classifier.Update(regimeObservation(snap, e.cfg, tick))

	return e.step(ctx, snap)
}

// buildSnapshot fetches history and computes every indicator for one tick.
func (e *Engine) buildSnapshot(ctx context.Context, tick models.Tick) (*snapshot, error) {
	required := e.RequiredBars()
	bars, err := e.broker.GetBars(ctx, e.cfg.Strategy.Symbol, e.cfg.Strategy.Timeframe, required)
	if err != nil {
		return nil, apperrors.Wrap(err, "fetching bars")
	}
	if len(bars) < required {
		return nil, apperrors.ErrInsufficientHistory
	}

	lines, err := e.alligator.Calculate(bars)
	if err != nil {
		return nil, apperrors.Wrap(err, "alligator")
	}
	atrValue, err := e.atr.Current(bars)
	if err != nil {
		return nil, apperrors.Wrap(err, "atr")
	}
	adxResult, err := e.adx.Calculate(bars)
	if err != nil {
		return nil, apperrors.Wrap(err, "adx")
	}

	jaw, teeth, lips := lines.Current()

	// Line values a short lookback ago feed the slope calculation.
	prevIdx := len(bars) - 1 - e.cfg.Signal.SlopeLookbackBars
	if prevIdx < lines.FirstUsable() {
		prevIdx = lines.FirstUsable()
	}
	prevJaw, prevTeeth, prevLips := lines.At(prevIdx)

	return &snapshot{
		price:     tick.Mid(),
		time:      tick.Timestamp,
		jaw:       jaw,
		teeth:     teeth,
		lips:      lips,
		prevJaw:   prevJaw,
		prevTeeth: prevTeeth,
		prevLips:  prevLips,
		atr:       atrValue,
		adx:       adxResult.Current(),
	}, nil
}

func regimeObservation(snap *snapshot, cfg *config.Config, tick models.Tick) regime.Observation {
	return regime.Observation{
		Jaw:          snap.jaw,
		Teeth:        snap.teeth,
		Lips:         snap.lips,
		PrevJaw:      snap.prevJaw,
		PrevTeeth:    snap.prevTeeth,
		PrevLips:     snap.prevLips,
		Price:        snap.price,
		LookbackBars: cfg.Signal.SlopeLookbackBars,
		BarDuration:  cfg.BarDuration(),
		Time:         tick.Timestamp,
	}
}

// step runs the phase transition table against one snapshot.
func (e *Engine) step(ctx context.Context, snap *snapshot) error {
	switch e.phase {
	case PhaseSleeping:
		return e.stepSleeping(snap)
	case PhaseReadyToMonitor:
		return e.stepReadyToMonitor(snap)
	case PhaseMonitoringBreakout:
		return e.stepMonitoring(ctx, snap)
	case PhaseTradeExecuted:
		return e.stepTradeExecuted(ctx, snap)
	case PhasePositionActive:
		return e.stepPositionActive(ctx, snap)
	case PhaseWaitingForSleep:
		return e.stepWaitingForSleep(snap)
	}
	return nil
}

func (e *Engine) stepSleeping(snap *snapshot) error {
	if !snap.regime.Sleeping {
		return nil
	}
	minSleep := time.Duration(e.cfg.Signal.MinSleepingMinutes) * time.Minute
	if snap.regime.SleepingFor(snap.time) < minSleep {
		return nil
	}
	if snap.time.Before(e.cooldownUntil) {
		return nil
	}
	e.setPhase(PhaseReadyToMonitor, snap.time, "slept long enough")
	return nil
}

func (e *Engine) stepReadyToMonitor(snap *snapshot) error {
	if snap.regime.Sleeping {
		e.setPhase(PhaseMonitoringBreakout, snap.time, "monitoring for breakout")
	} else {
		e.setPhase(PhaseSleeping, snap.time, "sleep ended before monitoring")
	}
	return nil
}

func (e *Engine) stepMonitoring(ctx context.Context, snap *snapshot) error {
	if !snap.regime.Horizontal {
		e.setPhase(PhaseWaitingForSleep, snap.time, "lines no longer horizontal")
		return nil
	}
	if e.cfg.Signal.StrictBreakoutTiming && snap.regime.Awake() {
		e.setPhase(PhaseWaitingForSleep, snap.time, "mouth opened before breakout validated")
		return nil
	}

	e.tracker.Observe(snap.time, snap.price, snap.jaw, snap.teeth, snap.lips, snap.atr)

	if !e.tracker.Validate(snap.time, snap.price, snap.jaw) {
		return nil
	}

	if !e.exec.Counter().Allow(e.cfg.Risk.MaxDailyTrades) {
		e.logger.Info().
			Int("count", e.exec.Counter().Count).
			Int("max", e.cfg.Risk.MaxDailyTrades).
			Msg("Daily trade cap reached, skipping signal")
		e.setPhase(PhaseWaitingForSleep, snap.time, "daily trade cap reached")
		return nil
	}

	if e.cfg.Signal.MinADXStrength > 0 && snap.adx < e.cfg.Signal.MinADXStrength {
		e.logger.Debug().
			Float64("adx", snap.adx).
			Float64("min", e.cfg.Signal.MinADXStrength).
			Msg("ADX below trigger threshold, holding")
		return nil
	}

	direction := e.tracker.Direction()
	if err := e.enter(ctx, snap, direction); err != nil {
		e.logger.Error().Err(err).Msg("Trade entry failed")
		e.setPhase(PhaseWaitingForSleep, snap.time, "order rejected")
		return nil
	}
	e.setPhase(PhaseTradeExecuted, snap.time, "breakout validated, order placed")
	return nil
}

// enter sizes and submits the breakout trade.
func (e *Engine) enter(ctx context.Context, snap *snapshot, direction models.Direction) error {
	balance, err := e.broker.GetBalance(ctx)
	if err != nil {
		return apperrors.Wrap(err, "fetching balance")
	}
	constraints, err := e.broker.GetConstraints(ctx, e.cfg.Strategy.Symbol)
	if err != nil {
		return apperrors.Wrap(err, "fetching constraints")
	}

	sizing, err := e.sizer.Size(balance, snap.price, snap.atr, direction, constraints)
	if err != nil {
		return err
	}

	_, err = e.exec.Open(ctx, &execution.Plan{
		Symbol:     e.cfg.Strategy.Symbol,
		Side:       direction.Side(),
		Volume:     sizing.Volume,
		Entry:      snap.price,
		StopLoss:   sizing.StopLoss,
		TakeProfit: sizing.TakeProfit,
		Comment:    "alligator breakout",
	})
	return err
}

func (e *Engine) stepTradeExecuted(ctx context.Context, snap *snapshot) error {
	pos, err := e.exec.RefreshPosition(ctx)
	if err != nil {
		return err
	}
	if pos == nil {
		e.exitTrade(snap.time, "position closed before mouth opened")
		return nil
	}

	if e.regimeMatches(snap.regime, pos.Direction) {
		e.setPhase(PhasePositionActive, snap.time, "mouth opened in trade direction")
		return nil
	}

	maxWait := time.Duration(e.cfg.Signal.MaxMouthOpeningMinutes) * time.Minute
	if maxWait > 0 && snap.time.Sub(e.phaseSince) >= maxWait {
		if err := e.exec.CloseCurrent(ctx); err != nil {
			e.logger.Error().Err(err).Msg("Closing stale position failed")
		}
		e.exitTrade(snap.time, "mouth never opened, trade abandoned")
	}
	return nil
}

func (e *Engine) stepPositionActive(ctx context.Context, snap *snapshot) error {
	pos, err := e.exec.RefreshPosition(ctx)
	if err != nil {
		return err
	}
	if pos == nil {
		e.exitTrade(snap.time, "position closed at broker")
		return nil
	}

	crossedAgainst := (pos.Direction == models.DirectionBullish && snap.price < snap.lips) ||
		(pos.Direction == models.DirectionBearish && snap.price > snap.lips)

	if crossedAgainst || !e.regimeMatches(snap.regime, pos.Direction) {
		if err := e.exec.CloseCurrent(ctx); err != nil {
			e.logger.Error().Err(err).Msg("Closing position on exit signal failed")
			return err
		}
		e.exitTrade(snap.time, "trend exhausted, position closed")
	}
	return nil
}

func (e *Engine) stepWaitingForSleep(snap *snapshot) error {
	if snap.regime.Sleeping {
		e.setPhase(PhaseSleeping, snap.time, "regime back to sleeping")
	}
	return nil
}

// regimeMatches reports whether the awake regime agrees with the trade
// direction.
func (e *Engine) regimeMatches(st regime.State, dir models.Direction) bool {
	if dir == models.DirectionBullish {
		return st.BullishAwake
	}
	return st.BearishAwake
}

// exitTrade transitions out of an in-trade phase and arms the signal
// cooldown.
func (e *Engine) exitTrade(now time.Time, cause string) {
	cooldown := time.Duration(e.cfg.Signal.SignalCooldownMinutes) * time.Minute
	if cooldown > 0 {
		e.cooldownUntil = now.Add(cooldown)
	}
	e.setPhase(PhaseWaitingForSleep, now, cause)
}

// setPhase applies a phase transition with its side effects. Leaving the
// monitoring phase always discards the breakout episode.
func (e *Engine) setPhase(next Phase, now time.Time, cause string) {
	if next == e.phase {
		return
	}
	if e.phase == PhaseMonitoringBreakout || next == PhaseMonitoringBreakout {
		e.tracker.Reset()
	}
	logging.LogPhaseChange(e.logger, e.phase.String(), next.String(), cause)
	e.phase = next
	e.phaseSince = now
}
