// Package execution manages the order lifecycle: submission with the
// fill-mode cascade, stop normalization, and position bookkeeping.
package execution

import (
	"context"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"alligator-trader/internal/broker"
	apperrors "alligator-trader/internal/errors"
	"alligator-trader/internal/logging"
	"alligator-trader/internal/models"
)

// Plan is a fully sized trade handed to the manager for submission.
type Plan struct {
	Symbol     string
	Side       models.OrderSide
	Volume     float64
	Entry      float64
	StopLoss   float64
	TakeProfit float64
	Comment    string
}

// Manager owns order submission and the single tracked position. Rejections
// with a transient reason are retried with backoff on the same fill mode;
// an unsupported fill mode advances the cascade to the next advertised mode.
type Manager struct {
	broker   broker.Broker
	logger   zerolog.Logger
	symbol   string
	primary  models.FillMode
	counter  *models.DailyTradeCounter
	position *models.BrokerPosition

	retryInitial time.Duration
	retryMax     time.Duration
	maxAttempts  uint64
}

// ManagerConfig holds configuration for the execution manager.
type ManagerConfig struct {
	Broker          broker.Broker
	Logger          zerolog.Logger
	Symbol          string
	PrimaryFillMode models.FillMode
	Counter         *models.DailyTradeCounter

	RetryInitial time.Duration
	RetryMax     time.Duration
	MaxAttempts  uint64 // retries per fill mode on transient rejections
}

// NewManager creates a new execution manager.
func NewManager(cfg ManagerConfig) *Manager {
	primary := cfg.PrimaryFillMode
	if primary == "" {
		primary = models.FillModeFOK
	}
	retryInitial := cfg.RetryInitial
	if retryInitial == 0 {
		retryInitial = 200 * time.Millisecond
	}
	retryMax := cfg.RetryMax
	if retryMax == 0 {
		retryMax = 2 * time.Second
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 3
	}
	counter := cfg.Counter
	if counter == nil {
		counter = &models.DailyTradeCounter{}
	}
	return &Manager{
		broker:       cfg.Broker,
		logger:       logging.WithSymbol(cfg.Logger, cfg.Symbol),
		symbol:       cfg.Symbol,
		primary:      primary,
		counter:      counter,
		retryInitial: retryInitial,
		retryMax:     retryMax,
		maxAttempts:  maxAttempts,
	}
}

// Position returns the locally tracked open position, or nil.
func (m *Manager) Position() *models.BrokerPosition {
	return m.position
}

// Counter returns the shared daily trade counter.
func (m *Manager) Counter() *models.DailyTradeCounter {
	return m.counter
}

// Open submits the plan through the fill-mode cascade. On acceptance the
// position is recorded locally and the daily counter is bumped. An order
// rejected by every candidate mode returns an OrderError carrying the last
// reason code.
func (m *Manager) Open(ctx context.Context, plan *Plan) (*models.OrderResult, error) {
	if m.position != nil {
		return nil, apperrors.NewOrderError(plan.Symbol, string(plan.Side), "position already open", nil)
	}

	constraints, err := m.broker.GetConstraints(ctx, plan.Symbol)
	if err != nil {
		return nil, apperrors.Wrap(err, "fetching symbol constraints")
	}

	stopLoss, takeProfit := normalizeStops(plan.Entry, plan.StopLoss, plan.TakeProfit, plan.Side, constraints.MinStopDistance)

	req := &models.OrderRequest{
		Symbol:     plan.Symbol,
		Side:       plan.Side,
		Volume:     plan.Volume,
		Price:      plan.Entry,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		Comment:    plan.Comment,
	}

	var lastReason models.ReasonCode
	for _, mode := range m.fillModes(constraints) {
		req.FillMode = mode
		result, err := m.submitWithRetry(ctx, req)
		if err != nil {
			return nil, err
		}
		logging.LogOrderAttempt(m.logger, req.Symbol, string(req.Side), string(mode), string(result.Reason), result.Accepted)

		if result.Accepted {
			m.record(plan, req, result)
			return result, nil
		}
		lastReason = result.Reason
		if result.Reason.WrongFillMode() {
			continue
		}
		// Hard rejection: no other fill mode will change the outcome.
		break
	}

	return nil, apperrors.NewOrderError(plan.Symbol, string(plan.Side), string(lastReason), apperrors.ErrOrderRejected)
}

// submitWithRetry retries transient rejections on a single fill mode with
// exponential backoff.
func (m *Manager) submitWithRetry(ctx context.Context, req *models.OrderRequest) (*models.OrderResult, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = m.retryInitial
	policy.MaxInterval = m.retryMax
	policy.MaxElapsedTime = 0

	attempt := func() (*models.OrderResult, error) {
		result, err := m.broker.SubmitOrder(ctx, req)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if !result.Accepted && result.Reason.Transient() {
			m.logger.Debug().
				Str("fill_mode", string(req.FillMode)).
				Str("reason", string(result.Reason)).
				Msg("Transient rejection, retrying")
			return nil, &transientRejection{reason: result.Reason}
		}
		return result, nil
	}

	result, err := backoff.RetryWithData(attempt,
		backoff.WithContext(backoff.WithMaxRetries(policy, m.maxAttempts), ctx))
	if err != nil {
		var tr *transientRejection
		if apperrors.As(err, &tr) {
			// Retries exhausted on a transient code; surface as a rejection.
			return &models.OrderResult{Accepted: false, Reason: tr.reason}, nil
		}
		return nil, err
	}
	return result, nil
}

// record stores the accepted order as the tracked position.
func (m *Manager) record(plan *Plan, req *models.OrderRequest, result *models.OrderResult) {
	dir := models.DirectionBullish
	if req.Side == models.OrderSideSell {
		dir = models.DirectionBearish
	}
	m.position = &models.BrokerPosition{
		Ticket:     result.Ticket,
		Symbol:     req.Symbol,
		Direction:  dir,
		Volume:     req.Volume,
		EntryPrice: result.Price,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		OpenedAt:   result.PlacedAt,
	}
	m.counter.Bump(result.PlacedAt)
	logging.LogTrade(m.logger, req.Symbol, string(req.Side), req.Volume, result.Price, req.StopLoss, req.TakeProfit)
}

// CloseCurrent closes the tracked position. The local record is cleared on
// broker acceptance.
func (m *Manager) CloseCurrent(ctx context.Context) error {
	if m.position == nil {
		return apperrors.ErrPositionNotFound
	}
	result, err := m.broker.ClosePosition(ctx, m.position.Ticket)
	if err != nil {
		return apperrors.Wrap(err, "closing position")
	}
	if !result.Accepted {
		return apperrors.NewOrderError(m.position.Symbol, "close", string(result.Reason), apperrors.ErrOrderRejected)
	}
	m.logger.Info().
		Int64("ticket", m.position.Ticket).
		Msg("Position closed")
	m.position = nil
	return nil
}

// RefreshPosition reconciles the local record with the broker. A position
// the broker no longer reports (stopped out, closed externally) clears the
// local record.
func (m *Manager) RefreshPosition(ctx context.Context) (*models.BrokerPosition, error) {
	if m.position == nil {
		return nil, nil
	}
	pos, err := m.broker.GetOpenPosition(ctx, m.position.Ticket)
	if err != nil {
		return nil, apperrors.Wrap(err, "refreshing position")
	}
	if pos == nil {
		m.logger.Info().
			Int64("ticket", m.position.Ticket).
			Msg("Position no longer open at broker")
		m.position = nil
		return nil, nil
	}
	m.position = pos
	return pos, nil
}

// fillModes returns the cascade order: the primary mode first, then the
// broker's other advertised modes.
func (m *Manager) fillModes(constraints *models.SymbolConstraints) []models.FillMode {
	modes := []models.FillMode{m.primary}
	for _, mode := range constraints.FillModes {
		if mode != m.primary {
			modes = append(modes, mode)
		}
	}
	return modes
}

// normalizeStops widens SL/TP to honor the broker's minimum stop distance.
// Levels are only ever pushed away from the entry, never pulled closer.
func normalizeStops(entry, stopLoss, takeProfit float64, side models.OrderSide, minDistance float64) (float64, float64) {
	if minDistance <= 0 {
		return stopLoss, takeProfit
	}
	if side == models.OrderSideBuy {
		if stopLoss > 0 && entry-stopLoss < minDistance {
			stopLoss = entry - minDistance
		}
		if takeProfit > 0 && takeProfit-entry < minDistance {
			takeProfit = entry + minDistance
		}
	} else {
		if stopLoss > 0 && stopLoss-entry < minDistance {
			stopLoss = entry + minDistance
		}
		if takeProfit > 0 && entry-takeProfit < minDistance {
			takeProfit = entry - minDistance
		}
	}
	return roundLevel(stopLoss), roundLevel(takeProfit)
}

// roundLevel trims float drift introduced by the widening arithmetic.
func roundLevel(v float64) float64 {
	return math.Round(v*1e8) / 1e8
}

// transientRejection carries the reason code through the retry loop.
type transientRejection struct {
	reason models.ReasonCode
}

func (t *transientRejection) Error() string {
	return "transient rejection: " + string(t.reason)
}
