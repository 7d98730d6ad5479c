package broker

import (
	"context"
	"sync"
	"time"

	apperrors "alligator-trader/internal/errors"
	"alligator-trader/internal/models"
)

// SimBroker implements the Broker interface against in-memory state. It
// backs paper trading and the test suite: it enforces the same constraint
// rules a live broker would (fill-mode support, minimum stop distance,
// funds) and sweeps SL/TP levels as prices update.
type SimBroker struct {
	constraints models.SymbolConstraints
	balance     float64

	candles    map[string][]models.Candle
	priceCache map[string]float64
	spread     float64

	positions     map[int64]*models.BrokerPosition
	ticketCounter int64

	// Programmable rejections, consumed in order on each SubmitOrder.
	scriptedRejects []models.ReasonCode

	now func() time.Time

	mu sync.RWMutex
}

// SimBrokerConfig holds configuration for the simulated broker.
type SimBrokerConfig struct {
	InitialBalance float64
	Constraints    models.SymbolConstraints
	Spread         float64
	Now            func() time.Time
}

// NewSimBroker creates a new simulated broker.
func NewSimBroker(cfg SimBrokerConfig) *SimBroker {
	balance := cfg.InitialBalance
	if balance == 0 {
		balance = 10000
	}
	constraints := cfg.Constraints
	if constraints.LotStep == 0 {
		constraints.LotStep = 0.01
	}
	if constraints.MinLot == 0 {
		constraints.MinLot = 0.01
	}
	if constraints.MaxLot == 0 {
		constraints.MaxLot = 100
	}
	if len(constraints.FillModes) == 0 {
		constraints.FillModes = []models.FillMode{models.FillModeFOK, models.FillModeIOC}
	}
	nowFn := cfg.Now
	if nowFn == nil {
		nowFn = time.Now
	}
	return &SimBroker{
		constraints: constraints,
		balance:     balance,
		candles:     make(map[string][]models.Candle),
		priceCache:  make(map[string]float64),
		spread:      cfg.Spread,
		positions:   make(map[int64]*models.BrokerPosition),
		now:         nowFn,
	}
}

// LoadCandles seeds the historical bar store for a symbol (oldest-first).
func (s *SimBroker) LoadCandles(symbol string, candles []models.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candles[symbol] = append([]models.Candle(nil), candles...)
	if len(candles) > 0 {
		s.priceCache[symbol] = candles[len(candles)-1].Close
	}
}

// AppendCandle appends one bar and updates the live price.
func (s *SimBroker) AppendCandle(symbol string, c models.Candle) {
	s.mu.Lock()
	s.candles[symbol] = append(s.candles[symbol], c)
	s.priceCache[symbol] = c.Close
	s.mu.Unlock()
	s.sweepStops(symbol, c.High, c.Low)
}

// UpdatePrice updates the live price and sweeps SL/TP levels.
func (s *SimBroker) UpdatePrice(symbol string, price float64) {
	s.mu.Lock()
	s.priceCache[symbol] = price
	s.mu.Unlock()
	s.sweepStops(symbol, price, price)
}

// ScriptRejects queues reason codes returned by the next SubmitOrder calls,
// one per attempt, before normal processing resumes.
func (s *SimBroker) ScriptRejects(codes ...models.ReasonCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scriptedRejects = append(s.scriptedRejects, codes...)
}

// GetBars returns the newest count bars, oldest-first.
func (s *SimBroker) GetBars(ctx context.Context, symbol, timeframe string, count int) ([]models.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all, ok := s.candles[symbol]
	if !ok {
		return nil, apperrors.NewDataError("candles", symbol, "no candle data loaded", apperrors.ErrDataUnavailable)
	}
	if count > len(all) {
		count = len(all)
	}
	out := make([]models.Candle, count)
	copy(out, all[len(all)-count:])
	return out, nil
}

// GetQuote returns the current bid/ask derived from the cached price.
func (s *SimBroker) GetQuote(ctx context.Context, symbol string) (*models.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	price, ok := s.priceCache[symbol]
	if !ok {
		return nil, apperrors.NewDataError("quote", symbol, "no price available", apperrors.ErrDataUnavailable)
	}
	half := s.spread / 2
	return &models.Quote{
		Symbol:    symbol,
		Bid:       price - half,
		Ask:       price + half,
		Last:      price,
		Timestamp: s.now(),
	}, nil
}

// GetBalance returns the simulated account balance.
func (s *SimBroker) GetBalance(ctx context.Context) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balance, nil
}

// GetConstraints returns the symbol trading constraints.
func (s *SimBroker) GetConstraints(ctx context.Context, symbol string) (*models.SymbolConstraints, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.constraints
	c.Symbol = symbol
	return &c, nil
}

// SubmitOrder validates and fills a market order against the cached price.
func (s *SimBroker) SubmitOrder(ctx context.Context, req *models.OrderRequest) (*models.OrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.scriptedRejects) > 0 {
		code := s.scriptedRejects[0]
		s.scriptedRejects = s.scriptedRejects[1:]
		return &models.OrderResult{Accepted: false, Reason: code}, nil
	}

	if !s.constraints.SupportsFillMode(req.FillMode) {
		return &models.OrderResult{Accepted: false, Reason: models.ReasonUnsupportedFill}, nil
	}
	if req.Volume < s.constraints.MinLot || req.Volume > s.constraints.MaxLot {
		return &models.OrderResult{Accepted: false, Reason: models.ReasonInvalidVolume}, nil
	}

	price, ok := s.priceCache[req.Symbol]
	if !ok {
		return &models.OrderResult{Accepted: false, Reason: models.ReasonMarketClosed}, nil
	}

	if bad := s.stopsViolation(req, price); bad {
		return &models.OrderResult{Accepted: false, Reason: models.ReasonInvalidStops}, nil
	}

	if req.Volume*price > s.balance {
		return &models.OrderResult{Accepted: false, Reason: models.ReasonNoMoney}, nil
	}

	s.ticketCounter++
	ticket := s.ticketCounter
	dir := models.DirectionBullish
	if req.Side == models.OrderSideSell {
		dir = models.DirectionBearish
	}
	s.positions[ticket] = &models.BrokerPosition{
		Ticket:     ticket,
		Symbol:     req.Symbol,
		Direction:  dir,
		Volume:     req.Volume,
		EntryPrice: price,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
		OpenedAt:   s.now(),
	}

	return &models.OrderResult{
		Accepted: true,
		Reason:   models.ReasonDone,
		Ticket:   ticket,
		Price:    price,
		PlacedAt: s.now(),
	}, nil
}

func (s *SimBroker) stopsViolation(req *models.OrderRequest, price float64) bool {
	minDist := s.constraints.MinStopDistance
	if minDist <= 0 {
		return false
	}
	if req.Side == models.OrderSideBuy {
		if req.StopLoss > 0 && price-req.StopLoss < minDist {
			return true
		}
		if req.TakeProfit > 0 && req.TakeProfit-price < minDist {
			return true
		}
		return false
	}
	if req.StopLoss > 0 && req.StopLoss-price < minDist {
		return true
	}
	if req.TakeProfit > 0 && price-req.TakeProfit < minDist {
		return true
	}
	return false
}

// GetOpenPosition returns the open position for a ticket, or nil when the
// position no longer exists.
func (s *SimBroker) GetOpenPosition(ctx context.Context, ticket int64) (*models.BrokerPosition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos, ok := s.positions[ticket]
	if !ok {
		return nil, nil
	}
	cp := *pos
	return &cp, nil
}

// ClosePosition closes an open position at the cached price.
func (s *SimBroker) ClosePosition(ctx context.Context, ticket int64) (*models.CloseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.positions[ticket]
	if !ok {
		return nil, apperrors.ErrPositionNotFound
	}
	s.settle(pos, s.priceCache[pos.Symbol])
	delete(s.positions, ticket)
	return &models.CloseResult{Accepted: true, Reason: models.ReasonDone}, nil
}

// sweepStops closes positions whose SL or TP was touched by the price range.
func (s *SimBroker) sweepStops(symbol string, high, low float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ticket, pos := range s.positions {
		if pos.Symbol != symbol {
			continue
		}
		var exit float64
		if pos.Direction == models.DirectionBullish {
			switch {
			case pos.StopLoss > 0 && low <= pos.StopLoss:
				exit = pos.StopLoss
			case pos.TakeProfit > 0 && high >= pos.TakeProfit:
				exit = pos.TakeProfit
			}
		} else {
			switch {
			case pos.StopLoss > 0 && high >= pos.StopLoss:
				exit = pos.StopLoss
			case pos.TakeProfit > 0 && low <= pos.TakeProfit:
				exit = pos.TakeProfit
			}
		}
		if exit != 0 {
			s.settle(pos, exit)
			delete(s.positions, ticket)
		}
	}
}

// settle realizes the position's P&L into the balance. Caller holds the lock.
func (s *SimBroker) settle(pos *models.BrokerPosition, exit float64) {
	if exit == 0 {
		return
	}
	pnl := (exit - pos.EntryPrice) * pos.Volume
	if pos.Direction == models.DirectionBearish {
		pnl = -pnl
	}
	s.balance += pnl
}

// OpenPositionCount returns the number of open positions.
func (s *SimBroker) OpenPositionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.positions)
}

// Ensure SimBroker implements Broker interface
var _ Broker = (*SimBroker)(nil)
