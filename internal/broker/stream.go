package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	apperrors "alligator-trader/internal/errors"
	"alligator-trader/internal/models"
)

// CandleStream delivers closed candles and ticks from a WebSocket feed.
// It redials with exponential backoff on connection loss and resubscribes
// automatically.
type CandleStream struct {
	url          string
	pingInterval time.Duration
	redialMax    time.Duration
	logger       zerolog.Logger

	conn    *websocket.Conn
	writeMu sync.Mutex

	// Handlers
	onCandle func(models.Candle)
	onTick   func(models.Tick)
	onError  func(error)

	// State
	connected  bool
	subscribed map[string]string // symbol -> timeframe

	mu sync.RWMutex
}

// CandleStreamConfig holds configuration for the candle stream.
type CandleStreamConfig struct {
	URL          string
	PingInterval time.Duration
	RedialMax    time.Duration
	Logger       zerolog.Logger
}

// NewCandleStream creates a new candle stream instance.
func NewCandleStream(cfg CandleStreamConfig) *CandleStream {
	pingInterval := cfg.PingInterval
	if pingInterval == 0 {
		pingInterval = 20 * time.Second
	}
	redialMax := cfg.RedialMax
	if redialMax == 0 {
		redialMax = time.Minute
	}
	return &CandleStream{
		url:          cfg.URL,
		pingInterval: pingInterval,
		redialMax:    redialMax,
		logger:       cfg.Logger,
		subscribed:   make(map[string]string),
	}
}

// OnCandle sets the handler invoked for each closed candle.
func (s *CandleStream) OnCandle(fn func(models.Candle)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCandle = fn
}

// OnTick sets the handler invoked for each live tick.
func (s *CandleStream) OnTick(fn func(models.Tick)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTick = fn
}

// OnError sets the handler invoked for stream errors.
func (s *CandleStream) OnError(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = fn
}

// Subscribe registers a symbol/timeframe pair brought up on connect and
// after every redial.
func (s *CandleStream) Subscribe(symbol, timeframe string) error {
	s.mu.Lock()
	s.subscribed[symbol] = timeframe
	connected := s.connected
	s.mu.Unlock()

	if connected {
		return s.sendSubscribe(symbol, timeframe)
	}
	return nil
}

// Run connects and serves the feed until the context is cancelled. Each
// connection loss triggers a redial with exponential backoff.
func (s *CandleStream) Run(ctx context.Context) error {
	for {
		if err := s.dial(ctx); err != nil {
			return fmt.Errorf("feed dial: %w: %w", apperrors.ErrConnectionFailed, err)
		}

		err := s.serve(ctx)
		s.teardown()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn().Err(err).Msg("Feed disconnected, redialing")
		if s.onError != nil && err != nil {
			s.onError(err)
		}
	}
}

// dial connects with exponential backoff and resubscribes.
func (s *CandleStream) dial(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxInterval = s.redialMax
	policy.MaxElapsedTime = 0

	conn, err := backoff.RetryWithData(func() (*websocket.Conn, error) {
		c, _, derr := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
		if derr != nil {
			s.logger.Debug().Err(derr).Str("url", s.url).Msg("Feed dial attempt failed")
		}
		return c, derr
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	subs := make(map[string]string, len(s.subscribed))
	for symbol, tf := range s.subscribed {
		subs[symbol] = tf
	}
	s.mu.Unlock()

	s.logger.Info().Str("url", s.url).Msg("Feed connected")

	for symbol, tf := range subs {
		if err := s.sendSubscribe(symbol, tf); err != nil {
			conn.Close()
			return err
		}
	}
	return nil
}

func (s *CandleStream) sendSubscribe(symbol, timeframe string) error {
	msg := feedRequest{
		Op:        "subscribe",
		Symbol:    symbol,
		Timeframe: timeframe,
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(msg)
}

// serve reads frames until the connection fails or the context is cancelled.
func (s *CandleStream) serve(ctx context.Context) error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()

	done := make(chan struct{})
	defer close(done)

	go s.pingLoop(ctx, conn, done)

	// Unblock the read loop when the context is cancelled.
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		s.dispatch(data)
	}
}

// pingLoop keeps the connection alive with periodic ping frames.
func (s *CandleStream) pingLoop(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// dispatch decodes one feed frame and routes it to the handlers. Only
// closed candles reach the candle handler; in-progress bars are ignored.
func (s *CandleStream) dispatch(data []byte) {
	var frame feedFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		s.logger.Debug().Err(err).Msg("Dropping malformed feed frame")
		return
	}

	switch frame.Type {
	case "candle":
		if !frame.Closed {
			return
		}
		if s.onCandle != nil {
			s.onCandle(models.Candle{
				Timestamp: time.UnixMilli(frame.Timestamp),
				Open:      frame.Open,
				High:      frame.High,
				Low:       frame.Low,
				Close:     frame.Close,
				Volume:    int64(frame.Volume),
			})
		}
	case "tick":
		if s.onTick != nil {
			s.onTick(models.Tick{
				Symbol:    frame.Symbol,
				Bid:       frame.Bid,
				Ask:       frame.Ask,
				Last:      frame.Close,
				Timestamp: time.UnixMilli(frame.Timestamp),
			})
		}
	}
}

// teardown closes the connection and clears the connected flag.
func (s *CandleStream) teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connected = false
}

// feedRequest is the outbound subscription message.
type feedRequest struct {
	Op        string `json:"op"`
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
}

// feedFrame is the inbound wire format shared by candle and tick frames.
type feedFrame struct {
	Type      string  `json:"type"`
	Symbol    string  `json:"symbol"`
	Timestamp int64   `json:"ts"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Bid       float64 `json:"bid"`
	Ask       float64 `json:"ask"`
	Closed    bool    `json:"closed"`
}
