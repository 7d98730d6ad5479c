// Package models provides domain models for the trading engine.
package models

import (
	"time"
)

// Direction represents the direction of a market move or position.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionBullish
	DirectionBearish
)

func (d Direction) String() string {
	switch d {
	case DirectionBullish:
		return "BULLISH"
	case DirectionBearish:
		return "BEARISH"
	default:
		return "NONE"
	}
}

// Opposite returns the mirror direction. None maps to None.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionBullish:
		return DirectionBearish
	case DirectionBearish:
		return DirectionBullish
	default:
		return DirectionNone
	}
}

// OrderSide represents the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Side returns the order side matching a trade direction.
func (d Direction) Side() OrderSide {
	if d == DirectionBearish {
		return OrderSideSell
	}
	return OrderSideBuy
}

// Candle represents OHLCV data for a time period.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// MedianPrice returns (high+low)/2, the alligator input price.
func (c Candle) MedianPrice() float64 {
	return (c.High + c.Low) / 2
}

// Tick represents a live market data event delivered to the engine.
type Tick struct {
	Symbol    string
	Bid       float64
	Ask       float64
	Last      float64
	Timestamp time.Time
}

// Mid returns the bid/ask midpoint, falling back to the last price.
func (t Tick) Mid() float64 {
	if t.Bid > 0 && t.Ask > 0 {
		return (t.Bid + t.Ask) / 2
	}
	return t.Last
}

// Quote represents a market quote snapshot.
type Quote struct {
	Symbol    string
	Bid       float64
	Ask       float64
	Last      float64
	Timestamp time.Time
}

// SymbolConstraints describes the broker's trading rules for a symbol.
type SymbolConstraints struct {
	Symbol          string
	MinLot          float64
	MaxLot          float64
	LotStep         float64
	MinStopDistance float64 // minimum SL/TP distance from entry, in price units
	FillModes       []FillMode
	Digits          int
}

// SupportsFillMode reports whether the broker advertises the given fill mode.
func (sc *SymbolConstraints) SupportsFillMode(m FillMode) bool {
	for _, fm := range sc.FillModes {
		if fm == m {
			return true
		}
	}
	return false
}

// BrokerPosition represents an open position as reported by the broker.
type BrokerPosition struct {
	Ticket     int64
	Symbol     string
	Direction  Direction
	Volume     float64
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
	OpenedAt   time.Time
}
