package models

import "time"

// FillMode represents an order filling policy advertised by the broker.
type FillMode string

const (
	FillModeFOK    FillMode = "FOK"    // fill or kill
	FillModeIOC    FillMode = "IOC"    // immediate or cancel
	FillModeReturn FillMode = "RETURN" // partial fill, rest stays working
)

// ReasonCode is the broker's machine-readable result code for an order attempt.
type ReasonCode string

const (
	ReasonDone            ReasonCode = "DONE"
	ReasonRequote         ReasonCode = "REQUOTE"
	ReasonPriceChanged    ReasonCode = "PRICE_CHANGED"
	ReasonInvalidStops    ReasonCode = "INVALID_STOPS"
	ReasonUnsupportedFill ReasonCode = "UNSUPPORTED_FILL_MODE"
	ReasonNoMoney         ReasonCode = "NO_MONEY"
	ReasonMarketClosed    ReasonCode = "MARKET_CLOSED"
	ReasonInvalidVolume   ReasonCode = "INVALID_VOLUME"
)

// Transient reports whether the code indicates a momentary condition worth
// retrying with the same fill mode.
func (rc ReasonCode) Transient() bool {
	return rc == ReasonRequote || rc == ReasonPriceChanged
}

// WrongFillMode reports whether the code indicates the fill mode itself was
// refused, so the next candidate mode should be tried.
func (rc ReasonCode) WrongFillMode() bool {
	return rc == ReasonUnsupportedFill
}

// OrderRequest represents a market order submission.
type OrderRequest struct {
	Symbol     string
	Side       OrderSide
	Volume     float64
	Price      float64
	StopLoss   float64
	TakeProfit float64
	FillMode   FillMode
	Comment    string
}

// OrderResult represents the broker's response to an order submission.
type OrderResult struct {
	Accepted bool
	Reason   ReasonCode
	Ticket   int64
	Price    float64
	PlacedAt time.Time
}

// CloseResult represents the broker's response to a position close request.
type CloseResult struct {
	Accepted bool
	Reason   ReasonCode
}
