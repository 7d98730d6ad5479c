// Package broker provides the trading platform abstraction: market data,
// account state, symbol constraints and order submission.
package broker

import (
	"context"

	"alligator-trader/internal/models"
)

// Broker defines the interface the strategy engine consumes. All calls are
// synchronous request/response and expected to complete within a tick.
type Broker interface {
	// Market data
	GetBars(ctx context.Context, symbol, timeframe string, count int) ([]models.Candle, error)
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)

	// Account
	GetBalance(ctx context.Context) (float64, error)
	GetConstraints(ctx context.Context, symbol string) (*models.SymbolConstraints, error)

	// Orders and positions
	SubmitOrder(ctx context.Context, req *models.OrderRequest) (*models.OrderResult, error)
	GetOpenPosition(ctx context.Context, ticket int64) (*models.BrokerPosition, error)
	ClosePosition(ctx context.Context, ticket int64) (*models.CloseResult, error)
}
