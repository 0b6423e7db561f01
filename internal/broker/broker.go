// Package broker provides market data access and simulated execution.
package broker

import (
	"context"

	"signal-trader/internal/models"
)

// MarketData defines the read-only market data source the engine depends on.
type MarketData interface {
	// GetCandles returns up to limit closed-or-forming bars, oldest first.
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
	// GetPrice returns the latest traded price.
	GetPrice(ctx context.Context, symbol string) (*models.Quote, error)
}

// Executor turns an approved pending order into a fill.
type Executor interface {
	Execute(order *models.PendingOrder) (*models.ExecutionRecord, *models.OpenPosition, error)
}
