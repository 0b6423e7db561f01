// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"signal-trader/internal/models"
)

// State record keys. Each concept is one JSON document in the state table.
const (
	KeyPendingOrder = "pending_order"
	KeyOpenPosition = "open_position"
	KeyArmedExit    = "armed_exit"
	KeyKillSwitch   = "kill_switch"
	KeyPerformance  = "performance"
)

// StateStore defines the interface for engine persistence.
//
// View and Update run fn inside a single transaction. Update commits only when fn
// returns nil, so a read-modify-write either lands completely or not at all.
type StateStore interface {
	View(ctx context.Context, fn func(tx StateTx) error) error
	Update(ctx context.Context, fn func(tx StateTx) error) error

	// Candle cache
	SaveCandles(ctx context.Context, symbol, timeframe string, candles []models.Candle) error
	GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]models.Candle, error)

	// Audit
	SaveEvaluation(ctx context.Context, eval *models.Evaluation) error
	GetEvaluations(ctx context.Context, filter EvaluationFilter) ([]models.Evaluation, error)

	// Ledgers
	GetExecutions(ctx context.Context, limit int) ([]models.ExecutionRecord, error)
	GetClosedTrades(ctx context.Context, filter TradeFilter) ([]models.ClosedTrade, error)

	// Lifecycle
	Close() error
}

// StateTx is the transactional view of the authoritative state.
//
// Getters return (nil, nil) when the record does not exist and an error wrapping
// errors.ErrCorruptState when it exists but cannot be decoded.
type StateTx interface {
	PendingOrder() (*models.PendingOrder, error)
	SetPendingOrder(order *models.PendingOrder) error
	DeletePendingOrder() error

	OpenPosition() (*models.OpenPosition, error)
	SetOpenPosition(pos *models.OpenPosition) error
	DeleteOpenPosition() error

	ArmedExit() (*models.ArmedExit, error)
	SetArmedExit(exit *models.ArmedExit) error
	DeleteArmedExit() error

	KillSwitch() (*models.KillSwitch, error)
	SetKillSwitch(ks *models.KillSwitch) error
	DeleteKillSwitch() error

	// Performance is advisory: a corrupt record reads as zero values.
	Performance() (models.Performance, error)
	SetPerformance(perf models.Performance) error

	AppendExecution(rec *models.ExecutionRecord) error
	CountExecutions() (int, error)

	AppendClosedTrade(trade *models.ClosedTrade) error
	ClosedTradesSince(since time.Time) ([]models.ClosedTrade, error)
}

// TradeFilter represents filters for querying the closed-trade ledger.
type TradeFilter struct {
	Symbol    string
	StartDate time.Time
	EndDate   time.Time
	Reason    models.CloseReason
	Limit     int
}

// EvaluationFilter represents filters for querying evaluation audit records.
type EvaluationFilter struct {
	Symbol    string
	Status    models.SignalStatus
	StartDate time.Time
	Limit     int
}
