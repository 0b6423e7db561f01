package broker

import (
	"time"

	"github.com/google/uuid"

	"signal-trader/internal/errors"
	"signal-trader/internal/models"
	"signal-trader/pkg/utils"
)

// DefaultSlippageBps is the modeled paper slippage when none is configured.
const DefaultSlippageBps = 3.0

// PaperExecutor synthesizes fills for approved orders. It models slippage only:
// there are no partial fills and no rejections.
type PaperExecutor struct {
	slippageBps float64
	now         func() time.Time
	newID       func() string
}

// NewPaperExecutor creates a paper executor. Negative slippage falls back to the default.
func NewPaperExecutor(slippageBps float64) *PaperExecutor {
	if slippageBps < 0 {
		slippageBps = DefaultSlippageBps
	}
	return &PaperExecutor{
		slippageBps: slippageBps,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       func() string { return uuid.New().String() },
	}
}

// SlippageBps returns the modeled slippage.
func (p *PaperExecutor) SlippageBps() float64 {
	return p.slippageBps
}

// FillPrice applies slippage against the trader: longs pay up, shorts sell down.
func FillPrice(side models.Side, entry, slippageBps float64) float64 {
	slip := slippageBps / 10000
	if !side.IsLong() {
		slip = -slip
	}
	return utils.RoundPrice(entry * (1 + slip))
}

// Execute fills order and returns the execution record and resulting position.
// Orders tagged live are refused.
func (p *PaperExecutor) Execute(order *models.PendingOrder) (*models.ExecutionRecord, *models.OpenPosition, error) {
	if order == nil {
		return nil, nil, errors.ErrNoPendingOrder
	}
	if order.Mode == models.ModeLive {
		return nil, nil, errors.ErrLiveModeBlocked
	}
	if !order.Side.Valid() {
		return nil, nil, errors.NewValidationError("side", order.Side, "must be LONG or SHORT")
	}
	if order.Entry <= 0 {
		return nil, nil, errors.NewValidationError("entry", order.Entry, "must be positive")
	}

	now := p.now()
	fill := FillPrice(order.Side, order.Entry, p.slippageBps)

	rec := &models.ExecutionRecord{
		ID:          p.newID(),
		ExecutedAt:  now,
		Mode:        models.ModePaper,
		Symbol:      order.Symbol,
		Side:        order.Side,
		EntrySignal: order.Entry,
		EntryFill:   fill,
		SlippageBps: p.slippageBps,
		Stop:        order.Stop,
		TP1:         order.TP1,
		SizeUSD:     order.SizeUSD,
		Setup:       order.Setup,
	}

	pos := &models.OpenPosition{
		Symbol:         order.Symbol,
		Side:           order.Side,
		Setup:          order.Setup,
		EntryFill:      fill,
		Stop:           order.Stop,
		TP1:            order.TP1,
		RR:             order.RR,
		Confidence:     order.Confidence,
		Leverage:       order.Leverage,
		SizeUSD:        order.SizeUSD,
		InitialSizeUSD: order.SizeUSD,
		OpenedAt:       now,
	}

	return rec, pos, nil
}
