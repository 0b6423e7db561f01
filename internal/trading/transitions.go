package trading

import (
	"math"
	"time"

	"signal-trader/internal/errors"
	"signal-trader/internal/models"
	"signal-trader/internal/risk"
	"signal-trader/pkg/utils"
)

// ExitTriggered reports whether an exit of type t with target fires at current.
// Take-profit fires at or beyond the target in the trade's favor, stop-loss at
// or beyond it against the trade.
func ExitTriggered(t models.ExitType, side models.Side, target, current float64) bool {
	if t == models.ExitTakeProfit {
		if side.IsLong() {
			return current >= target
		}
		return current <= target
	}
	if side.IsLong() {
		return current <= target
	}
	return current >= target
}

// ExitTarget resolves the trigger price of an exit type for pos.
func ExitTarget(t models.ExitType, pos *models.OpenPosition) float64 {
	if t == models.ExitTakeProfit {
		return pos.TP1
	}
	return pos.Stop
}

// ResultR returns the R-multiple of exiting pos at exit. Zero risk yields 0.
func ResultR(pos *models.OpenPosition, exit float64) float64 {
	perUnitRisk := pos.RiskPerUnit()
	if perUnitRisk == 0 {
		return 0
	}
	pnl := exit - pos.EntryFill
	if !pos.Side.IsLong() {
		pnl = pos.EntryFill - exit
	}
	return pnl / perUnitRisk
}

// CloseRequest describes one close event against the open position.
type CloseRequest struct {
	ExitPrice float64
	Reason    models.CloseReason
	Percent   float64 // share of the initial size
	At        time.Time
}

// CloseOutcome is the result of resolving a close.
type CloseOutcome struct {
	Trade models.ClosedTrade
	// Position is the updated position, nil once fully closed.
	Position *models.OpenPosition
}

// FullyClosed reports whether the close consumed the rest of the position.
func (o *CloseOutcome) FullyClosed() bool {
	return o.Position == nil
}

// ResolveClose computes the ledger record and remaining position for req.
// The percent is taken of the initial size and clamped to what is still open.
// pos is not modified.
func ResolveClose(pos *models.OpenPosition, req CloseRequest) (*CloseOutcome, error) {
	if pos == nil {
		return nil, errors.ErrNoOpenPosition
	}
	if req.Percent <= 0 || req.Percent > 100 {
		return nil, errors.NewValidationError("percent", req.Percent, "must be in (0, 100]")
	}
	if req.ExitPrice <= 0 {
		return nil, errors.NewValidationError("exit_price", req.ExitPrice, "must be positive")
	}
	switch req.Reason {
	case models.CloseTakeProfit, models.CloseStopLoss, models.CloseManual:
	default:
		return nil, errors.NewValidationError("reason", req.Reason, "must be tp, sl or manual")
	}

	remaining := pos.RemainingPercent()
	if remaining <= 0 || pos.SizeUSD <= 0 {
		return nil, errors.ErrPositionFullyUsed
	}

	pct := math.Min(req.Percent, remaining)
	initial := pos.InitialSizeUSD
	if initial <= 0 {
		initial = pos.SizeUSD
	}

	before := pos.SizeUSD
	closeSize := math.Min(utils.RoundMoney(initial*pct/100), before)
	after := utils.RoundMoney(before - closeSize)
	closedPct := utils.RoundTo(pos.ClosedPercent+pct, 6)

	full := after <= 0 || closedPct >= 100
	if full {
		closeSize = before
		after = 0
	}

	r := ResultR(pos, req.ExitPrice)
	perUnit := req.ExitPrice - pos.EntryFill
	if !pos.Side.IsLong() {
		perUnit = -perUnit
	}
	pnl := 0.0
	if pos.EntryFill > 0 {
		pnl = utils.RoundMoney(closeSize / pos.EntryFill * perUnit)
	}

	out := &CloseOutcome{
		Trade: models.ClosedTrade{
			ClosedAt:      req.At.UTC(),
			Reason:        req.Reason,
			Symbol:        pos.Symbol,
			Side:          pos.Side,
			Setup:         pos.Setup,
			Confidence:    pos.Confidence,
			EntryFill:     pos.EntryFill,
			ExitPrice:     utils.RoundPrice(req.ExitPrice),
			Stop:          pos.Stop,
			TP1:           pos.TP1,
			Percent:       pct,
			SizeUSDBefore: before,
			CloseSizeUSD:  closeSize,
			SizeUSDAfter:  after,
			ResultR:       utils.RoundTo(r, 2),
			PnLUSD:        pnl,
			FullyClosed:   full,
		},
	}
	if full {
		return out, nil
	}

	next := *pos
	at := req.At.UTC()
	next.SizeUSD = after
	next.ClosedPercent = closedPct
	next.LastPartialAt = &at
	next.LastPartialPercent = pct
	if next.InitialSizeUSD <= 0 {
		next.InitialSizeUSD = initial
	}
	out.Position = &next
	return out, nil
}

// OrderParams carries the account inputs needed to size a pending order.
type OrderParams struct {
	Symbol       string
	Mode         models.TradingMode
	Equity       float64
	RiskPerTrade float64
	Leverage     float64
}

// BuildPendingOrder turns a signal into a sized proposal.
// It returns a ValidationError when the sized notional is zero.
func BuildPendingOrder(sig *models.Signal, params OrderParams, now time.Time) (*models.PendingOrder, error) {
	if sig == nil {
		return nil, errors.NewValidationError("signal", nil, "required")
	}
	size := utils.RoundMoney(risk.PositionSize(params.Equity, params.RiskPerTrade, sig.Entry, sig.Stop))
	if size <= 0 {
		return nil, errors.NewValidationError("size_usd", size, "position size is zero")
	}

	return &models.PendingOrder{
		Symbol:     params.Symbol,
		Side:       sig.Side,
		Setup:      sig.Setup,
		Entry:      sig.Entry,
		Stop:       sig.Stop,
		TP1:        sig.TP1,
		RR:         sig.RR,
		Confidence: sig.Confidence,
		Grade:      sig.Grade,
		Score:      sig.Score,
		SizeUSD:    size,
		Leverage:   params.Leverage,
		MarginUSD:  risk.Margin(size, params.Leverage),
		Mode:       params.Mode,
		CreatedAt:  now.UTC(),
	}, nil
}
