package models

import "time"

// CloseReason records why a position (or part of it) was closed.
type CloseReason string

const (
	CloseTakeProfit CloseReason = "tp"
	CloseStopLoss   CloseReason = "sl"
	CloseManual     CloseReason = "manual"
)

// ClosedTrade is one entry of the append-only closed-trade ledger.
// A partial close produces its own record.
type ClosedTrade struct {
	ID            string      `json:"id"`
	ClosedAt      time.Time   `json:"closed_at"`
	Reason        CloseReason `json:"reason"`
	Symbol        string      `json:"symbol"`
	Side          Side        `json:"side"`
	Setup         string      `json:"setup"`
	Confidence    Confidence  `json:"confidence"`
	EntryFill     float64     `json:"entry_fill"`
	ExitPrice     float64     `json:"exit_price"`
	Stop          float64     `json:"stop"`
	TP1           float64     `json:"tp1"`
	Percent       float64     `json:"percent"`
	SizeUSDBefore float64     `json:"size_usd_before"`
	CloseSizeUSD  float64     `json:"close_size_usd"`
	SizeUSDAfter  float64     `json:"size_usd_after"`
	ResultR       float64     `json:"result_r"`
	PnLUSD        float64     `json:"pnl_usd"`
	FullyClosed   bool        `json:"fully_closed"`
}

// Metrics are aggregate statistics derived from the trade journal.
type Metrics struct {
	TotalTrades int        `json:"total_trades"`
	WinRate     float64    `json:"win_rate"`
	AvgWinR     float64    `json:"avg_win_r"`
	AvgLossR    float64    `json:"avg_loss_r"`
	ExpectancyR float64    `json:"expectancy_r"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

// Performance holds realized P&L of the current day and week as fractions of equity.
type Performance struct {
	DayPnLPct  float64   `json:"day_pnl_pct"`
	WeekPnLPct float64   `json:"week_pnl_pct"`
	UpdatedAt  time.Time `json:"updated_at"`
}
