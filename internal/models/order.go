package models

import "time"

// PendingOrder is a proposal awaiting operator approval. At most one exists.
type PendingOrder struct {
	Symbol     string      `json:"symbol"`
	Side       Side        `json:"side"`
	Setup      string      `json:"setup"`
	Entry      float64     `json:"entry"`
	Stop       float64     `json:"stop"`
	TP1        float64     `json:"tp1"`
	RR         float64     `json:"rr"`
	Confidence Confidence  `json:"confidence"`
	Grade      Grade       `json:"grade"`
	Score      int         `json:"score"`
	SizeUSD    float64     `json:"size_usd"`
	Leverage   float64     `json:"leverage"`
	MarginUSD  float64     `json:"margin_usd"`
	Mode       TradingMode `json:"mode"`
	CreatedAt  time.Time   `json:"created_at"`
}

// OpenPosition is the single tracked paper position.
type OpenPosition struct {
	Symbol             string     `json:"symbol"`
	Side               Side       `json:"side"`
	Setup              string     `json:"setup"`
	EntryFill          float64    `json:"entry_fill"`
	Stop               float64    `json:"stop"`
	TP1                float64    `json:"tp1"`
	RR                 float64    `json:"rr"`
	Confidence         Confidence `json:"confidence"`
	Leverage           float64    `json:"leverage"`
	SizeUSD            float64    `json:"size_usd"`
	InitialSizeUSD     float64    `json:"initial_size_usd"`
	ClosedPercent      float64    `json:"closed_percent"`
	OpenedAt           time.Time  `json:"opened_at"`
	LastPartialAt      *time.Time `json:"last_partial_at,omitempty"`
	LastPartialPercent float64    `json:"last_partial_percent,omitempty"`
}

// RemainingPercent returns the share of the initial size that is still open.
func (p *OpenPosition) RemainingPercent() float64 {
	rem := 100 - p.ClosedPercent
	if rem < 0 {
		return 0
	}
	return rem
}

// RiskPerUnit returns the absolute distance between entry fill and stop.
func (p *OpenPosition) RiskPerUnit() float64 {
	d := p.EntryFill - p.Stop
	if d < 0 {
		return -d
	}
	return d
}

// ExitType represents the kind of armed conditional exit.
type ExitType string

const (
	ExitTakeProfit ExitType = "tp"
	ExitStopLoss   ExitType = "sl"
)

// Valid reports whether the exit type is known.
func (t ExitType) Valid() bool {
	return t == ExitTakeProfit || t == ExitStopLoss
}

// ArmedExit is a persisted conditional close tied to the open position.
type ArmedExit struct {
	Type    ExitType  `json:"type"`
	Target  float64   `json:"target"`
	Percent float64   `json:"percent"`
	ArmedAt time.Time `json:"armed_at"`
}

// ExecutionRecord is one entry of the append-only execution log.
type ExecutionRecord struct {
	ID          string      `json:"id"`
	ExecutedAt  time.Time   `json:"executed_at"`
	Mode        TradingMode `json:"mode"`
	Symbol      string      `json:"symbol"`
	Side        Side        `json:"side"`
	EntrySignal float64     `json:"entry_signal"`
	EntryFill   float64     `json:"entry_fill"`
	SlippageBps float64     `json:"slippage_bps"`
	Stop        float64     `json:"stop"`
	TP1         float64     `json:"tp1"`
	SizeUSD     float64     `json:"size_usd"`
	Setup       string      `json:"setup"`
}

// KillSwitch suppresses creation of new pending orders while present.
type KillSwitch struct {
	Enabled bool      `json:"enabled"`
	At      time.Time `json:"at"`
}
