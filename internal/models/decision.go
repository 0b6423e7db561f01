package models

import "time"

// SignalStatus is the top-level verdict of an evaluation.
type SignalStatus string

const (
	StatusNoTrade SignalStatus = "NO_TRADE"
	StatusSetup   SignalStatus = "SETUP"
)

// Regime is the classified market state.
type Regime string

const (
	RegimeCompression Regime = "compression"
	RegimeUptrend     Regime = "uptrend"
	RegimeDowntrend   Regime = "downtrend"
	RegimeRange       Regime = "range"
)

// Phase is the coarse range/volume phase tag.
type Phase string

const (
	PhaseMarkup       Phase = "markup"
	PhaseMarkdown     Phase = "markdown"
	PhaseAccumulation Phase = "accumulation"
	PhaseDistribution Phase = "distribution"
)

// Grade is the letter bucket derived from the confluence score.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
)

// Rank returns a comparable rank where A is highest.
func (g Grade) Rank() int {
	switch g {
	case GradeA:
		return 3
	case GradeB:
		return 2
	case GradeC:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether g is the same or better than min.
func (g Grade) AtLeast(min Grade) bool {
	return g.Rank() >= min.Rank()
}

// Confidence of an emitted setup.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
)

// Liquidity holds the sweep read of the latest bar against the prior bars.
type Liquidity struct {
	PrevLow         float64 `json:"prev_low"`
	PrevHigh        float64 `json:"prev_high"`
	SweepLowReclaim bool    `json:"sweep_low_reclaim"`
	SweepHighReject bool    `json:"sweep_high_reject"`
}

// MarketSnapshot is the derived market read of one evaluation. Never persisted on its own.
type MarketSnapshot struct {
	Last      float64   `json:"last"`
	EMA50     float64   `json:"ema50"`
	EMA200    float64   `json:"ema200"`
	ATR       float64   `json:"atr"`
	ATRPct    float64   `json:"atr_pct"`
	Regime    Regime    `json:"regime"`
	Liquidity Liquidity `json:"liquidity"`
	Phase     Phase     `json:"phase"`
}

// Signal is an actionable setup produced by the signal engine.
type Signal struct {
	Side       Side       `json:"side"`
	Setup      string     `json:"setup"`
	Entry      float64    `json:"entry"`
	Stop       float64    `json:"stop"`
	TP1        float64    `json:"tp1"`
	RR         float64    `json:"rr"`
	Score      int        `json:"score"`
	Grade      Grade      `json:"grade"`
	Confidence Confidence `json:"confidence"`
	Checks     []string   `json:"checks"`
}

// Evaluation is the audit record stored for every evaluate run.
type Evaluation struct {
	ID          int64        `json:"id"`
	Timestamp   time.Time    `json:"timestamp"`
	Symbol      string       `json:"symbol"`
	Timeframe   string       `json:"timeframe"`
	Status      SignalStatus `json:"status"`
	Reason      string       `json:"reason"`
	PendingMade bool         `json:"pending_created"`
	Detail      string       `json:"detail"` // verdict JSON
}
