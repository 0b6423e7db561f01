// Package analysis provides technical analysis functionality including indicators
// and the confluence signal engine.
package analysis

import (
	"signal-trader/internal/models"
)

// Evaluator turns a candle window into a verdict.
type Evaluator interface {
	Evaluate(candles []models.Candle) (*Verdict, error)
}

// CheckResult is one confluence check as reported by explain.
type CheckResult struct {
	Name   string `json:"name"`
	Points int    `json:"points"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Verdict is the full outcome of a single signal evaluation.
// Signal is set only when Status is SETUP.
type Verdict struct {
	Status    models.SignalStatus   `json:"status"`
	Reason    string                `json:"reason,omitempty"`
	Snapshot  models.MarketSnapshot `json:"market"`
	Side      models.Side           `json:"side,omitempty"`
	Score     int                   `json:"score"`
	MaxScore  int                   `json:"max_score"`
	Grade     models.Grade          `json:"grade,omitempty"`
	Checks    []string              `json:"checks"`
	Checklist []CheckResult         `json:"checklist,omitempty"`
	Signal    *models.Signal        `json:"signal,omitempty"`
}

// IsSetup reports whether the verdict carries an actionable signal.
func (v *Verdict) IsSetup() bool {
	return v.Status == models.StatusSetup && v.Signal != nil
}
