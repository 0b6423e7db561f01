// Package risk provides position sizing and realized-loss guards.
package risk

import (
	"math"
	"time"

	"signal-trader/internal/errors"
	"signal-trader/internal/models"
	"signal-trader/pkg/utils"
)

// Guard reasons.
const (
	ReasonDailyLoss  = "Daily loss guard triggered"
	ReasonWeeklyLoss = "Weekly loss guard triggered"
)

// Limits holds the operator risk settings. Loss limits are positive fractions of equity.
type Limits struct {
	Equity        float64
	RiskPerTrade  float64
	MaxDailyLoss  float64
	MaxWeeklyLoss float64
}

// PositionSize returns the notional that risks riskFraction of equity on the
// stop distance: (equity * riskFraction) / |entry - stop| * entry.
// It returns 0 when entry equals stop.
func PositionSize(equity, riskFraction, entry, stop float64) float64 {
	dist := math.Abs(entry - stop)
	if dist == 0 {
		return 0
	}
	return equity * riskFraction / dist * entry
}

// Margin returns the collateral required for size at leverage.
// Non-positive leverage is treated as unlevered.
func Margin(size, leverage float64) float64 {
	if leverage <= 0 {
		return utils.RoundMoney(size)
	}
	return utils.RoundMoney(size / leverage)
}

// GuardsOK reports whether new orders may be created given realized day and week
// P&L fractions. A guard trips once the loss reaches the limit.
func GuardsOK(dayPnlPct, weekPnlPct float64, limits Limits) (bool, string) {
	if err := CheckGuards(dayPnlPct, weekPnlPct, limits); err != nil {
		return false, err.Message
	}
	return true, "ok"
}

// CheckGuards is GuardsOK returning the breached rule as a RiskError.
func CheckGuards(dayPnlPct, weekPnlPct float64, limits Limits) *errors.RiskError {
	if dayPnlPct <= -limits.MaxDailyLoss {
		return errors.NewRiskError("max_daily_loss", dayPnlPct, -limits.MaxDailyLoss, ReasonDailyLoss)
	}
	if weekPnlPct <= -limits.MaxWeeklyLoss {
		return errors.NewRiskError("max_weekly_loss", weekPnlPct, -limits.MaxWeeklyLoss, ReasonWeeklyLoss)
	}
	return nil
}

// RollingPerformance derives realized day and week P&L fractions from the
// closed-trade ledger. Days and ISO weeks are taken in UTC.
func RollingPerformance(trades []models.ClosedTrade, equity float64, now time.Time) models.Performance {
	perf := models.Performance{UpdatedAt: now.UTC()}
	if equity <= 0 {
		return perf
	}

	dayStart := utils.StartOfDayUTC(now)
	weekStart := utils.StartOfWeekUTC(now)
	var day, week float64
	for _, t := range trades {
		if t.ClosedAt.Before(weekStart) || t.ClosedAt.After(now) {
			continue
		}
		week += t.PnLUSD
		if !t.ClosedAt.Before(dayStart) {
			day += t.PnLUSD
		}
	}

	perf.DayPnLPct = utils.RoundTo(day/equity, 6)
	perf.WeekPnLPct = utils.RoundTo(week/equity, 6)
	return perf
}
