package cli

import (
	"fmt"
	"strings"
	"time"

	"signal-trader/internal/models"
	"signal-trader/pkg/utils"
)

// FormatPrice formats a price with appropriate decimal places.
func FormatPrice(price float64) string {
	if price != 0 && price < 10 && price > -10 {
		return fmt.Sprintf("%.4f", price)
	}
	return fmt.Sprintf("%.2f", price)
}

// FormatPnL formats P&L in dollars with sign.
func FormatPnL(pnl float64) string {
	formatted := utils.FormatUSD(pnl)
	if pnl > 0 {
		return "+" + formatted
	}
	return formatted
}

// FormatDateTime formats a timestamp in UTC.
func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04 UTC")
}

// FormatDuration formats a duration as hours and minutes.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}

// FormatRiskReward formats a reward:risk ratio.
func FormatRiskReward(rr float64) string {
	return fmt.Sprintf("1:%.2f", rr)
}

// FormatScore formats a confluence score against its maximum.
func FormatScore(score, max int) string {
	if max <= 0 {
		return fmt.Sprintf("%d", score)
	}
	return fmt.Sprintf("%d/%d", score, max)
}

// FormatCheck renders a pass/fail mark.
func FormatCheck(passed bool) string {
	if passed {
		return "✓"
	}
	return "✗"
}

// FormatOnOff renders a boolean switch.
func FormatOnOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// FormatPercentOf formats a share of the initial size.
func FormatPercentOf(pct float64) string {
	return strings.TrimSuffix(strings.TrimSuffix(fmt.Sprintf("%.2f", pct), "0"), ".0") + "%"
}

// FormatSide renders a trade side with its arrow.
func FormatSide(side models.Side) string {
	switch side {
	case models.SideLong:
		return "▲ LONG"
	case models.SideShort:
		return "▼ SHORT"
	default:
		return "-"
	}
}

// TruncateString truncates a string to max length with ellipsis.
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
