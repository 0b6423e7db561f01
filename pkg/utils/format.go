package utils

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// RoundTo rounds v half away from zero to the given number of decimal places.
func RoundTo(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// RoundMoney rounds a notional amount to currency precision (cents).
func RoundMoney(v float64) float64 {
	return RoundTo(v, 2)
}

// RoundPrice rounds a price to two decimals.
func RoundPrice(v float64) float64 {
	return RoundTo(v, 2)
}

// FormatUSD formats an amount as dollars with thousands separators.
func FormatUSD(amount float64) string {
	d := decimal.NewFromFloat(amount).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	whole := d.Truncate(0).String()
	frac := d.Sub(d.Truncate(0)).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	return fmt.Sprintf("%s$%s.%02d", sign, groupThousands(whole), frac)
}

func groupThousands(s string) string {
	if len(s) <= 3 {
		return s
	}
	var out []byte
	pre := len(s) % 3
	if pre > 0 {
		out = append(out, s[:pre]...)
	}
	for i := pre; i < len(s); i += 3 {
		if len(out) > 0 {
			out = append(out, ',')
		}
		out = append(out, s[i:i+3]...)
	}
	return string(out)
}

// FormatPercent formats a percentage value with sign.
func FormatPercent(value float64) string {
	if value >= 0 {
		return fmt.Sprintf("+%.2f%%", value)
	}
	return fmt.Sprintf("%.2f%%", value)
}

// FormatFraction formats a fraction (0.01) as a signed percentage (+1.00%).
func FormatFraction(value float64) string {
	return FormatPercent(value * 100)
}

// FormatR formats an R-multiple with sign.
func FormatR(r float64) string {
	if r >= 0 {
		return fmt.Sprintf("+%.2fR", r)
	}
	return fmt.Sprintf("%.2fR", r)
}
