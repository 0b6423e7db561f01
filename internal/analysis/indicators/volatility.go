package indicators

import "math"

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|).
func TrueRange(high, low, prevClose float64) float64 {
	return math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
}

// ATR returns the arithmetic mean of the last period true ranges.
//
// This is a plain moving average, not Wilder smoothing. It returns 0 when fewer
// than period+1 closes are available.
func ATR(highs, lows, closes []float64, period int) float64 {
	if period <= 0 || len(closes) < period+1 || len(highs) != len(closes) || len(lows) != len(closes) {
		return 0
	}
	trs := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		trs = append(trs, TrueRange(highs[i], lows[i], closes[i-1]))
	}
	return Mean(Tail(trs, period))
}

// ATRPercent expresses atr as a percentage of price.
func ATRPercent(atr, price float64) float64 {
	if price == 0 {
		return 0
	}
	return atr / price * 100
}
