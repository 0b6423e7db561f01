package signal

import (
	"signal-trader/internal/analysis/indicators"
	"signal-trader/internal/models"
)

// Policy constants. Thresholds were tuned against this exact arithmetic.
const (
	MinCandles = 200

	emaFastSpan   = 50
	emaFastWindow = 120
	emaSlowSpan   = 200
	atrPeriod     = 14

	compressionATRPct = 0.35
	extensionATRMult  = 1.2

	liquidityLookback = 8  // prior 7 bars: [-8:-1]
	microLookback     = 6  // prior 5 bars: [-6:-1]
	stopLookback      = 10 // last 10 bars including the current one
	phaseLookback     = 20

	effortVolumeMult = 1.5
	effortBodyRatio  = 0.5
)

// ClassifyRegime tags the market from price, EMAs and ATR percent.
func ClassifyRegime(last, e50, e200, atrPct float64) models.Regime {
	if atrPct < compressionATRPct {
		return models.RegimeCompression
	}
	if last > e50 && e50 > e200 {
		return models.RegimeUptrend
	}
	if last < e50 && e50 < e200 {
		return models.RegimeDowntrend
	}
	return models.RegimeRange
}

// DetectLiquidity compares the current bar against the extremes of the prior 7 bars.
func DetectLiquidity(highs, lows, closes []float64) models.Liquidity {
	prevLow := indicators.Min(indicators.Window(lows, liquidityLookback, 1))
	prevHigh := indicators.Max(indicators.Window(highs, liquidityLookback, 1))
	n := len(closes) - 1

	return models.Liquidity{
		PrevLow:         prevLow,
		PrevHigh:        prevHigh,
		SweepLowReclaim: lows[n] < prevLow && closes[n] > prevLow,
		SweepHighReject: highs[n] > prevHigh && closes[n] < prevHigh,
	}
}

// DetectPhase places the last close within the 20-bar range and reads volume
// against its 20-bar average. Upper half with expanding volume is markup, lower
// half is markdown; on quiet volume the halves read as distribution and
// accumulation.
func DetectPhase(highs, lows, closes, volumes []float64) models.Phase {
	hi := indicators.Max(indicators.Tail(highs, phaseLookback))
	lo := indicators.Min(indicators.Tail(lows, phaseLookback))
	last := closes[len(closes)-1]

	pos := 0.5
	if hi > lo {
		pos = (last - lo) / (hi - lo)
	}

	avgVol := indicators.Mean(indicators.Tail(volumes, phaseLookback))
	highVolume := volumes[len(volumes)-1] >= avgVol
	upper := pos >= 0.5

	switch {
	case upper && highVolume:
		return models.PhaseMarkup
	case !upper && highVolume:
		return models.PhaseMarkdown
	case upper:
		return models.PhaseDistribution
	default:
		return models.PhaseAccumulation
	}
}

// PhaseAligned reports whether phase supports a trade on side.
func PhaseAligned(side models.Side, phase models.Phase) bool {
	if side.IsLong() {
		return phase == models.PhaseMarkup || phase == models.PhaseAccumulation
	}
	return phase == models.PhaseMarkdown || phase == models.PhaseDistribution
}

// Snapshot derives the market read for a candle series.
func Snapshot(s indicators.Series) models.MarketSnapshot {
	last := s.Closes[len(s.Closes)-1]
	e50 := indicators.EMA(indicators.Tail(s.Closes, emaFastWindow), emaFastSpan)
	e200 := indicators.EMA(s.Closes, emaSlowSpan)
	atr := indicators.ATR(s.Highs, s.Lows, s.Closes, atrPeriod)
	atrPct := indicators.ATRPercent(atr, last)

	return models.MarketSnapshot{
		Last:      last,
		EMA50:     e50,
		EMA200:    e200,
		ATR:       atr,
		ATRPct:    atrPct,
		Regime:    ClassifyRegime(last, e50, e200, atrPct),
		Liquidity: DetectLiquidity(s.Highs, s.Lows, s.Closes),
		Phase:     DetectPhase(s.Highs, s.Lows, s.Closes, s.Volumes),
	}
}
