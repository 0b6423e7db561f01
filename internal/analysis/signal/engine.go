// Package signal implements the confluence signal engine: regime, liquidity and
// phase reads feeding a graded, scored trade setup.
package signal

import (
	"fmt"
	"math"

	"signal-trader/internal/analysis"
	"signal-trader/internal/analysis/indicators"
	"signal-trader/internal/errors"
	"signal-trader/internal/models"
	"signal-trader/pkg/utils"
)

// Grade cutoffs.
const (
	gradeACutoff = 6
	gradeBCutoff = 4
)

// Check names, LONG first then the SHORT mirror.
const (
	CheckBullishClose   = "bullish_close"
	CheckBearishClose   = "bearish_close"
	CheckMomentumUp     = "momentum_up"
	CheckMomentumDown   = "momentum_down"
	CheckNotExtended    = "entry_not_extended"
	CheckSweepReclaim   = "liquidity_sweep_reclaim"
	CheckSweepReject    = "liquidity_sweep_reject"
	CheckMicroBreakout  = "micro_breakout"
	CheckMicroBreakdown = "micro_breakdown"
	CheckPhaseAligned   = "phase_aligned"
	CheckSession        = "preferred_session"
	CheckEffort         = "effort_vs_result"
)

// Config holds the policy knobs of the engine.
type Config struct {
	MinScore     int
	RRTarget     float64
	MinRR        float64
	MinGrade     models.Grade
	SessionHours []int
	EffortBonus  bool
}

// DefaultConfig returns the canonical policy: graded, score >= 5, rr 2.8.
func DefaultConfig() Config {
	return Config{
		MinScore:    5,
		RRTarget:    2.8,
		MinRR:       2.8,
		MinGrade:    models.GradeA,
		EffortBonus: true,
	}
}

// Engine evaluates candle windows against the confluence policy.
type Engine struct {
	cfg Config
}

// NewEngine creates a new signal engine.
func NewEngine(cfg Config) *Engine {
	if cfg.MinGrade == "" {
		cfg.MinGrade = models.GradeC
	}
	return &Engine{cfg: cfg}
}

// Config returns the engine policy.
func (e *Engine) Config() Config {
	return e.cfg
}

// GradeFor maps a confluence score to its letter grade.
func GradeFor(score int) models.Grade {
	switch {
	case score >= gradeACutoff:
		return models.GradeA
	case score >= gradeBCutoff:
		return models.GradeB
	default:
		return models.GradeC
	}
}

// Evaluate runs the full policy over candles.
// It returns ErrInsufficientData when fewer than MinCandles bars are supplied.
func (e *Engine) Evaluate(candles []models.Candle) (*analysis.Verdict, error) {
	if len(candles) < MinCandles {
		return nil, fmt.Errorf("%w: need at least %d candles, got %d", errors.ErrInsufficientData, MinCandles, len(candles))
	}

	s := indicators.NewSeries(candles)
	snap := Snapshot(s)

	v := &analysis.Verdict{
		Status:   models.StatusNoTrade,
		Snapshot: snap,
		Checks:   []string{},
	}

	var side models.Side
	switch snap.Regime {
	case models.RegimeCompression:
		v.Reason = "Volatility too low (compression)"
		return v, nil
	case models.RegimeRange:
		v.Reason = "Range regime (skip)"
		return v, nil
	case models.RegimeUptrend:
		side = models.SideLong
	default:
		side = models.SideShort
	}

	v.Side = side
	v.Checklist = e.confluence(side, candles[len(candles)-1], s, snap)
	for _, c := range v.Checklist {
		v.MaxScore += c.Points
		if c.Passed {
			v.Score += c.Points
			v.Checks = append(v.Checks, c.Name)
		}
	}
	v.Grade = GradeFor(v.Score)

	entry := snap.Last
	var stop, tp1 float64
	if side.IsLong() {
		stop = indicators.Min(indicators.Tail(s.Lows, stopLookback))
		tp1 = entry + e.cfg.RRTarget*(entry-stop)
	} else {
		stop = indicators.Max(indicators.Tail(s.Highs, stopLookback))
		tp1 = entry - e.cfg.RRTarget*(stop-entry)
	}

	risk := math.Abs(entry - stop)
	if risk == 0 {
		v.Reason = "Stop distance is zero"
		return v, nil
	}
	rr := utils.RoundTo(math.Abs(tp1-entry)/risk, 2)

	if v.Score < e.cfg.MinScore {
		v.Reason = fmt.Sprintf("Confluence too weak (%d/%d)", v.Score, e.cfg.MinScore)
		return v, nil
	}
	if !v.Grade.AtLeast(e.cfg.MinGrade) {
		v.Reason = fmt.Sprintf("Grade %s below minimum %s", v.Grade, e.cfg.MinGrade)
		return v, nil
	}
	if rr < e.cfg.MinRR {
		v.Reason = fmt.Sprintf("RR %.2f below floor %.2f", rr, e.cfg.MinRR)
		return v, nil
	}

	confidence := models.ConfidenceMedium
	if v.Grade == models.GradeA {
		confidence = models.ConfidenceHigh
	}

	v.Status = models.StatusSetup
	v.Signal = &models.Signal{
		Side:       side,
		Setup:      setupLabel(side),
		Entry:      utils.RoundPrice(entry),
		Stop:       utils.RoundPrice(stop),
		TP1:        utils.RoundPrice(tp1),
		RR:         rr,
		Score:      v.Score,
		Grade:      v.Grade,
		Confidence: confidence,
		Checks:     v.Checks,
	}
	return v, nil
}

func setupLabel(side models.Side) string {
	if side.IsLong() {
		return "V2.1 long: trend + reclaim"
	}
	return "V2.1 short: trend + reject"
}

// confluence evaluates every check for side, satisfied or not.
func (e *Engine) confluence(side models.Side, bar models.Candle, s indicators.Series, snap models.MarketSnapshot) []analysis.CheckResult {
	n := s.Len() - 1
	last, prev := s.Closes[n], s.Closes[n-1]
	long := side.IsLong()

	check := func(name string, points int, passed bool, detail string) analysis.CheckResult {
		return analysis.CheckResult{Name: name, Points: points, Passed: passed, Detail: detail}
	}

	extension := math.Abs(last - snap.EMA50)
	band := extensionATRMult * snap.ATR
	notExtended := check(CheckNotExtended, 1, extension <= band,
		fmt.Sprintf("|last-ema50| %.2f vs %.2f", extension, band))

	var out []analysis.CheckResult
	if long {
		microHigh := indicators.Max(indicators.Window(s.Highs, microLookback, 1))
		out = append(out,
			check(CheckBullishClose, 1, bar.Close > bar.Open, fmt.Sprintf("close %.2f vs open %.2f", bar.Close, bar.Open)),
			check(CheckMomentumUp, 1, last > prev, fmt.Sprintf("last %.2f vs prev %.2f", last, prev)),
			notExtended,
			check(CheckSweepReclaim, 2, snap.Liquidity.SweepLowReclaim, fmt.Sprintf("prev low %.2f", snap.Liquidity.PrevLow)),
			check(CheckMicroBreakout, 1, last > microHigh, fmt.Sprintf("last %.2f vs 5-bar high %.2f", last, microHigh)),
		)
	} else {
		microLow := indicators.Min(indicators.Window(s.Lows, microLookback, 1))
		out = append(out,
			check(CheckBearishClose, 1, bar.Close < bar.Open, fmt.Sprintf("close %.2f vs open %.2f", bar.Close, bar.Open)),
			check(CheckMomentumDown, 1, last < prev, fmt.Sprintf("last %.2f vs prev %.2f", last, prev)),
			notExtended,
			check(CheckSweepReject, 2, snap.Liquidity.SweepHighReject, fmt.Sprintf("prev high %.2f", snap.Liquidity.PrevHigh)),
			check(CheckMicroBreakdown, 1, last < microLow, fmt.Sprintf("last %.2f vs 5-bar low %.2f", last, microLow)),
		)
	}

	out = append(out, check(CheckPhaseAligned, 1, PhaseAligned(side, snap.Phase), string(snap.Phase)))

	if len(e.cfg.SessionHours) > 0 {
		hour := bar.Timestamp.UTC().Hour()
		out = append(out, check(CheckSession, 1, utils.InSessionHours(bar.Timestamp, e.cfg.SessionHours),
			fmt.Sprintf("bar hour %02d UTC", hour)))
	}

	if e.cfg.EffortBonus {
		avgVol := indicators.Mean(indicators.Tail(s.Volumes, phaseLookback))
		body := bar.Close - bar.Open
		if !long {
			body = -body
		}
		passed := bar.Volume >= effortVolumeMult*avgVol && body >= effortBodyRatio*bar.Range()
		out = append(out, check(CheckEffort, 1, passed,
			fmt.Sprintf("volume %.0f vs avg %.0f", bar.Volume, avgVol)))
	}

	return out
}
