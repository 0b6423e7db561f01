package broker

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal-trader/internal/errors"
	"signal-trader/internal/models"
)

// Property: Paper fills always move against the trader by the modeled slippage:
// a LONG fills at or above the signal entry, a SHORT at or below it.
func TestProperty_FillSlippageDirection(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("long pays up, short sells down", prop.ForAll(
		func(entry, bps float64, long bool) bool {
			side := models.SideShort
			if long {
				side = models.SideLong
			}
			fill := FillPrice(side, entry, bps)
			// Fills are rounded to cents.
			expected := entry * (1 + bps/10000)
			if !long {
				expected = entry * (1 - bps/10000)
			}
			if diff := fill - expected; diff > 0.005+1e-9 || diff < -0.005-1e-9 {
				return false
			}
			if long {
				return fill >= entry-0.005
			}
			return fill <= entry+0.005
		},
		gen.Float64Range(1.0, 200000.0),
		gen.Float64Range(0.0, 50.0),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestPaperExecutor_Execute(t *testing.T) {
	p := NewPaperExecutor(3)
	fixed := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }
	p.newID = func() string { return "exec-1" }

	order := &models.PendingOrder{
		Symbol: "BTCUSDT", Side: models.SideLong, Setup: "V2.1 long: trend + reclaim",
		Entry: 100000, Stop: 99000, TP1: 102800, RR: 2.8, Confidence: models.ConfidenceHigh,
		SizeUSD: 10000, Leverage: 2, Mode: models.ModePaper,
	}

	rec, pos, err := p.Execute(order)
	require.NoError(t, err)

	assert.Equal(t, "exec-1", rec.ID)
	assert.Equal(t, 100030.0, rec.EntryFill)
	assert.Equal(t, 100000.0, rec.EntrySignal)
	assert.Equal(t, 3.0, rec.SlippageBps)
	assert.Equal(t, models.ModePaper, rec.Mode)

	assert.Equal(t, rec.EntryFill, pos.EntryFill)
	assert.Equal(t, 10000.0, pos.SizeUSD)
	assert.Equal(t, 10000.0, pos.InitialSizeUSD)
	assert.Equal(t, 0.0, pos.ClosedPercent)
	assert.Equal(t, fixed, pos.OpenedAt)
	assert.Equal(t, models.ConfidenceHigh, pos.Confidence)
}

func TestPaperExecutor_ShortSellsDown(t *testing.T) {
	_, pos, err := NewPaperExecutor(3).Execute(&models.PendingOrder{
		Symbol: "BTCUSDT", Side: models.SideShort, Entry: 100000, Stop: 101000, Mode: models.ModePaper,
	})
	require.NoError(t, err)
	assert.Equal(t, 99970.0, pos.EntryFill)
}

func TestPaperExecutor_RefusesLive(t *testing.T) {
	_, _, err := NewPaperExecutor(3).Execute(&models.PendingOrder{
		Symbol: "BTCUSDT", Side: models.SideLong, Entry: 100, Mode: models.ModeLive,
	})
	assert.ErrorIs(t, err, errors.ErrLiveModeBlocked)
}
