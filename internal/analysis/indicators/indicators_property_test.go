package indicators

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

// Property: The EMA of a constant series equals the constant for any span.
func TestEMA_ConstantSeries(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("EMA of a constant series is the constant", prop.ForAll(
		func(value float64, span int, length int) bool {
			values := make([]float64, length)
			for i := range values {
				values[i] = value
			}
			return math.Abs(EMA(values, span)-value) < 1e-9*math.Max(1, value)
		},
		gen.Float64Range(0.01, 100000.0),
		gen.IntRange(1, 300),
		gen.IntRange(1, 400),
	))

	properties.TestingRun(t)
}

// Property: The EMA stays inside the min/max envelope of its inputs.
func TestEMA_WithinEnvelope(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("EMA lies between min and max of the window", prop.ForAll(
		func(values []float64, span int) bool {
			if len(values) == 0 {
				return true
			}
			e := EMA(values, span)
			return e >= Min(values)-1e-9 && e <= Max(values)+1e-9
		},
		gen.SliceOf(gen.Float64Range(1.0, 1000.0)),
		gen.IntRange(1, 200),
	))

	properties.TestingRun(t)
}

// Property: With a constant bar spread and no gaps, ATR equals the spread.
func TestATR_FlatRanges(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("ATR of equal non-gapping bars is the bar spread", prop.ForAll(
		func(mid, spread float64, length int) bool {
			highs := make([]float64, length)
			lows := make([]float64, length)
			closes := make([]float64, length)
			for i := 0; i < length; i++ {
				highs[i] = mid + spread/2
				lows[i] = mid - spread/2
				closes[i] = mid
			}
			return math.Abs(ATR(highs, lows, closes, 14)-spread) < 1e-9
		},
		gen.Float64Range(100.0, 1000.0),
		gen.Float64Range(0.1, 50.0),
		gen.IntRange(15, 300),
	))

	properties.TestingRun(t)
}

func TestEMA_SeededAtFirstValue(t *testing.T) {
	// alpha = 2/3 for span 2: 10 -> 2/3*20 + 1/3*10
	assert.InDelta(t, 50.0/3.0, EMA([]float64{10, 20}, 2), 1e-9)
	assert.Equal(t, 0.0, EMA(nil, 50))
	// 50/3 -> 2/3*30 + 1/3*50/3
	assert.InDelta(t, 20.0+50.0/9.0, EMA([]float64{10, 20, 30}, 2), 1e-9)
}

func TestATR_PlainMeanOfTail(t *testing.T) {
	closes := make([]float64, 15)
	highs := make([]float64, 15)
	lows := make([]float64, 15)
	for i := range closes {
		closes[i] = 100
		highs[i] = 101
		lows[i] = 99
	}
	// One wide bar inside the window lifts the mean by (10-2)/14.
	highs[14] = 105
	lows[14] = 95

	assert.InDelta(t, 2.0+8.0/14.0, ATR(highs, lows, closes, 14), 1e-9)
	assert.Equal(t, 0.0, ATR(highs[:14], lows[:14], closes[:14], 14), "needs period+1 closes")
}

func TestWindow(t *testing.T) {
	v := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	assert.Equal(t, []float64{3, 4, 5, 6, 7, 8, 9}, Window(v, 8, 1))
	assert.Equal(t, []float64{8, 9, 10}, Tail(v, 3))
	assert.Equal(t, v, Tail(v, 20))
	assert.Equal(t, []float64{1, 2}, Window(v[:3], 8, 1))
}
