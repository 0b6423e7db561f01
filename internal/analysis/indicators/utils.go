package indicators

import (
	"errors"
	"math"

	"signal-trader/internal/models"
)

var (
	// ErrInsufficientData is returned when there's not enough data for calculation.
	ErrInsufficientData = errors.New("insufficient data for calculation")
	// ErrInvalidPeriod is returned when the period is invalid.
	ErrInvalidPeriod = errors.New("invalid period")
)

// Series holds the OHLCV columns of a candle sequence.
type Series struct {
	Opens   []float64
	Highs   []float64
	Lows    []float64
	Closes  []float64
	Volumes []float64
}

// NewSeries splits candles into columns.
func NewSeries(candles []models.Candle) Series {
	s := Series{
		Opens:   make([]float64, len(candles)),
		Highs:   make([]float64, len(candles)),
		Lows:    make([]float64, len(candles)),
		Closes:  make([]float64, len(candles)),
		Volumes: make([]float64, len(candles)),
	}
	for i, c := range candles {
		s.Opens[i] = c.Open
		s.Highs[i] = c.High
		s.Lows[i] = c.Low
		s.Closes[i] = c.Close
		s.Volumes[i] = c.Volume
	}
	return s
}

// Len returns the number of bars.
func (s Series) Len() int {
	return len(s.Closes)
}

// Tail returns the last n values of v (all of v if shorter).
func Tail(v []float64, n int) []float64 {
	if n >= len(v) {
		return v
	}
	if n <= 0 {
		return nil
	}
	return v[len(v)-n:]
}

// Window returns v[len-from : len-to], mirroring a negative slice such as [-8:-1].
func Window(v []float64, from, to int) []float64 {
	start := len(v) - from
	end := len(v) - to
	if start < 0 {
		start = 0
	}
	if end < start {
		end = start
	}
	return v[start:end]
}

// Sum calculates the sum of a slice of float64.
func Sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}

// Mean calculates the arithmetic mean of a slice of float64.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return Sum(values) / float64(len(values))
}

// Max returns the largest value, or -Inf for an empty slice.
func Max(values []float64) float64 {
	m := math.Inf(-1)
	for _, v := range values {
		if v > m {
			m = v
		}
	}
	return m
}

// Min returns the smallest value, or +Inf for an empty slice.
func Min(values []float64) float64 {
	m := math.Inf(1)
	for _, v := range values {
		if v < m {
			m = v
		}
	}
	return m
}
