package indicators

// EMA returns the final value of an exponential moving average over values.
//
// Smoothing uses alpha = 2/(span+1) seeded at the first value of the window, not
// at an SMA of the first span values. The seed biases the early part of the
// curve; callers only read the tail, and downstream thresholds were tuned on
// this exact arithmetic.
func EMA(values []float64, span int) float64 {
	if len(values) == 0 || span <= 0 {
		return 0
	}
	alpha := 2.0 / float64(span+1)
	e := values[0]
	for _, v := range values[1:] {
		e = alpha*v + (1-alpha)*e
	}
	return e
}
