package timeseries

import "math"

// Smoothing diagnostics used to characterize trend and noise in a price
// series before modeling. Warm-up positions where a smoothed value is not
// yet defined are NaN, never zero.

// MovingAverage returns the trailing moving average over the given window.
// Entries before index window-1 are NaN.
func MovingAverage(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if window <= 0 || window > len(values) {
		return out
	}

	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// MovingAverageBounds returns confidence bounds around the moving average:
// mean ± (MAE + scale·σ), where MAE and σ are computed over the deviations
// between the raw series and the rolling mean. The conventional scale is
// 1.96 for an approximate 95% band.
func MovingAverageBounds(values []float64, window int, scale float64) (lower, upper []float64) {
	ma := MovingAverage(values, window)

	mae := 0.0
	count := 0
	for i := window; i < len(values); i++ {
		mae += math.Abs(values[i] - ma[i])
		count++
	}
	if count > 0 {
		mae /= float64(count)
	}

	variance := 0.0
	if count > 1 {
		mean := 0.0
		for i := window; i < len(values); i++ {
			mean += values[i] - ma[i]
		}
		mean /= float64(count)
		for i := window; i < len(values); i++ {
			d := values[i] - ma[i] - mean
			variance += d * d
		}
		variance /= float64(count)
	}
	deviation := math.Sqrt(variance)

	lower = make([]float64, len(values))
	upper = make([]float64, len(values))
	for i := range values {
		lower[i] = ma[i] - (mae + scale*deviation)
		upper[i] = ma[i] + (mae + scale*deviation)
	}
	return lower, upper
}

// ExponentialSmoothing applies single exponential smoothing with the given
// alpha. The first smoothed value equals the first observation.
func ExponentialSmoothing(values []float64, alpha float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// DoubleExponentialSmoothing applies Holt's linear method with level
// parameter alpha and trend parameter beta. The result has one extra entry:
// the final value is a one-step-ahead extrapolation of level plus trend.
func DoubleExponentialSmoothing(values []float64, alpha, beta float64) []float64 {
	if len(values) < 2 {
		return nil
	}

	out := make([]float64, 0, len(values)+1)
	out = append(out, values[0])

	level := values[0]
	trend := values[1] - values[0]

	for n := 1; n <= len(values); n++ {
		var value float64
		if n >= len(values) {
			value = out[len(out)-1]
		} else {
			value = values[n]
		}
		lastLevel := level
		level = alpha*value + (1-alpha)*(level+trend)
		trend = beta*(level-lastLevel) + (1-beta)*trend
		out = append(out, level+trend)
	}
	return out
}
