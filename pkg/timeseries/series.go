// Package timeseries provides the price series type shared by the
// forecasting pipeline: an ordered sequence of (timestamp, value)
// observations with the differencing operations the SARIMA model and the
// stationarity tests need.
package timeseries

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Series is an ordered sequence of (timestamp, value) observations.
//
// Invariants, enforced by New: timestamps strictly increasing, no
// duplicates, every value finite. The forecasting engine borrows a Series
// read-only; none of the methods below mutate the receiver.
type Series struct {
	Timestamps []time.Time
	Values     []float64
}

// New creates a Series, rejecting unordered timestamps and non-finite values.
func New(timestamps []time.Time, values []float64) (*Series, error) {
	if len(timestamps) != len(values) {
		return nil, fmt.Errorf("timestamps (%d) and values (%d) must have the same length",
			len(timestamps), len(values))
	}
	if len(values) == 0 {
		return nil, errors.New("series cannot be empty")
	}

	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("value at index %d is not finite", i)
		}
		if i > 0 && !timestamps[i].After(timestamps[i-1]) {
			return nil, fmt.Errorf("timestamps must be strictly increasing: index %d (%s) is not after index %d (%s)",
				i, timestamps[i].Format(time.RFC3339), i-1, timestamps[i-1].Format(time.RFC3339))
		}
	}

	return &Series{Timestamps: timestamps, Values: values}, nil
}

// FromValues creates a Series from bare values with synthetic daily
// timestamps. Intended for tests and synthetic data.
func FromValues(values []float64) *Series {
	timestamps := make([]time.Time, len(values))
	base := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range timestamps {
		timestamps[i] = base.AddDate(0, 0, i)
	}
	s, err := New(timestamps, values)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of observations.
func (s *Series) Len() int {
	return len(s.Values)
}

// Last returns the final observation.
func (s *Series) Last() (time.Time, float64) {
	n := len(s.Values)
	return s.Timestamps[n-1], s.Values[n-1]
}

// Mean calculates the arithmetic mean of the values.
func (s *Series) Mean() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range s.Values {
		sum += v
	}
	return sum / float64(len(s.Values))
}

// Std calculates the sample standard deviation of the values.
func (s *Series) Std() float64 {
	n := len(s.Values)
	if n < 2 {
		return 0
	}
	mean := s.Mean()
	sumSq := 0.0
	for _, v := range s.Values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// Diff returns the first-differenced values: y[t] - y[t-1].
// The result is one observation shorter than the input.
func Diff(values []float64) []float64 {
	if len(values) < 2 {
		return nil
	}
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		out[i-1] = values[i] - values[i-1]
	}
	return out
}

// SeasonalDiff returns the seasonally differenced values at lag period:
// y[t] - y[t-period]. The result is period observations shorter.
func SeasonalDiff(values []float64, period int) []float64 {
	if period <= 0 || len(values) <= period {
		return nil
	}
	out := make([]float64, len(values)-period)
	for i := period; i < len(values); i++ {
		out[i-period] = values[i] - values[i-period]
	}
	return out
}

// ACF computes the autocorrelation function up to maxLag inclusive.
// The returned slice has maxLag+1 entries with acf[0] == 1.
func ACF(values []float64, maxLag int) []float64 {
	n := len(values)
	if n == 0 || maxLag < 0 {
		return nil
	}
	if maxLag >= n {
		maxLag = n - 1
	}

	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)

	c0 := 0.0
	for _, v := range values {
		d := v - mean
		c0 += d * d
	}
	if c0 == 0 {
		// Constant series: correlation is undefined, return zeros past lag 0.
		acf := make([]float64, maxLag+1)
		acf[0] = 1
		return acf
	}

	acf := make([]float64, maxLag+1)
	acf[0] = 1
	for k := 1; k <= maxLag; k++ {
		ck := 0.0
		for t := k; t < n; t++ {
			ck += (values[t] - mean) * (values[t-k] - mean)
		}
		acf[k] = ck / c0
	}
	return acf
}
