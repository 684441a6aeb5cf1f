// Package forecast turns a fitted model into a forward forecast plus an
// in-sample accuracy report.
package forecast

import (
	"errors"
	"fmt"
	"math"

	"github.com/quantfold/pricecast/pkg/sarima"
	"github.com/quantfold/pricecast/pkg/timeseries"
)

// ZeroActualError reports a zero observation inside the MAPE evaluation
// window; percentage error is undefined there.
type ZeroActualError struct {
	Index int
}

func (e *ZeroActualError) Error() string {
	return fmt.Sprintf("forecast: actual value at index %d is zero, MAPE undefined", e.Index)
}

// Report is the result of evaluating a fitted model: point forecasts with
// approximate interval bounds, and the in-sample MAPE of the fit.
type Report struct {
	Horizon int       `json:"horizon"`
	Values  []float64 `json:"values"`
	Lower   []float64 `json:"lower"`
	Upper   []float64 `json:"upper"`

	// Fitted holds the in-sample one-step predictions aligned to the
	// input series. The first Warmup entries are NaN, so the slice is
	// not JSON-encodable.
	Fitted []float64 `json:"-"`

	// Warmup is the number of leading observations the differencing
	// structure leaves without a fitted value.
	Warmup int `json:"warmup"`

	// MAPE is the mean absolute percentage error of the in-sample
	// one-step fit, in percent, excluding the differencing warm-up.
	MAPE float64 `json:"mape"`

	// InSample counts the observations that entered the MAPE.
	InSample int `json:"in_sample"`
}

// Evaluate forecasts horizon steps ahead and scores the model's in-sample
// fit against the series it was trained on. Warm-up observations, which
// have no fitted value, are excluded from the MAPE.
func Evaluate(model *sarima.Model, series *timeseries.Series, horizon int) (*Report, error) {
	if horizon < 1 {
		return nil, errors.New("forecast: horizon must be at least 1")
	}
	if !model.Fitted() {
		return nil, errors.New("forecast: model is not fitted")
	}

	values, lower, upper, err := model.ForecastWithInterval(horizon, 0.95)
	if err != nil {
		return nil, err
	}

	fitted := model.FittedValues()
	mape, count, err := inSampleMAPE(series.Values, fitted)
	if err != nil {
		return nil, err
	}

	return &Report{
		Horizon:  horizon,
		Values:   values,
		Lower:    lower,
		Upper:    upper,
		Fitted:   fitted,
		Warmup:   model.Order.WarmupLen(),
		MAPE:     mape,
		InSample: count,
	}, nil
}

// inSampleMAPE averages |actual-fitted|/|actual| over every index with a
// defined fitted value.
func inSampleMAPE(actual, fitted []float64) (float64, int, error) {
	sum := 0.0
	count := 0
	for i := range actual {
		if i >= len(fitted) || math.IsNaN(fitted[i]) {
			continue
		}
		if actual[i] == 0 {
			return 0, 0, &ZeroActualError{Index: i}
		}
		sum += math.Abs((actual[i] - fitted[i]) / actual[i])
		count++
	}
	if count == 0 {
		return 0, 0, errors.New("forecast: no observations available for MAPE")
	}
	return sum / float64(count) * 100, count, nil
}
