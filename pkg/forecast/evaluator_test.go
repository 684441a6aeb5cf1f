package forecast

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/quantfold/pricecast/pkg/sarima"
	"github.com/quantfold/pricecast/pkg/timeseries"
)

func fitTrivial(t *testing.T, values []float64, order sarima.Order) (*sarima.Model, *timeseries.Series) {
	t.Helper()
	series := timeseries.FromValues(values)
	m := sarima.New(order)
	if err := m.Fit(context.Background(), series); err != nil {
		t.Fatalf("Fit: %v", err)
	}
	return m, series
}

func TestEvaluateConstantSeries(t *testing.T) {
	values := make([]float64, 40)
	for i := range values {
		values[i] = 50
	}
	m, series := fitTrivial(t, values, sarima.Order{S: 1})

	report, err := Evaluate(m, series, 5)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if report.MAPE != 0 {
		t.Errorf("MAPE = %v, want 0 for perfect fit", report.MAPE)
	}
	if report.InSample != len(values) {
		t.Errorf("InSample = %d, want %d", report.InSample, len(values))
	}
	if len(report.Values) != 5 || len(report.Lower) != 5 || len(report.Upper) != 5 {
		t.Fatalf("forecast lengths = %d/%d/%d, want 5", len(report.Values), len(report.Lower), len(report.Upper))
	}
	for h, v := range report.Values {
		if math.Abs(v-50) > 1e-9 {
			t.Errorf("forecast[%d] = %v, want 50", h, v)
		}
	}
}

func TestEvaluateExcludesWarmup(t *testing.T) {
	values := make([]float64, 60)
	for i := range values {
		values[i] = 100 + 2*float64(i) + []float64{0, 3, -1, 2, 1}[i%5]
	}
	order := sarima.Order{D: 1, SD: 1, S: 5}
	m, series := fitTrivial(t, values, order)

	report, err := Evaluate(m, series, 3)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if want := len(values) - order.WarmupLen(); report.InSample != want {
		t.Errorf("InSample = %d, want %d (warm-up excluded)", report.InSample, want)
	}
	if report.Warmup != order.WarmupLen() {
		t.Errorf("Warmup = %d, want %d", report.Warmup, order.WarmupLen())
	}
	if len(report.Fitted) != len(values) {
		t.Fatalf("len(Fitted) = %d, want %d", len(report.Fitted), len(values))
	}
	for i := 0; i < report.Warmup; i++ {
		if !math.IsNaN(report.Fitted[i]) {
			t.Errorf("Fitted[%d] = %v, want NaN during warm-up", i, report.Fitted[i])
		}
	}
	if report.MAPE != 0 {
		t.Errorf("MAPE = %v, want 0 for exact fit", report.MAPE)
	}
}

func TestEvaluateZeroActual(t *testing.T) {
	values := make([]float64, 40)
	for i := range values {
		values[i] = float64(i - 5) // crosses zero at index 5
	}
	series := timeseries.FromValues(values)
	m := sarima.New(sarima.Order{S: 1})
	if err := m.Fit(context.Background(), series); err != nil {
		t.Fatalf("Fit: %v", err)
	}

	_, err := Evaluate(m, series, 2)
	var zae *ZeroActualError
	if !errors.As(err, &zae) {
		t.Fatalf("err = %v, want *ZeroActualError", err)
	}
	if zae.Index != 5 {
		t.Errorf("Index = %d, want 5", zae.Index)
	}
}

func TestEvaluateBadInputs(t *testing.T) {
	values := make([]float64, 40)
	for i := range values {
		values[i] = 10
	}
	m, series := fitTrivial(t, values, sarima.Order{S: 1})

	if _, err := Evaluate(m, series, 0); err == nil {
		t.Error("Evaluate with horizon 0 succeeded, want error")
	}
	if _, err := Evaluate(sarima.New(sarima.Order{S: 1}), series, 3); err == nil {
		t.Error("Evaluate with unfitted model succeeded, want error")
	}
}
