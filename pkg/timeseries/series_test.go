package timeseries

import (
	"math"
	"testing"
	"time"
)

func TestNew_Valid(t *testing.T) {
	base := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)
	timestamps := []time.Time{base, base.AddDate(0, 0, 1), base.AddDate(0, 0, 2)}
	values := []float64{18.9, 19.1, 19.0}

	s, err := New(timestamps, values)
	if err != nil {
		t.Fatalf("New() returned error: %v", err)
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}

	ts, v := s.Last()
	if !ts.Equal(base.AddDate(0, 0, 2)) || v != 19.0 {
		t.Errorf("Last() = (%v, %v), want (%v, 19.0)", ts, v, base.AddDate(0, 0, 2))
	}
}

func TestNew_Invalid(t *testing.T) {
	base := time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		timestamps []time.Time
		values     []float64
	}{
		{
			name:       "length mismatch",
			timestamps: []time.Time{base},
			values:     []float64{1, 2},
		},
		{
			name:       "empty",
			timestamps: nil,
			values:     nil,
		},
		{
			name:       "duplicate timestamp",
			timestamps: []time.Time{base, base},
			values:     []float64{1, 2},
		},
		{
			name:       "decreasing timestamps",
			timestamps: []time.Time{base.AddDate(0, 0, 1), base},
			values:     []float64{1, 2},
		},
		{
			name:       "NaN value",
			timestamps: []time.Time{base, base.AddDate(0, 0, 1)},
			values:     []float64{1, math.NaN()},
		},
		{
			name:       "infinite value",
			timestamps: []time.Time{base, base.AddDate(0, 0, 1)},
			values:     []float64{math.Inf(1), 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.timestamps, tt.values); err == nil {
				t.Error("New() error = nil, want validation error")
			}
		})
	}
}

func TestDiff(t *testing.T) {
	got := Diff([]float64{1, 3, 6, 10})
	want := []float64{2, 3, 4}

	if len(got) != len(want) {
		t.Fatalf("Diff() length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Diff()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if d := Diff([]float64{5}); d != nil {
		t.Errorf("Diff() on single value = %v, want nil", d)
	}
}

func TestSeasonalDiff(t *testing.T) {
	got := SeasonalDiff([]float64{1, 2, 3, 5, 7, 9}, 3)
	want := []float64{4, 5, 6}

	if len(got) != len(want) {
		t.Fatalf("SeasonalDiff() length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SeasonalDiff()[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	if d := SeasonalDiff([]float64{1, 2}, 3); d != nil {
		t.Errorf("SeasonalDiff() on short series = %v, want nil", d)
	}
}

func TestACF(t *testing.T) {
	// A slowly varying series should have strong positive lag-1 correlation.
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i % 10)
	}

	acf := ACF(values, 10)
	if len(acf) != 11 {
		t.Fatalf("ACF() length = %d, want 11", len(acf))
	}
	if acf[0] != 1 {
		t.Errorf("acf[0] = %v, want 1", acf[0])
	}
	// Period-10 sawtooth: lag-10 autocorrelation should be near 1.
	if acf[10] < 0.8 {
		t.Errorf("acf[10] = %v, want >= 0.8 for a period-10 series", acf[10])
	}
}

func TestACF_ConstantSeries(t *testing.T) {
	acf := ACF([]float64{5, 5, 5, 5, 5}, 2)
	if acf[0] != 1 {
		t.Errorf("acf[0] = %v, want 1", acf[0])
	}
	if acf[1] != 0 || acf[2] != 0 {
		t.Errorf("acf[1:] = %v, want zeros for constant series", acf[1:])
	}
}

func TestMeanStd(t *testing.T) {
	s := FromValues([]float64{2, 4, 6, 8})
	if got := s.Mean(); got != 5 {
		t.Errorf("Mean() = %v, want 5", got)
	}
	want := math.Sqrt(20.0 / 3.0)
	if got := s.Std(); math.Abs(got-want) > 1e-12 {
		t.Errorf("Std() = %v, want %v", got, want)
	}
}
