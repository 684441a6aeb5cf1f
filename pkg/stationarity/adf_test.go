package stationarity

import (
	"errors"
	"math"
	"testing"

	"github.com/quantfold/pricecast/pkg/timeseries"
)

// randomWalk builds a deterministic pseudo-random walk; the increments come
// from a fixed linear congruential generator so runs are reproducible.
func randomWalk(n int, start float64) []float64 {
	values := make([]float64, n)
	values[0] = start
	seed := uint64(42)
	for i := 1; i < n; i++ {
		seed = seed*6364136223846793005 + 1442695040888963407
		step := float64(int64(seed>>33)%1000)/1000.0 - 0.5
		values[i] = values[i-1] + step
	}
	return values
}

// noisyMeanReverting builds a strongly mean-reverting AR(1) series.
func noisyMeanReverting(n int) []float64 {
	values := make([]float64, n)
	seed := uint64(7)
	for i := 1; i < n; i++ {
		seed = seed*6364136223846793005 + 1442695040888963407
		noise := float64(int64(seed>>33)%1000)/1000.0 - 0.5
		values[i] = 0.1*values[i-1] + noise
	}
	return values
}

func TestADF_PValueRange(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
	}{
		{"random walk", randomWalk(300, 100)},
		{"mean reverting", noisyMeanReverting(300)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := ADF(timeseries.FromValues(tt.values), 0)
			if err != nil {
				t.Fatalf("ADF() error: %v", err)
			}
			if res.PValue < 0 || res.PValue > 1 {
				t.Errorf("PValue = %v, want in [0,1]", res.PValue)
			}
			if math.IsNaN(res.Statistic) {
				t.Error("Statistic is NaN")
			}
		})
	}
}

func TestADF_StationarySeriesRejectsUnitRoot(t *testing.T) {
	res, err := ADF(timeseries.FromValues(noisyMeanReverting(500)), 0)
	if err != nil {
		t.Fatalf("ADF() error: %v", err)
	}
	if res.PValue >= 0.05 {
		t.Errorf("PValue = %v for strongly mean-reverting series, want < 0.05", res.PValue)
	}
}

func TestADF_InsufficientData(t *testing.T) {
	_, err := ADF(timeseries.FromValues([]float64{1, 2, 3, 4, 5}), 0)

	var insufficientErr *InsufficientDataError
	if !errors.As(err, &insufficientErr) {
		t.Fatalf("error = %v, want *InsufficientDataError", err)
	}
	if insufficientErr.Have != 5 {
		t.Errorf("Have = %d, want 5", insufficientErr.Have)
	}
}

func TestSuggestD_StationaryNeedsNoDifferencing(t *testing.T) {
	d, err := SuggestD(timeseries.FromValues(noisyMeanReverting(500)), 2, 0.05)
	if err != nil {
		t.Fatalf("SuggestD() error: %v", err)
	}
	if d != 0 {
		t.Errorf("SuggestD() = %d for stationary series, want 0", d)
	}
}

func TestSuggestD_RandomWalkNeedsDifferencing(t *testing.T) {
	d, err := SuggestD(timeseries.FromValues(randomWalk(500, 100)), 2, 0.05)
	if err != nil {
		t.Fatalf("SuggestD() error: %v", err)
	}
	if d < 1 {
		t.Errorf("SuggestD() = %d for a random walk, want >= 1", d)
	}
}

func TestSuggestSeasonalD(t *testing.T) {
	// Strong period-5 pattern.
	seasonal := make([]float64, 200)
	for i := range seasonal {
		seasonal[i] = 100 + 50*math.Sin(2*math.Pi*float64(i)/5)
	}
	if got := SuggestSeasonalD(timeseries.FromValues(seasonal), 5); got != 1 {
		t.Errorf("SuggestSeasonalD() = %d for strongly seasonal series, want 1", got)
	}

	if got := SuggestSeasonalD(timeseries.FromValues(noisyMeanReverting(200)), 5); got != 0 {
		t.Errorf("SuggestSeasonalD() = %d for non-seasonal series, want 0", got)
	}

	if got := SuggestSeasonalD(timeseries.FromValues(seasonal), 0); got != 0 {
		t.Errorf("SuggestSeasonalD() = %d for period 0, want 0", got)
	}
}
