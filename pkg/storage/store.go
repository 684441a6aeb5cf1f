package storage

import (
	"context"
	"time"

	"github.com/quantfold/pricecast/pkg/search"
)

// Diagnostics captures the stationarity analysis behind a snapshot.
type Diagnostics struct {
	ADFStatistic float64 `json:"adf_statistic"`
	ADFPValue    float64 `json:"adf_p_value"`
	D            int     `json:"d"`
	SD           int     `json:"seasonal_d"`
	S            int     `json:"seasonal_period"`
	Observations int     `json:"observations"`

	// Trend smoothers evaluated at the end of the series: the Holt
	// double-exponential one-step level and the moving-average
	// confidence band around the last close.
	HoltNext  float64 `json:"holt_next"`
	BandLower float64 `json:"band_lower"`
	BandUpper float64 `json:"band_upper"`
}

// Snapshot is the published result of one forecasting run for an
// instrument: the forward forecast with interval bounds, the winning
// model, and the ranked candidate table behind the choice.
type Snapshot struct {
	RunID       string    `json:"run_id"`
	Instrument  string    `json:"instrument"`
	GeneratedAt time.Time `json:"generated_at"`

	Horizon int       `json:"horizon"`
	Values  []float64 `json:"values"`
	Lower   []float64 `json:"lower"`
	Upper   []float64 `json:"upper"`

	BestOrder string  `json:"best_order"`
	BestAIC   float64 `json:"best_aic"`
	MAPE      float64 `json:"mape"`

	Diagnostics Diagnostics `json:"diagnostics"`

	// Candidates holds the head of the ranked search table. Empty when
	// table publishing is disabled.
	Candidates []search.CandidateResult `json:"candidates,omitempty"`
}

type Store interface {
	Put(ctx context.Context, snapshot Snapshot) error
	GetLatest(ctx context.Context, instrument string) (Snapshot, bool, error)
}
