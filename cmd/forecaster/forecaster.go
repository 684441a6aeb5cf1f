// Package main implements the forecasting pipeline orchestration.
//
// This file contains the Forecaster type which orchestrates one run:
//
//	collect → diagnose → search → evaluate → store
//
// The Forecaster runs continuously via Run(), executing Tick() at regular
// intervals, or a single pass in -once mode. Each tick loads the price
// history, settles the differencing degrees from the stationarity
// analysis, fits the candidate grid, evaluates the winning model, and
// publishes a snapshot that the HTTP API serves.
//
// The pipeline is instrumented with Prometheus metrics tracking the
// duration of each stage and any errors encountered.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/quantfold/pricecast/cmd/forecaster/metrics"
	"github.com/quantfold/pricecast/pkg/adapters"
	"github.com/quantfold/pricecast/pkg/forecast"
	"github.com/quantfold/pricecast/pkg/search"
	"github.com/quantfold/pricecast/pkg/stationarity"
	"github.com/quantfold/pricecast/pkg/storage"
	"github.com/quantfold/pricecast/pkg/timeseries"
)

// Forecaster orchestrates the pipeline: collect → diagnose → search →
// evaluate → store.
type Forecaster struct {
	instrument   string
	adapter      adapters.Adapter
	engine       *search.Engine
	store        storage.Store
	space        search.Space
	fixed        search.Fixed
	horizon      int
	lookbackDays int
	tableDepth   int
	maxD         int
	significance float64
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// Options bundles the pipeline parameters.
type Options struct {
	Instrument   string
	Space        search.Space
	Fixed        search.Fixed // D or SD of -1 means derive per run
	Horizon      int
	LookbackDays int
	TableDepth   int
	MaxD         int
	Significance float64
}

// New creates a Forecaster.
func New(
	opts Options,
	adapter adapters.Adapter,
	engine *search.Engine,
	store storage.Store,
	logger *slog.Logger,
	m *metrics.Metrics,
) *Forecaster {
	if logger == nil {
		logger = slog.Default()
	}

	return &Forecaster{
		instrument:   opts.Instrument,
		adapter:      adapter,
		engine:       engine,
		store:        store,
		space:        opts.Space,
		fixed:        opts.Fixed,
		horizon:      opts.Horizon,
		lookbackDays: opts.LookbackDays,
		tableDepth:   opts.TableDepth,
		maxD:         opts.MaxD,
		significance: opts.Significance,
		logger:       logger,
		metrics:      m,
	}
}

// Run executes the pipeline at regular intervals. Blocks until the context
// is canceled.
func (f *Forecaster) Run(ctx context.Context, interval time.Duration) error {
	f.logger.Info("starting forecast loop", "interval", interval, "instrument", f.instrument)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := f.Tick(ctx); err != nil {
		f.logger.Error("initial forecast tick failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("forecast loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := f.Tick(ctx); err != nil {
				f.logger.Error("forecast tick failed", "error", err)
			}
		}
	}
}

// Tick performs one full pipeline run. Exported for testing.
func (f *Forecaster) Tick(ctx context.Context) error {
	start := time.Now()
	runID := uuid.NewString()
	f.logger.Debug("starting forecast tick", "run_id", runID)

	series, collectDuration, err := f.collect(ctx)
	if err != nil {
		if f.metrics != nil {
			f.metrics.RecordError("adapter", "collect_failed")
		}
		return fmt.Errorf("collect: %w", err)
	}

	diagnostics, fixed, err := f.diagnose(series)
	if err != nil {
		if f.metrics != nil {
			f.metrics.RecordError("stationarity", "analysis_failed")
		}
		return fmt.Errorf("diagnose: %w", err)
	}

	result, searchDuration, err := f.search(ctx, series, fixed)
	if err != nil {
		if f.metrics != nil {
			f.metrics.RecordError("search", "search_failed")
		}
		return fmt.Errorf("search: %w", err)
	}

	report, evalDuration, err := f.evaluate(result, series)
	if err != nil {
		if f.metrics != nil {
			f.metrics.RecordError("forecast", "evaluate_failed")
		}
		return fmt.Errorf("evaluate: %w", err)
	}

	snapshot := f.buildSnapshot(runID, diagnostics, result, report)
	if err := f.store.Put(ctx, snapshot); err != nil {
		if f.metrics != nil {
			f.metrics.RecordError("store", "put_failed")
		}
		return fmt.Errorf("store: %w", err)
	}

	if f.metrics != nil {
		f.metrics.SetSnapshotAge(0)
		f.metrics.SetSearchOutcome(sanitize(result.Best.AIC), sanitize(report.MAPE), result.Failed)
	}

	f.logger.Info("forecast tick complete",
		"run_id", runID,
		"instrument", f.instrument,
		"best_order", result.Best.Order.String(),
		"best_aic", result.Best.AIC,
		"mape", report.MAPE,
		"collect_ms", collectDuration.Milliseconds(),
		"search_ms", searchDuration.Milliseconds(),
		"evaluate_ms", evalDuration.Milliseconds(),
		"total_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// collect retrieves the price history from the adapter.
func (f *Forecaster) collect(ctx context.Context) (*timeseries.Series, time.Duration, error) {
	start := time.Now()

	series, err := f.adapter.Collect(ctx, f.instrument, f.lookbackDays)
	if err != nil {
		return nil, 0, err
	}

	duration := time.Since(start)
	if f.metrics != nil {
		f.metrics.RecordCollect(duration.Seconds())
	}

	f.logger.Info("collected price history",
		"adapter", f.adapter.Name(),
		"observations", series.Len(),
		"duration_ms", duration.Milliseconds(),
	)

	return series, duration, nil
}

// diagnose runs the stationarity analysis, settles the differencing
// degrees for this run, and evaluates the trend smoothers at the end of
// the series for the snapshot diagnostics.
func (f *Forecaster) diagnose(series *timeseries.Series) (storage.Diagnostics, search.Fixed, error) {
	adf, err := stationarity.ADF(series, 0)
	if err != nil {
		return storage.Diagnostics{}, search.Fixed{}, err
	}

	fixed := f.fixed
	if fixed.D < 0 {
		d, err := stationarity.SuggestD(series, f.maxD, f.significance)
		if err != nil {
			return storage.Diagnostics{}, search.Fixed{}, err
		}
		fixed.D = d
	}
	if fixed.SD < 0 {
		fixed.SD = stationarity.SuggestSeasonalD(series, fixed.S)
	}

	smoothed := timeseries.DoubleExponentialSmoothing(series.Values, 0.3, 0.1)
	lower, upper := timeseries.MovingAverageBounds(series.Values, fixed.S, 1.96)
	last := series.Len() - 1
	holtNext := sanitize(smoothed[len(smoothed)-1])
	bandLower := sanitize(lower[last])
	bandUpper := sanitize(upper[last])
	if f.logger.Enabled(context.Background(), slog.LevelDebug) {
		f.logger.Debug("trend diagnostics",
			"close", series.Values[last],
			"holt_next", holtNext,
			"band_lower", bandLower,
			"band_upper", bandUpper,
		)
	}

	f.logger.Info("stationarity analysis",
		"adf_statistic", adf.Statistic,
		"adf_p_value", adf.PValue,
		"d", fixed.D,
		"seasonal_d", fixed.SD,
		"s", fixed.S,
	)

	return storage.Diagnostics{
		ADFStatistic: adf.Statistic,
		ADFPValue:    adf.PValue,
		D:            fixed.D,
		SD:           fixed.SD,
		S:            fixed.S,
		Observations: series.Len(),
		HoltNext:     holtNext,
		BandLower:    bandLower,
		BandUpper:    bandUpper,
	}, fixed, nil
}

// search fits the candidate grid.
func (f *Forecaster) search(ctx context.Context, series *timeseries.Series, fixed search.Fixed) (*search.Result, time.Duration, error) {
	start := time.Now()

	result, err := f.engine.Search(ctx, series, f.space, fixed)
	if err != nil {
		return nil, 0, err
	}

	duration := time.Since(start)
	if f.metrics != nil {
		f.metrics.RecordSearch(duration.Seconds())
	}

	return result, duration, nil
}

// evaluate forecasts with the winning model and scores its in-sample fit.
func (f *Forecaster) evaluate(result *search.Result, series *timeseries.Series) (*forecast.Report, time.Duration, error) {
	start := time.Now()

	report, err := forecast.Evaluate(result.Best, series, f.horizon)
	if err != nil {
		return nil, 0, err
	}

	duration := time.Since(start)
	if f.metrics != nil {
		f.metrics.RecordEvaluate(duration.Seconds())
	}

	return report, duration, nil
}

// buildSnapshot assembles the published snapshot. Non-finite values are
// zeroed so the snapshot always serializes to JSON.
func (f *Forecaster) buildSnapshot(runID string, diagnostics storage.Diagnostics, result *search.Result, report *forecast.Report) storage.Snapshot {
	var candidates []search.CandidateResult
	for _, c := range result.Successes() {
		if len(candidates) >= f.tableDepth {
			break
		}
		if math.IsInf(c.AIC, 0) || math.IsNaN(c.AIC) {
			continue
		}
		candidates = append(candidates, c)
	}

	return storage.Snapshot{
		RunID:       runID,
		Instrument:  f.instrument,
		GeneratedAt: time.Now().UTC(),
		Horizon:     report.Horizon,
		Values:      sanitizeSlice(report.Values),
		Lower:       sanitizeSlice(report.Lower),
		Upper:       sanitizeSlice(report.Upper),
		BestOrder:   result.Best.Order.String(),
		BestAIC:     sanitize(result.Best.AIC),
		MAPE:        sanitize(report.MAPE),
		Diagnostics: diagnostics,
		Candidates:  candidates,
	}
}

func sanitize(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return v
}

func sanitizeSlice(vs []float64) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = sanitize(v)
	}
	return out
}
