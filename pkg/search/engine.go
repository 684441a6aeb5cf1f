package search

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/quantfold/pricecast/pkg/sarima"
	"github.com/quantfold/pricecast/pkg/timeseries"
)

// ErrNoViableModel is returned when every candidate in the space failed
// to fit.
var ErrNoViableModel = errors.New("search: no candidate produced a viable model")

// CandidateResult records the outcome for one candidate order.
type CandidateResult struct {
	Index int          `json:"index"`
	Order sarima.Order `json:"order"`
	OK    bool         `json:"ok"`
	AIC   float64      `json:"aic"`
	AICc  float64      `json:"aicc"`
	BIC   float64      `json:"bic"`
	Err   string       `json:"error,omitempty"`
}

// Result is the full outcome of a search: the winning model plus the
// ranked table of every candidate tried.
type Result struct {
	Best      *sarima.Model
	BestIndex int

	// Table lists all candidates sorted ascending by AIC, enumeration
	// index breaking ties, failed fits last.
	Table []CandidateResult

	Evaluated int
	Failed    int
	Elapsed   time.Duration
}

// Successes returns the candidates that produced a model, sorted ascending
// by AIC. Failure sentinels are for logs and counters only; consumers
// publishing the table should read it through this accessor.
func (r *Result) Successes() []CandidateResult {
	out := make([]CandidateResult, 0, len(r.Table)-r.Failed)
	for _, c := range r.Table {
		if !c.OK {
			break
		}
		out = append(out, c)
	}
	return out
}

// Config tunes the engine. Zero values fall back to a single worker and
// no per-candidate deadline.
type Config struct {
	// Workers bounds concurrent fits. Results are deterministic for any
	// worker count.
	Workers int

	// FitTimeout is the soft per-candidate deadline. A candidate that
	// exceeds it counts as a failed fit rather than aborting the search.
	FitTimeout time.Duration
}

// Engine runs the grid search.
type Engine struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an engine. A nil logger falls back to slog.Default.
func New(cfg Config, logger *slog.Logger) *Engine {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{cfg: cfg, logger: logger}
}

// Search fits every candidate in the space against the series and selects
// the model with the lowest AIC, ties broken by enumeration order.
// Individual fit failures are recorded and skipped; only cancellation of
// ctx or an unexpected fit error aborts the search. If all candidates
// fail, the table is returned alongside ErrNoViableModel.
func (e *Engine) Search(ctx context.Context, series *timeseries.Series, space Space, fixed Fixed) (*Result, error) {
	started := time.Now()
	orders := space.Enumerate(fixed)

	e.logger.Info("starting model search",
		"candidates", len(orders),
		"space", space.String(),
		"d", fixed.D, "D", fixed.SD, "s", fixed.S,
		"workers", e.cfg.Workers)

	searchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	models := make([]*sarima.Model, len(orders))
	table := make([]CandidateResult, len(orders))

	var (
		wg       sync.WaitGroup
		fatalOne sync.Once
		fatalErr error
	)
	jobs := make(chan int)

	for w := 0; w < e.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				e.fitCandidate(searchCtx, series, orders[idx], idx, models, table, func(err error) {
					fatalOne.Do(func() {
						fatalErr = err
						cancel()
					})
				})
			}
		}()
	}

feed:
	for idx := range orders {
		select {
		case jobs <- idx:
		case <-searchCtx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fatalErr != nil {
		return nil, fatalErr
	}

	bestIdx := -1
	failed := 0
	for i := range table {
		if !table[i].OK {
			failed++
			continue
		}
		if bestIdx < 0 || table[i].AIC < table[bestIdx].AIC {
			bestIdx = i
		}
	}

	sortTable(table)

	result := &Result{
		Table:     table,
		Evaluated: len(orders),
		Failed:    failed,
		Elapsed:   time.Since(started),
	}

	if bestIdx < 0 {
		e.logger.Warn("model search exhausted", "candidates", len(orders), "failed", failed)
		return result, ErrNoViableModel
	}

	result.Best = models[bestIdx]
	result.BestIndex = bestIdx

	e.logger.Info("model search complete",
		"best_order", orders[bestIdx].String(),
		"best_aic", models[bestIdx].AIC,
		"failed", failed,
		"elapsed", result.Elapsed)

	return result, nil
}

// fitCandidate fits one order and records its slot in models/table. Slots
// are disjoint per index, so no locking is needed. Unexpected errors are
// escalated through fatal.
func (e *Engine) fitCandidate(ctx context.Context, series *timeseries.Series, order sarima.Order, idx int, models []*sarima.Model, table []CandidateResult, fatal func(error)) {
	fitCtx := ctx
	if e.cfg.FitTimeout > 0 {
		var cancel context.CancelFunc
		fitCtx, cancel = context.WithTimeout(ctx, e.cfg.FitTimeout)
		defer cancel()
	}

	table[idx] = CandidateResult{Index: idx, Order: order, AIC: math.Inf(1), AICc: math.Inf(1), BIC: math.Inf(1)}

	m := sarima.New(order)
	if err := m.Fit(fitCtx, series); err != nil {
		// The outer context going away is a shutdown, not a candidate
		// failure; the caller reports it once after the pool drains.
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, sarima.ErrFitFailed) {
			e.logger.Debug("candidate rejected", "order", order.String(), "err", err)
			table[idx].Err = err.Error()
			return
		}
		fatal(err)
		return
	}

	models[idx] = m
	table[idx].OK = true
	table[idx].AIC = m.AIC
	table[idx].AICc = m.AICc
	table[idx].BIC = m.BIC
}

// sortTable orders candidates ascending by AIC with the enumeration index
// breaking ties; failed fits sort after every successful one.
func sortTable(table []CandidateResult) {
	sort.SliceStable(table, func(i, j int) bool {
		if table[i].OK != table[j].OK {
			return table[i].OK
		}
		if table[i].AIC != table[j].AIC {
			return table[i].AIC < table[j].AIC
		}
		return table[i].Index < table[j].Index
	})
}
