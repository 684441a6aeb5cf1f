// Package adapters provides data source connectors that retrieve the daily
// closing-price history of an instrument and normalize it into a
// timeseries.Series.
//
// Each adapter implements the Adapter interface and can be plugged into
// the forecasting pipeline. Available adapters:
//   - CSVAdapter: reads a local file of dated close records
//   - HTTPAdapter: generic adapter for any REST API with JSON responses
//
// Adapters are intentionally lightweight. They pull raw observations,
// shape them into an ordered series, and leave cleaning diagnostics and
// modeling to the upper layers.
package adapters

import (
	"context"

	"github.com/quantfold/pricecast/pkg/timeseries"
)

// Adapter is the interface all price sources implement.
//
// Collect is synchronous and must respect context cancellation and
// deadlines.
type Adapter interface {
	// Collect fetches up to lookbackDays of daily closes for the
	// instrument, oldest first with strictly increasing dates. A
	// lookbackDays of zero or less means the source's full history.
	Collect(ctx context.Context, instrument string, lookbackDays int) (*timeseries.Series, error)

	// Name returns a short, unique identifier for the adapter.
	// Example: "csv", "http".
	Name() string
}
