// Package router configures HTTP routes for the forecaster's API.
//
// Routes configured:
//   - GET /forecast/current?instrument=<ticker> - Retrieve latest snapshot
//   - GET /healthz - Health check endpoint (returns 200 OK)
//   - GET /metrics - Prometheus metrics endpoint
//
// The /forecast/current endpoint returns the latest forecast snapshot in
// JSON: forecast values with interval bounds, the winning order, AIC,
// MAPE, and the stationarity diagnostics. Snapshots older than the stale
// threshold include an X-Pricecast-Stale header.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quantfold/pricecast/pkg/httpx"
	"github.com/quantfold/pricecast/pkg/storage"
)

var instrumentRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,62}$`)

// SetupRoutes configures HTTP endpoints for the forecaster. The returned
// handler logs every request and recovers handler panics to a 500. When
// the store is pingable its health feeds /healthz.
func SetupRoutes(store storage.Store, staleAfter time.Duration, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/healthz", healthHandler(store))
	mux.HandleFunc("/forecast/current", handleGetSnapshot(store, staleAfter, logger))
	mux.Handle("/metrics", promhttp.Handler())

	return httpx.RecoveryMiddleware(logger)(httpx.LoggingMiddleware(logger)(mux))
}

// healthHandler reports the snapshot store's health when the backend
// exposes a ping, and plain liveness otherwise.
func healthHandler(store storage.Store) http.HandlerFunc {
	pinger, ok := store.(interface{ Ping(context.Context) error })
	if !ok {
		return httpx.HealthHandler()
	}
	return httpx.HealthHandlerWithCheck(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return pinger.Ping(ctx)
	})
}

// handleGetSnapshot returns a handler for
// GET /forecast/current?instrument=<ticker>.
func handleGetSnapshot(store storage.Store, staleAfter time.Duration, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		instrument := r.URL.Query().Get("instrument")
		if instrument == "" {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "instrument parameter required")
			return
		}

		if !instrumentRegex.MatchString(instrument) {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "invalid instrument name format")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		snapshot, found, err := store.GetLatest(ctx, instrument)
		if err != nil {
			logger.Error("failed to get snapshot", "instrument", instrument, "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}

		if !found {
			httpx.WriteErrorMessage(w, http.StatusNotFound, fmt.Sprintf("snapshot not found for instrument %q", instrument))
			return
		}

		if staleAfter > 0 && time.Since(snapshot.GeneratedAt) > staleAfter {
			w.Header().Set("X-Pricecast-Stale", "true")
		}

		if err := httpx.WriteJSON(w, http.StatusOK, snapshot); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}
