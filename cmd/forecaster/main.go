// Command forecaster implements the pricecast forecasting service.
//
// The forecaster runs a continuous loop that:
//  1. Collects the daily closing-price history of an instrument
//  2. Settles the differencing degrees from a stationarity analysis
//  3. Fits a grid of seasonal ARIMA candidates and picks the lowest AIC
//  4. Forecasts the configured horizon and scores the in-sample fit
//  5. Publishes the snapshot via HTTP API at /forecast/current
//
// The forecaster serves an HTTP API on port 8081 (configurable) providing:
//   - GET /forecast/current?instrument=<ticker> - Retrieve latest snapshot
//   - GET /healthz - Health check endpoint
//   - GET /metrics - Prometheus metrics endpoint
//
// Usage:
//
//	forecaster \
//	  -instrument=ACME \
//	  -adapter=csv \
//	  -p-range=0-4 -q-range=0-4 -sp-range=0-4 -sq-range=0-4 \
//	  -s=5 -horizon=5 \
//	  -once
//
// Environment variables:
//
//	INSTRUMENT   - Instrument ticker (required)
//	ADAPTER      - Adapter type: csv or http (required)
//	ADAPTER_*    - Adapter configuration, e.g. ADAPTER_PATH, ADAPTER_URL
//	P_RANGE      - Non-seasonal AR order range (default: 0-4)
//	Q_RANGE      - Non-seasonal MA order range (default: 0-4)
//	SP_RANGE     - Seasonal AR order range (default: 0-4)
//	SQ_RANGE     - Seasonal MA order range (default: 0-4)
//	D            - Differencing degree, -1 derives it per run (default: -1)
//	SEASONAL_D   - Seasonal differencing degree (default: 1)
//	S            - Seasonal period in trading days (default: 5)
//	HORIZON      - Forecast horizon in trading days (default: 5)
//	WORKERS      - Concurrent candidate fits (default: 4)
//	FIT_TIMEOUT  - Soft per-candidate deadline (default: 30s)
//	INTERVAL     - Time between runs (default: 24h)
//	LOG_LEVEL    - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT   - Logging format: text, json (default: text)
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quantfold/pricecast/cmd/forecaster/config"
	"github.com/quantfold/pricecast/cmd/forecaster/logger"
	"github.com/quantfold/pricecast/cmd/forecaster/metrics"
	"github.com/quantfold/pricecast/cmd/forecaster/router"
	"github.com/quantfold/pricecast/cmd/forecaster/store"
	"github.com/quantfold/pricecast/pkg/adapters"
	"github.com/quantfold/pricecast/pkg/httpx"
	"github.com/quantfold/pricecast/pkg/search"
	pricecasttls "github.com/quantfold/pricecast/pkg/tls"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	cfg := config.ParseFlags()

	log := logger.New(cfg)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	log.Info("starting pricecast forecaster",
		"version", version,
		"instrument", cfg.Instrument,
		"adapter", cfg.Adapter,
		"candidates", cfg.Space.Size(),
	)

	adapter, err := adapters.New(cfg.Adapter, cfg.AdapterConfig)
	if err != nil {
		log.Error("failed to build adapter", "error", err)
		os.Exit(1)
	}

	snapshots := store.New(cfg, log)
	if closer, ok := snapshots.(interface{ Close() error }); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				log.Error("failed to close store", "error", err)
			}
		}()
	}

	engine := search.New(search.Config{
		Workers:    cfg.Workers,
		FitTimeout: cfg.FitTimeout,
	}, log)

	f := New(
		Options{
			Instrument:   cfg.Instrument,
			Space:        cfg.Space,
			Fixed:        cfg.Fixed,
			Horizon:      cfg.Horizon,
			LookbackDays: cfg.LookbackDays,
			TableDepth:   cfg.TableDepth,
			MaxD:         cfg.MaxD,
			Significance: cfg.Significance,
		},
		adapter,
		engine,
		snapshots,
		log,
		metrics.New(cfg.Instrument, cfg.Adapter),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Once {
		if err := f.Tick(ctx); err != nil {
			log.Error("forecast run failed", "error", err)
			os.Exit(1)
		}
		log.Info("single run complete")
		return
	}

	staleAfter := 2 * cfg.Interval
	handler := router.SetupRoutes(snapshots, staleAfter, log)
	httpServer := httpx.NewServer(cfg.Listen, handler, log)

	if cfg.TLS.Enabled {
		tlsConfig, err := pricecasttls.NewServerTLSConfig(cfg.TLS.CertFile, cfg.TLS.KeyFile, cfg.TLS.CAFile)
		if err != nil {
			log.Error("failed to build TLS config", "error", err)
			os.Exit(1)
		}
		httpServer.SetTLSConfig(tlsConfig)
	}

	go func() {
		if err := f.Run(ctx, cfg.Interval); err != nil && err != context.Canceled {
			log.Error("forecast loop failed", "error", err)
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		if cfg.TLS.Enabled {
			serverErr <- httpServer.StartTLS(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		} else {
			serverErr <- httpServer.Start()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		if err != nil {
			log.Error("server failed", "error", err)
		}
	}

	log.Info("shutting down")
	cancel()

	if err := httpServer.Stop(10 * time.Second); err != nil {
		log.Error("server shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("shutdown complete")
}
