// Package store builds the snapshot store from configuration.
package store

import (
	"log/slog"
	"os"

	"github.com/quantfold/pricecast/cmd/forecaster/config"
	"github.com/quantfold/pricecast/pkg/storage"
)

// New creates the configured storage backend. Exits on a backend that
// cannot be reached; a forecaster without a store has nothing to publish.
func New(cfg *config.Config, logger *slog.Logger) storage.Store {
	switch cfg.Storage {
	case "redis":
		logger.Info("using redis storage",
			"addr", cfg.RedisAddr,
			"db", cfg.RedisDB,
			"ttl", cfg.RedisTTL,
		)
		s, err := storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		return s

	default:
		logger.Info("using in-memory storage")
		return storage.NewMemoryStore()
	}
}
