// Package config provides configuration parsing and validation for the
// forecaster.
//
// It handles both command-line flags and environment variables, with flags
// taking precedence. The Config struct contains all runtime configuration:
//   - Instrument identification and data source settings
//   - Search space (order ranges, differencing, seasonal period)
//   - Fitting controls (workers, per-candidate timeout)
//   - Forecast parameters (horizon, run interval)
//   - Storage backend (memory or redis)
//   - Logging and TLS configuration
//
// Supported configuration sources (in order of precedence):
//  1. Command-line flags
//  2. Environment variables
//  3. Default values
//
// Example usage:
//
//	cfg := config.ParseFlags()
//	if err := cfg.Validate(); err != nil { ... }
package config

import (
	"flag"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/quantfold/pricecast/pkg/search"
	"github.com/quantfold/pricecast/pkg/tls"
)

// Config holds all forecaster configuration.
type Config struct {
	Listen    string
	LogFormat string
	LogLevel  string

	Storage       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
	TLS           tls.Config

	Instrument    string
	Adapter       string
	AdapterConfig map[string]string
	LookbackDays  int

	PRange  string
	QRange  string
	SPRange string
	SQRange string

	// D and SD are the differencing degrees; -1 selects them from the
	// stationarity analysis at run time.
	D  int
	SD int
	S  int

	MaxD         int
	Significance float64

	Workers    int
	FitTimeout time.Duration
	TableDepth int

	Horizon  int
	Interval time.Duration
	Once     bool

	// Space and Fixed are derived by Validate from the range flags.
	Space search.Space
	Fixed search.Fixed
}

// ParseFlags parses command-line flags and environment variables into a
// Config. Environment variables are fallbacks when flags are not provided.
func ParseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8081"), "HTTP listen address")

	flag.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	flag.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	flag.StringVar(&cfg.Storage, "storage", getEnv("STORAGE", "memory"), "Storage backend: memory or redis")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	flag.StringVar(&cfg.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
	flag.DurationVar(&cfg.RedisTTL, "redis-ttl", getEnvDuration("REDIS_TTL", 24*time.Hour), "Redis snapshot TTL")

	flag.BoolVar(&cfg.TLS.Enabled, "tls-enabled", getEnvBool("TLS_ENABLED", false), "Enable TLS for HTTP server")
	flag.StringVar(&cfg.TLS.CertFile, "tls-cert-file", getEnv("TLS_CERT_FILE", ""), "TLS certificate file")
	flag.StringVar(&cfg.TLS.KeyFile, "tls-key-file", getEnv("TLS_KEY_FILE", ""), "TLS private key file")
	flag.StringVar(&cfg.TLS.CAFile, "tls-ca-file", getEnv("TLS_CA_FILE", ""), "TLS CA certificate file for client verification")

	flag.StringVar(&cfg.Instrument, "instrument", getEnv("INSTRUMENT", ""), "Instrument ticker (required)")
	flag.StringVar(&cfg.Adapter, "adapter", getEnv("ADAPTER", ""), "Adapter type: csv or http")
	flag.IntVar(&cfg.LookbackDays, "lookback-days", getEnvInt("LOOKBACK_DAYS", 0), "Days of history to load (0 = full history)")

	flag.StringVar(&cfg.PRange, "p-range", getEnv("P_RANGE", "0-4"), "Non-seasonal AR order range, e.g. 0-4")
	flag.StringVar(&cfg.QRange, "q-range", getEnv("Q_RANGE", "0-4"), "Non-seasonal MA order range")
	flag.StringVar(&cfg.SPRange, "sp-range", getEnv("SP_RANGE", "0-4"), "Seasonal AR order range")
	flag.StringVar(&cfg.SQRange, "sq-range", getEnv("SQ_RANGE", "0-4"), "Seasonal MA order range")

	flag.IntVar(&cfg.D, "d", getEnvInt("D", -1), "Non-seasonal differencing degree (-1 = from stationarity analysis)")
	flag.IntVar(&cfg.SD, "seasonal-d", getEnvInt("SEASONAL_D", 1), "Seasonal differencing degree (-1 = from autocorrelation)")
	flag.IntVar(&cfg.S, "s", getEnvInt("S", 5), "Seasonal period in trading days")
	flag.IntVar(&cfg.MaxD, "max-d", getEnvInt("MAX_D", 2), "Cap on the differencing degree chosen automatically")
	flag.Float64Var(&cfg.Significance, "significance", getEnvFloat("SIGNIFICANCE", 0.05), "ADF p-value threshold for stationarity")

	flag.IntVar(&cfg.Workers, "workers", getEnvInt("WORKERS", 4), "Concurrent candidate fits")
	flag.DurationVar(&cfg.FitTimeout, "fit-timeout", getEnvDuration("FIT_TIMEOUT", 30*time.Second), "Soft per-candidate fit deadline (0 = none)")
	flag.IntVar(&cfg.TableDepth, "table-depth", getEnvInt("TABLE_DEPTH", 10), "Ranked candidates kept in the published snapshot (0 = none)")

	flag.IntVar(&cfg.Horizon, "horizon", getEnvInt("HORIZON", 5), "Forecast horizon in trading days")
	flag.DurationVar(&cfg.Interval, "interval", getEnvDuration("INTERVAL", 24*time.Hour), "Time between forecasting runs")
	flag.BoolVar(&cfg.Once, "once", getEnvBool("ONCE", false), "Run a single forecasting pass and exit")

	flag.Parse()

	cfg.AdapterConfig = parseAdapterConfig()

	return cfg
}

var instrumentRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,62}$`)

// Validate checks the configuration and derives the search space from the
// range flags.
func (c *Config) Validate() error {
	if c.Instrument == "" {
		return fmt.Errorf("instrument is required")
	}
	if !instrumentRegex.MatchString(c.Instrument) {
		return fmt.Errorf("invalid instrument %q (must be alphanumeric with dot/dash/underscore, 1-63 chars)", c.Instrument)
	}
	if c.Adapter == "" {
		return fmt.Errorf("adapter is required")
	}

	var err error
	if c.Space.P, err = search.ParseRange(c.PRange); err != nil {
		return fmt.Errorf("p-range: %w", err)
	}
	if c.Space.Q, err = search.ParseRange(c.QRange); err != nil {
		return fmt.Errorf("q-range: %w", err)
	}
	if c.Space.SP, err = search.ParseRange(c.SPRange); err != nil {
		return fmt.Errorf("sp-range: %w", err)
	}
	if c.Space.SQ, err = search.ParseRange(c.SQRange); err != nil {
		return fmt.Errorf("sq-range: %w", err)
	}

	if c.S < 1 {
		return fmt.Errorf("seasonal period must be >= 1, got %d", c.S)
	}
	if c.D < -1 || c.D > c.MaxD {
		return fmt.Errorf("d must be -1 (auto) or between 0 and %d, got %d", c.MaxD, c.D)
	}
	if c.SD < -1 || c.SD > 1 {
		return fmt.Errorf("seasonal-d must be -1 (auto), 0, or 1, got %d", c.SD)
	}
	if c.Significance <= 0 || c.Significance >= 1 {
		return fmt.Errorf("significance must be in (0, 1), got %v", c.Significance)
	}
	if c.Horizon < 1 {
		return fmt.Errorf("horizon must be >= 1, got %d", c.Horizon)
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.TableDepth < 0 {
		c.TableDepth = 0
	}
	if c.Interval <= 0 && !c.Once {
		return fmt.Errorf("interval must be > 0 when running continuously")
	}

	if c.Storage != "memory" && c.Storage != "redis" {
		return fmt.Errorf("invalid storage %q (must be memory or redis)", c.Storage)
	}
	if err := c.TLS.Validate(); err != nil {
		return err
	}

	c.Fixed = search.Fixed{D: c.D, SD: c.SD, S: c.S}
	return nil
}

// parseAdapterConfig reads ADAPTER_* environment variables into a generic
// configuration map. Names convert to camelCase for the map keys, e.g.
// ADAPTER_CLOSE_PATH becomes closePath.
func parseAdapterConfig() map[string]string {
	config := make(map[string]string)

	for _, env := range os.Environ() {
		if len(env) > 8 && env[:8] == "ADAPTER_" {
			parts := splitEnv(env)
			if len(parts) == 2 {
				key := toLowerCamelCase(parts[0][8:])
				config[key] = parts[1]
			}
		}
	}

	return config
}

func splitEnv(env string) []string {
	for i := 0; i < len(env); i++ {
		if env[i] == '=' {
			return []string{env[:i], env[i+1:]}
		}
	}
	return []string{env}
}

func toLowerCamelCase(s string) string {
	if s == "" {
		return s
	}
	result := make([]rune, 0, len(s))
	nextUpper := false
	for i, r := range s {
		if r == '_' {
			nextUpper = true
			continue
		}
		switch {
		case i == 0:
			result = append(result, toLower(r))
		case nextUpper:
			result = append(result, r)
			nextUpper = false
		default:
			result = append(result, toLower(r))
		}
	}
	return string(result)
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + 32
	}
	return r
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}
