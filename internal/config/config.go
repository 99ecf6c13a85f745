// Package config loads the trading engine's runtime configuration from the
// environment, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all runtime configuration for the trading engine.
type Config struct {
	Port            int
	LogLevel        string
	DatabaseURL     string // empty selects the in-memory store
	RedisURL        string // empty disables the cache
	CacheTTL        time.Duration
	StartingBalance decimal.Decimal
	PriceTickEvery  time.Duration
	MaxActiveAlerts int
	MaxWatchlist    int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads a .env file if one exists (real environment variables win),
// then reads configuration from the environment, applies defaults, and
// validates values. It returns an error for any invalid value.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	port, err := getInt("PORT", 8080)
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid PORT: %q", os.Getenv("PORT"))
	}

	logLevel := strings.ToLower(getStr("LOG_LEVEL", "info"))
	if !isValidLogLevel(logLevel) {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %q, must be one of: debug, info, warn, error", logLevel)
	}

	cacheTTL, err := getPositiveDuration("CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, err
	}

	startingBalance, err := getDecimal("STARTING_BALANCE", decimal.NewFromInt(100000))
	if err != nil {
		return nil, fmt.Errorf("invalid STARTING_BALANCE: %w", err)
	}
	if !startingBalance.IsPositive() {
		return nil, fmt.Errorf("invalid STARTING_BALANCE: must be positive, got %s", startingBalance)
	}

	tickEvery, err := getPositiveDuration("PRICE_TICK_EVERY", 5*time.Second)
	if err != nil {
		return nil, err
	}

	maxAlerts, err := getInt("MAX_ACTIVE_ALERTS", 10)
	if err != nil || maxAlerts < 1 {
		return nil, fmt.Errorf("invalid MAX_ACTIVE_ALERTS: %q", os.Getenv("MAX_ACTIVE_ALERTS"))
	}

	maxWatchlist, err := getInt("MAX_WATCHLIST_SIZE", 20)
	if err != nil || maxWatchlist < 1 {
		return nil, fmt.Errorf("invalid MAX_WATCHLIST_SIZE: %q", os.Getenv("MAX_WATCHLIST_SIZE"))
	}

	readTimeout, err := getPositiveDuration("READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	writeTimeout, err := getPositiveDuration("WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	idleTimeout, err := getPositiveDuration("IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := getPositiveDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:            port,
		LogLevel:        logLevel,
		DatabaseURL:     getStr("DATABASE_URL", ""),
		RedisURL:        getStr("REDIS_URL", ""),
		CacheTTL:        cacheTTL,
		StartingBalance: startingBalance,
		PriceTickEvery:  tickEvery,
		MaxActiveAlerts: maxAlerts,
		MaxWatchlist:    maxWatchlist,
		ReadTimeout:     readTimeout,
		WriteTimeout:    writeTimeout,
		IdleTimeout:     idleTimeout,
		ShutdownTimeout: shutdownTimeout,
	}, nil
}

func getStr(key, defaultVal string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	return v
}

func getInt(key string, defaultVal int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal, nil
	}
	return strconv.Atoi(v)
}

func getDecimal(key string, defaultVal decimal.Decimal) (decimal.Decimal, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal, nil
	}
	return decimal.NewFromString(v)
}

func getPositiveDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive, got %s", key, d)
	}
	return d, nil
}

func isValidLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}
