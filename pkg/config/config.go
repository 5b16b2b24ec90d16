package config

import (
	"fmt"
	"log"
	"time"

	"github.com/casperlink/intent-engine/pkg/logger"
	"github.com/joho/godotenv"
)

// Config holds the configuration for the intent engine service
type Config struct {
	FeedURL           string
	SignerURL         string
	RPCURL            string
	OraclePackageHash string
	PollingInterval   time.Duration
	DCATickInterval   time.Duration
	PriceCacheTTL     time.Duration
	MetricsPort       string
	StorageBackend    string
	StoragePath       string
	ChainName         string
	RouterPackageHash string
	RegistryHash      string
	SlippageBps       uint64
	PaymentMotes      string
	Account           string
	AutoExecute       bool
	CircuitBreaker    CircuitBreakerConfig
	LoggerConfig      LoggerConfig
}

// CircuitBreakerConfig holds circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled        bool
	Threshold      int
	WindowDuration time.Duration
	ResetTimeout   time.Duration
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	pollingInterval, err := GetEnvPollingInterval()
	if err != nil {
		return nil, err
	}

	dcaTickInterval, err := GetEnvDCATickInterval()
	if err != nil {
		return nil, err
	}

	priceCacheTTL, err := GetEnvPriceCacheTTL()
	if err != nil {
		return nil, err
	}

	metricsPort, err := GetEnvMetricsPort()
	if err != nil {
		return nil, err
	}

	storageBackend, err := GetEnvStorageBackend()
	if err != nil {
		return nil, err
	}

	cbEnabled, err := GetEnvCircuitBreakerEnabled()
	if err != nil {
		return nil, err
	}

	cbThreshold, err := GetEnvCircuitBreakerThreshold()
	if err != nil {
		return nil, err
	}

	cbWindow, err := GetEnvCircuitBreakerWindow()
	if err != nil {
		return nil, err
	}

	cbReset, err := GetEnvCircuitBreakerReset()
	if err != nil {
		return nil, err
	}

	slippageBps, err := GetEnvSlippageBps()
	if err != nil {
		return nil, err
	}

	autoExecute, err := GetEnvAutoExecute()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvLogColoring()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		FeedURL:           GetEnvFeedURL(),
		SignerURL:         GetEnvSignerURL(),
		RPCURL:            GetEnvRPCURL(),
		OraclePackageHash: GetEnvOraclePackageHash(),
		PollingInterval:   pollingInterval,
		DCATickInterval:   dcaTickInterval,
		PriceCacheTTL:     priceCacheTTL,
		MetricsPort:       metricsPort,
		StorageBackend:    storageBackend,
		StoragePath:       GetEnvStoragePath(),
		ChainName:         GetEnvChainName(),
		RouterPackageHash: GetEnvRouterPackageHash(),
		RegistryHash:      GetEnvRegistryHash(),
		SlippageBps:       slippageBps,
		PaymentMotes:      GetEnvPaymentMotes(),
		Account:           GetEnvAccount(),
		AutoExecute:       autoExecute,
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:        cbEnabled,
			Threshold:      cbThreshold,
			WindowDuration: cbWindow,
			ResetTimeout:   cbReset,
		},
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
		},
	}

	// Validate required environment variables
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.FeedURL == "" {
		return fmt.Errorf("FEED_URL environment variable is required")
	}
	if cfg.StorageBackend != StorageBackendFile &&
		cfg.StorageBackend != StorageBackendBadger &&
		cfg.StorageBackend != StorageBackendMemory {
		return fmt.Errorf("invalid STORAGE_BACKEND value: %s", cfg.StorageBackend)
	}
	if cfg.StorageBackend != StorageBackendMemory && cfg.StoragePath == "" {
		return fmt.Errorf("STORAGE_PATH is required for the %s backend", cfg.StorageBackend)
	}
	return nil
}
