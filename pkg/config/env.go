package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/casperlink/intent-engine/pkg/logger"
)

const (
	// Storage backend names accepted by STORAGE_BACKEND
	StorageBackendFile   = "file"
	StorageBackendBadger = "badger"
	StorageBackendMemory = "memory"

	// DefaultPollingInterval defines the default price polling interval in seconds
	DefaultPollingInterval = 15

	// DefaultDCATickInterval defines the default DCA countdown tick in seconds
	DefaultDCATickInterval = 1

	// DefaultPriceCacheTTL defines the default price snapshot cache TTL in seconds
	DefaultPriceCacheTTL = 30

	// DefaultMetricsPort defines the default port for the metrics server
	DefaultMetricsPort = "8080"

	// DefaultStorageBackend defines the default intent store backend
	DefaultStorageBackend = StorageBackendFile

	// DefaultStoragePath defines the default path of the file store
	DefaultStoragePath = "intents.json"

	// DefaultFeedURL defines the default price aggregation endpoint
	DefaultFeedURL = "http://localhost:3000/api/prices"

	// DefaultSignerURL defines the default wallet signer endpoint
	DefaultSignerURL = "http://localhost:4000"

	// DefaultRPCURL defines the default node JSON-RPC endpoint
	DefaultRPCURL = "https://rpc.testnet.casperlabs.io/rpc"

	// DefaultChainName defines the network name stamped on deploys
	DefaultChainName = "casper-test"

	// DefaultOraclePackageHash is the testnet oracle contract package
	DefaultOraclePackageHash = "c558b459ba4e9d8a379bcef9629660d8cf9c34fa6e9c1165324959e433bc22ac"

	// DefaultRouterPackageHash is the testnet DEX router package
	DefaultRouterPackageHash = "04a11a367e708c52557930c4e9c1301f4465100d1b1b6d0a62b48d3e32402867"

	// DefaultSlippageBps defines the default slippage tolerance in basis points
	DefaultSlippageBps = 100

	// DefaultPaymentMotes defines the default deploy payment (15 CSPR)
	DefaultPaymentMotes = "15000000000"

	// DefaultAutoExecute defines whether scheduled intents execute automatically
	DefaultAutoExecute = true

	// DefaultCircuitBreakerEnabled defines whether the circuit breaker is enabled
	DefaultCircuitBreakerEnabled = true

	// DefaultCircuitBreakerThreshold defines the number of failures before the circuit breaker trips
	DefaultCircuitBreakerThreshold = 5

	// DefaultCircuitBreakerWindow defines the time window for the circuit breaker in seconds
	DefaultCircuitBreakerWindow = 60

	// DefaultCircuitBreakerReset defines the reset timeout for the circuit breaker in seconds
	DefaultCircuitBreakerReset = 120
)

// GetEnvFeedURL returns the price aggregation endpoint from environment variables
func GetEnvFeedURL() string {
	if v := os.Getenv("FEED_URL"); v != "" {
		return v
	}
	return DefaultFeedURL
}

// GetEnvSignerURL returns the wallet signer endpoint from environment variables
func GetEnvSignerURL() string {
	if v := os.Getenv("SIGNER_URL"); v != "" {
		return v
	}
	return DefaultSignerURL
}

// GetEnvRPCURL returns the node JSON-RPC endpoint from environment variables
func GetEnvRPCURL() string {
	if v := os.Getenv("RPC_URL"); v != "" {
		return v
	}
	return DefaultRPCURL
}

// GetEnvOraclePackageHash returns the oracle contract package hash from environment variables
func GetEnvOraclePackageHash() string {
	if v := os.Getenv("ORACLE_PACKAGE_HASH"); v != "" {
		return v
	}
	return DefaultOraclePackageHash
}

// GetEnvChainName returns the network name from environment variables
func GetEnvChainName() string {
	if v := os.Getenv("CHAIN_NAME"); v != "" {
		return v
	}
	return DefaultChainName
}

// GetEnvRouterPackageHash returns the DEX router package hash from environment variables
func GetEnvRouterPackageHash() string {
	if v := os.Getenv("ROUTER_PACKAGE_HASH"); v != "" {
		return v
	}
	return DefaultRouterPackageHash
}

// GetEnvRegistryHash returns the intent registry contract hash from environment variables.
// Empty means cross-venue intent registration is unavailable.
func GetEnvRegistryHash() string {
	return os.Getenv("REGISTRY_HASH")
}

// GetEnvAccount returns the connected account public key for headless runs.
// Empty means no account is connected and auto-execution stays idle.
func GetEnvAccount() string {
	return os.Getenv("ACCOUNT_PUBLIC_KEY")
}

// GetEnvStoragePath returns the intent store path from environment variables
func GetEnvStoragePath() string {
	if v := os.Getenv("STORAGE_PATH"); v != "" {
		return v
	}
	return DefaultStoragePath
}

// GetEnvStorageBackend returns the intent store backend from environment variables
func GetEnvStorageBackend() (string, error) {
	backend := os.Getenv("STORAGE_BACKEND")
	if backend == "" {
		return DefaultStorageBackend, nil
	}
	if backend != StorageBackendFile && backend != StorageBackendBadger && backend != StorageBackendMemory {
		return "", fmt.Errorf("invalid STORAGE_BACKEND value: %s, must be 'file', 'badger' or 'memory'", backend)
	}
	return backend, nil
}

// GetEnvPollingInterval returns the price polling interval in seconds from environment variables
func GetEnvPollingInterval() (time.Duration, error) {
	pollingInterval := os.Getenv("POLLING_INTERVAL")
	if pollingInterval == "" {
		return time.Duration(DefaultPollingInterval) * time.Second, nil
	}

	interval, err := strconv.Atoi(pollingInterval)
	if err != nil {
		return 0, fmt.Errorf("invalid POLLING_INTERVAL value: %s, must be an integer", pollingInterval)
	}
	if interval <= 0 {
		return 0, fmt.Errorf("POLLING_INTERVAL must be greater than 0")
	}
	return time.Duration(interval) * time.Second, nil
}

// GetEnvDCATickInterval returns the DCA countdown tick interval in seconds from environment variables
func GetEnvDCATickInterval() (time.Duration, error) {
	tick := os.Getenv("DCA_TICK_INTERVAL")
	if tick == "" {
		return time.Duration(DefaultDCATickInterval) * time.Second, nil
	}

	interval, err := strconv.Atoi(tick)
	if err != nil {
		return 0, fmt.Errorf("invalid DCA_TICK_INTERVAL value: %s, must be an integer", tick)
	}
	if interval <= 0 {
		return 0, fmt.Errorf("DCA_TICK_INTERVAL must be greater than 0")
	}
	return time.Duration(interval) * time.Second, nil
}

// GetEnvPriceCacheTTL returns the price cache TTL in seconds from environment variables
func GetEnvPriceCacheTTL() (time.Duration, error) {
	ttl := os.Getenv("PRICE_CACHE_TTL")
	if ttl == "" {
		return time.Duration(DefaultPriceCacheTTL) * time.Second, nil
	}

	seconds, err := strconv.Atoi(ttl)
	if err != nil {
		return 0, fmt.Errorf("invalid PRICE_CACHE_TTL value: %s, must be an integer", ttl)
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("PRICE_CACHE_TTL must be greater than 0")
	}
	return time.Duration(seconds) * time.Second, nil
}

// GetEnvMetricsPort returns the metrics server port from environment variables
func GetEnvMetricsPort() (string, error) {
	metricsPort := os.Getenv("METRICS_PORT")
	if metricsPort == "" {
		return DefaultMetricsPort, nil
	}

	// Validate port format
	if _, err := strconv.Atoi(metricsPort); err != nil {
		return "", fmt.Errorf("invalid METRICS_PORT value: %s, must be a valid integer", metricsPort)
	}
	return metricsPort, nil
}

// GetEnvSlippageBps returns the slippage tolerance in basis points from environment variables
func GetEnvSlippageBps() (uint64, error) {
	bps := os.Getenv("SLIPPAGE_BPS")
	if bps == "" {
		return DefaultSlippageBps, nil
	}

	value, err := strconv.ParseUint(bps, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid SLIPPAGE_BPS value: %s, must be an unsigned integer", bps)
	}
	if value > 10000 {
		return 0, fmt.Errorf("SLIPPAGE_BPS must not exceed 10000")
	}
	return value, nil
}

// GetEnvPaymentMotes returns the deploy payment amount in motes from environment variables
func GetEnvPaymentMotes() string {
	if v := os.Getenv("PAYMENT_MOTES"); v != "" {
		return v
	}
	return DefaultPaymentMotes
}

// GetEnvAutoExecute returns whether automatic DCA execution is enabled from environment variables
func GetEnvAutoExecute() (bool, error) {
	enabled := os.Getenv("AUTO_EXECUTE")
	if enabled == "" {
		return DefaultAutoExecute, nil
	}

	if enabled == "true" {
		return true, nil
	} else if enabled == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid AUTO_EXECUTE value: %s, must be 'true' or 'false'", enabled)
}

// GetEnvCircuitBreakerEnabled returns whether the circuit breaker is enabled from environment variables
func GetEnvCircuitBreakerEnabled() (bool, error) {
	enabled := os.Getenv("CIRCUIT_BREAKER_ENABLED")
	if enabled == "" {
		return DefaultCircuitBreakerEnabled, nil
	}

	if enabled == "true" {
		return true, nil
	} else if enabled == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid CIRCUIT_BREAKER_ENABLED value: %s, must be 'true' or 'false'", enabled)
}

// GetEnvCircuitBreakerThreshold returns the circuit breaker threshold from environment variables
func GetEnvCircuitBreakerThreshold() (int, error) {
	threshold := os.Getenv("CIRCUIT_BREAKER_THRESHOLD")
	if threshold == "" {
		return DefaultCircuitBreakerThreshold, nil
	}

	thresholdInt, err := strconv.Atoi(threshold)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_THRESHOLD value: %s, must be an integer", threshold)
	}
	if thresholdInt <= 0 {
		return 0, fmt.Errorf("CIRCUIT_BREAKER_THRESHOLD must be greater than 0")
	}
	return thresholdInt, nil
}

// GetEnvCircuitBreakerWindow returns the circuit breaker window duration from environment variables
func GetEnvCircuitBreakerWindow() (time.Duration, error) {
	window := os.Getenv("CIRCUIT_BREAKER_WINDOW")
	if window == "" {
		return DefaultCircuitBreakerWindow * time.Second, nil
	}

	parsed, err := time.ParseDuration(window)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_WINDOW value: %s, must be a valid duration string", window)
	}
	return parsed, nil
}

// GetEnvCircuitBreakerReset returns the circuit breaker reset timeout from environment variables
func GetEnvCircuitBreakerReset() (time.Duration, error) {
	reset := os.Getenv("CIRCUIT_BREAKER_RESET")
	if reset == "" {
		return DefaultCircuitBreakerReset * time.Second, nil
	}

	parsed, err := time.ParseDuration(reset)
	if err != nil {
		return 0, fmt.Errorf("invalid CIRCUIT_BREAKER_RESET value: %s, must be a valid duration string", reset)
	}
	return parsed, nil
}

// GetEnvLogLevel returns the log level from environment variables
func GetEnvLogLevel() (logger.Level, error) {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		return logger.InfoLevel, nil
	}

	switch level {
	case "debug", "info", "notice", "error":
		return logger.ParseLevel(level), nil
	}
	return 0, fmt.Errorf("invalid LOG_LEVEL value: %s, must be 'debug', 'info', 'notice' or 'error'", level)
}

// GetEnvLogColoring returns whether log coloring is enabled from environment variables
func GetEnvLogColoring() (bool, error) {
	coloring := os.Getenv("LOG_COLORING")
	if coloring == "" {
		return true, nil
	}

	if coloring == "true" {
		return true, nil
	} else if coloring == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid LOG_COLORING value: %s, must be 'true' or 'false'", coloring)
}
