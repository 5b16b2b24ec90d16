package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/casperlink/intent-engine/pkg/config"
	"github.com/casperlink/intent-engine/pkg/deploy"
	"github.com/casperlink/intent-engine/pkg/engine"
	"github.com/casperlink/intent-engine/pkg/health"
	"github.com/casperlink/intent-engine/pkg/logger"
	"github.com/casperlink/intent-engine/pkg/pricefeed"
	"github.com/casperlink/intent-engine/pkg/store"
	"github.com/casperlink/intent-engine/pkg/wallet"
)

func main() {
	// Load configuration from environment variables
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.NewStdLogger(cfg.LoggerConfig.Coloring, cfg.LoggerConfig.Level)

	// Set up context with cancellation on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open intent store: %v", err)
	}

	feed := buildFeed(cfg, appLogger)

	builder := deploy.NewBuilder(cfg.ChainName, cfg.RouterPackageHash, cfg.RegistryHash, cfg.SlippageBps, cfg.PaymentMotes)
	signer := wallet.New(cfg.SignerURL, appLogger)

	// Create the intent engine service
	service, err := engine.NewService(cfg, st, feed, signer, builder, appLogger)
	if err != nil {
		log.Fatalf("Failed to create intent engine: %v", err)
	}

	// Start the health and metrics server
	healthServer := health.NewServer(cfg.MetricsPort, service)
	go healthServer.Start()

	// Set up signal handling for graceful shutdown
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-signalCh
		log.Println("Received termination signal, shutting down gracefully...")
		cancel()
	}()

	// Start the service
	log.Println("Starting the intent engine...")
	_ = service.Start(ctx)

	if err := service.Close(); err != nil {
		log.Printf("Failed to close intent store: %v", err)
	}
}

// openStore builds the configured store backend
func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendBadger:
		return store.NewBadgerStore(cfg.StoragePath)
	case config.StorageBackendMemory:
		return store.NewMemoryStore(), nil
	default:
		return store.NewFileStore(cfg.StoragePath), nil
	}
}

// buildFeed assembles the aggregated price source. The oracle reader is
// optional; without it prices come from the external feed and the fallback
// table alone.
func buildFeed(cfg *config.Config, appLogger logger.Logger) pricefeed.Source {
	external := pricefeed.NewClient(cfg.FeedURL, cfg.PriceCacheTTL, appLogger)

	var oracle *pricefeed.OracleReader
	if cfg.OraclePackageHash != "" {
		var err error
		oracle, err = pricefeed.NewOracleReader(cfg.RPCURL, cfg.OraclePackageHash, appLogger)
		if err != nil {
			appLogger.ErrorWith(logger.Oracle, "oracle reader unavailable, continuing without: %v", err)
			oracle = nil
		}
	}

	return pricefeed.NewAggregator(external, oracle, appLogger)
}
