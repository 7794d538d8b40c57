package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/finvault/papertrader/internal/config"
	"github.com/finvault/papertrader/internal/database"
	"github.com/finvault/papertrader/internal/events"
	"github.com/finvault/papertrader/internal/modules/ledger"
	"github.com/finvault/papertrader/internal/modules/portfolio"
	"github.com/finvault/papertrader/internal/modules/quotes"
	"github.com/finvault/papertrader/internal/modules/quotes/jobs"
	"github.com/finvault/papertrader/internal/scheduler"
	"github.com/finvault/papertrader/internal/server"
	"github.com/finvault/papertrader/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info"})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting papertrader")

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	eventManager := events.NewManager(log)

	// Quote pipeline: ordered providers behind one cache
	cacheRepo := quotes.NewCacheRepository(db.Conn(), log)
	providers := buildProviders(cfg, log)
	if len(providers) == 0 {
		log.Fatal().Msg("No usable quote providers configured")
	}
	aggregator := quotes.NewAggregator(cacheRepo, providers, cfg.QuoteTTL, log)

	// Ledger and valuation
	accountRepo := ledger.NewAccountRepository(db.Conn(), log)
	holdingRepo := ledger.NewHoldingRepository(db.Conn(), log)
	transactionRepo := ledger.NewTransactionRepository(db.Conn(), log)
	ledgerService := ledger.NewService(db, accountRepo, holdingRepo, transactionRepo, aggregator, eventManager, cfg.ConflictRetries, log)
	portfolioService := portfolio.NewService(accountRepo, holdingRepo, aggregator, cfg.ValuationStaleFallback, log)

	// Background cache warm-up
	sched := scheduler.New(log)
	if cfg.CacheWarmupSpec != "" {
		warmup := jobs.NewWarmupJob(aggregator, holdingRepo, eventManager, cfg.ProviderTimeout, log)
		if err := sched.AddJob(cfg.CacheWarmupSpec, warmup); err != nil {
			log.Fatal().Err(err).Msg("Failed to register warm-up job")
		}
	}
	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Port:      cfg.Port,
		Log:       log,
		Ledger:    ledgerService,
		Portfolio: portfolioService,
		Quotes:    aggregator,
		DevMode:   cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

// buildProviders assembles the configured provider chain in priority
// order. Unknown names are logged and skipped; Alpha Vantage is skipped
// when no API key is set.
func buildProviders(cfg *config.Config, log zerolog.Logger) []quotes.Provider {
	var providers []quotes.Provider

	for _, name := range cfg.ProviderOrder {
		switch name {
		case "alphavantage":
			if cfg.AlphaVantageAPIKey == "" {
				log.Warn().Msg("ALPHA_VANTAGE_API_KEY not set, skipping provider")
				continue
			}
			providers = append(providers, quotes.NewAlphaVantage(cfg.AlphaVantageAPIKey, cfg.ProviderTimeout, log))
		case "yahoo":
			providers = append(providers, quotes.NewYahoo(cfg.ProviderTimeout, log))
		default:
			log.Warn().Str("provider", name).Msg("Unknown quote provider, skipping")
		}
	}

	return providers
}
