package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/moltworks/molt-oracle/internal/adapter"
	"github.com/moltworks/molt-oracle/internal/api/rest"
	"github.com/moltworks/molt-oracle/internal/api/server"
	"github.com/moltworks/molt-oracle/internal/claim"
	"github.com/moltworks/molt-oracle/internal/config"
	"github.com/moltworks/molt-oracle/internal/identity"
	"github.com/moltworks/molt-oracle/internal/logger"
	"github.com/moltworks/molt-oracle/internal/proofs"
	"github.com/moltworks/molt-oracle/internal/providers/blockscout"
	"github.com/moltworks/molt-oracle/internal/providers/github"
	"github.com/moltworks/molt-oracle/internal/providers/moltbook"
	"github.com/moltworks/molt-oracle/internal/providers/xapi"
	"github.com/moltworks/molt-oracle/internal/reputation"
	"github.com/moltworks/molt-oracle/internal/store"
	"github.com/moltworks/molt-oracle/internal/walletstats"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadAPIConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:     cfg.Debug,
		SentryDSN: cfg.SentryDSN,
		Tags: map[string]string{
			"service": "molt-oracle-api",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.Info("Starting Molt Oracle API")

	// Initialize store. An empty database host selects the in-memory store
	// for local development.
	var dataStore store.Store
	if cfg.Database.Host == "" {
		logger.Warn("No database configured, using in-memory store; data will not survive restarts")
		dataStore = store.NewMemoryStore()
	} else {
		// TranslateError maps unique violations to gorm.ErrDuplicatedKey,
		// which the store relies on for proof idempotency
		db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{TranslateError: true})
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}

		if err := store.AutoMigrate(db); err != nil {
			logger.Fatal("Failed to migrate database", zap.Error(err))
		}

		if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
			logger.Fatal("Failed to configure connection pool", zap.Error(err))
		}
		logger.Info("Connected to database",
			zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
			zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
		)
		dataStore = store.NewPGStore(db)
	}

	// Initialize adapters
	httpClient := adapter.NewHTTPClient(cfg.VerifierTimeout)
	jsonAdapter := adapter.NewJSON()
	clock := adapter.NewClock()

	// Initialize provider clients
	githubClient := github.NewClient(httpClient, cfg.GitHub.APIURL, cfg.GitHub.Token, jsonAdapter)
	xClient := xapi.NewClient(httpClient, cfg.X.APIURL, cfg.X.BearerToken, jsonAdapter)
	moltbookClient := moltbook.NewClient(httpClient, cfg.Moltbook.VerifyURL, cfg.Moltbook.AppKey, cfg.Moltbook.Audience, jsonAdapter)
	blockscoutClient := blockscout.NewClient(httpClient, cfg.Blockscout.BaseURL, jsonAdapter)

	// Wallet enrichment runs in a background pool
	refresher := walletstats.NewRefresher(dataStore, blockscoutClient, clock, walletstats.Config{
		CacheTTL:     cfg.WalletStats.CacheTTL,
		FetchTimeout: cfg.Blockscout.Timeout,
		PoolSize:     cfg.WalletStats.PoolSize,
		QueueSize:    cfg.WalletStats.QueueSize,
	})
	defer refresher.StopAndWait()

	// Assemble domain services
	resolver := identity.NewResolver(moltbookClient, dataStore)
	claims := claim.NewWorkflow(dataStore, xClient, refresher, clock, cfg.Server.PublicURL)
	engine := proofs.NewEngine(dataStore, githubClient, httpClient, clock, cfg.VerifierTimeout)
	aggregator := reputation.NewAggregator(dataStore, refresher)

	// Create server config
	serverConfig := server.Config{
		Debug:        cfg.Debug,
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		RateLimits: rest.RateLimits{
			RegisterPerHour: cfg.RateLimit.RegisterPerHour,
			ProofsPerHour:   cfg.RateLimit.ProofsPerHour,
		},
	}

	// Create and start server
	srv := server.New(serverConfig, claims, engine, aggregator, resolver)

	// Start server in a goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error(err, zap.String("component", "server"))
	}

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	// Shutdown server
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("API server stopped")
}
