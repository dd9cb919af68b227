package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"optiondesk/internal/api"
	"optiondesk/internal/auth"
	"optiondesk/internal/config"
	"optiondesk/internal/database"
	"optiondesk/internal/engine"
	"optiondesk/internal/ledger"
	"optiondesk/internal/logger"
	"optiondesk/internal/quotes"

	"go.uber.org/zap"
)

func main() {
	// Load application configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		// We can't use the logger here because it's not initialized yet.
		panic(fmt.Sprintf("could not load config: %v", err))
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Initialize database
	db, err := database.NewDatabase(&cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	// Setup context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigchan := make(chan os.Signal, 1)
		signal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)
		<-sigchan
		log.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	// Start the quote board, optionally seeded from live FX rates.
	board := quotes.NewBoard(&cfg.Quotes, cfg.Instruments, log)
	if cfg.Quotes.SeedEnabled && cfg.Quotes.SeedURL != "" {
		symbols := make([]string, 0, len(cfg.Instruments))
		for _, ins := range cfg.Instruments {
			symbols = append(symbols, ins.Symbol)
		}
		seedCtx, seedCancel := context.WithTimeout(ctx, 15*time.Second)
		rates, err := quotes.NewRatesClient(&cfg.Quotes, log).FetchRates(seedCtx, symbols)
		seedCancel()
		if err != nil {
			log.Warn("Rate seeding failed, using configured base prices", zap.Error(err))
		} else {
			board.Seed(rates)
			log.Info("Seeded instrument prices from live rates", zap.Int("count", len(rates)))
		}
	}
	go board.Run(ctx)

	// Wire the ledger and the settlement engine.
	ldg := ledger.New(db, log)
	eng := engine.NewEngine(log, &cfg, db, ldg, board)
	if err := eng.Start(ctx); err != nil {
		log.Fatal("Failed to start settlement engine", zap.Error(err))
	}

	// Auth service and HTTP API.
	passwords := auth.NewPasswordManager(cfg.Auth.BcryptCost)
	tokens := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL())
	authSvc := auth.NewService(db, log, passwords, tokens, cfg.Trading.SignupBonus)

	server := api.NewServer(&cfg, db, eng, ldg, authSvc, board, log)
	server.Start()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Error("API server shutdown failed", zap.Error(err))
	}
	eng.Stop()

	log.Info("Server has been shut down.")
}
