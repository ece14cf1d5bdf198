package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/clearledger/reconcile-backend/internal/api"
	"github.com/clearledger/reconcile-backend/internal/domain/reconcile"
	"github.com/clearledger/reconcile-backend/internal/extract"
	"github.com/clearledger/reconcile-backend/internal/infrastructure/config"
	"github.com/clearledger/reconcile-backend/internal/infrastructure/storage"
	"github.com/clearledger/reconcile-backend/internal/normalize"
	"github.com/clearledger/reconcile-backend/internal/observability"
	"github.com/clearledger/reconcile-backend/internal/progress"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Configuration file path")
	flag.Parse()

	// A local .env file is optional.
	_ = godotenv.Load()

	cfg := config.LoadOrEnvWithPath(*configFile)
	logger := observability.NewLogger(cfg.Observability.Logging)

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()

	var extractor normalize.Extractor
	if cfg.Gemini.APIKey != "" {
		gemini, err := extract.NewGeminiExtractor(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, logger)
		if err != nil {
			logger.Error("failed to initialize document extractor", "error", err)
			os.Exit(1)
		}
		extractor = gemini
	} else {
		logger.Warn("no extraction API key configured, document uploads will be rejected")
	}

	normalizer := normalize.New(extractor, logger)
	engine := reconcile.NewEngine(store, reconcile.Config{
		FuzzyWindowDays: cfg.Reconcile.FuzzyWindowDays,
		EmitDelay:       time.Duration(cfg.Reconcile.EmitDelayMillis) * time.Millisecond,
	}, logger)
	hub := progress.NewHub(logger)

	server := api.NewServer(api.Config{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, store, normalizer, engine, hub, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	case <-stop:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
			os.Exit(1)
		}
	}
}
