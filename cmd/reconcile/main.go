package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/clearledger/reconcile-backend/internal/domain/reconcile"
	"github.com/clearledger/reconcile-backend/internal/domain/record"
	"github.com/clearledger/reconcile-backend/internal/extract"
	"github.com/clearledger/reconcile-backend/internal/infrastructure/config"
	"github.com/clearledger/reconcile-backend/internal/infrastructure/storage"
	"github.com/clearledger/reconcile-backend/internal/normalize"
	"github.com/clearledger/reconcile-backend/internal/observability"
	"github.com/clearledger/reconcile-backend/internal/progress"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Configuration file path")
		statement   = flag.String("statement", "", "Bank statement file to ingest")
		ledger      = flag.String("ledger", "", "Internal ledger file to ingest")
		institution = flag.String("institution", "Unknown", "Institution name for the statement")
		windowDays  = flag.Int("window", 0, "Fuzzy date window in days (0 = config default)")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	// A local .env file is optional.
	_ = godotenv.Load()

	var cfg *config.Config
	if *configFile != "" {
		cfg = config.LoadOrEnvWithPath(*configFile)
	} else {
		cfg = config.LoadFromEnv()
	}
	if *verbose {
		cfg.Observability.Logging.Level = "debug"
	}
	if *windowDays > 0 {
		cfg.Reconcile.FuzzyWindowDays = *windowDays
	}

	logger := observability.NewLogger(cfg.Observability.Logging)

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	normalizer := newNormalizer(ctx, cfg, logger)

	if *statement != "" {
		records := ingest(ctx, normalizer, *statement, logger)
		batch := &storage.StatementBatch{
			ID:          uuid.NewString(),
			Filename:    filepath.Base(*statement),
			Institution: *institution,
			FormatType:  sourceFormat(records),
			RecordCount: len(records),
			UploadedAt:  time.Now().UTC(),
		}
		externals := make([]storage.ExternalRecord, 0, len(records))
		for _, rec := range records {
			externals = append(externals, storage.ExternalRecord{
				ID:      uuid.NewString(),
				BatchID: batch.ID,
				Record:  rec,
			})
		}
		if err := store.SaveStatementBatch(ctx, batch, externals); err != nil {
			logger.Error("failed to save statement batch", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Ingested %d statement records from %s\n", len(records), *statement)
	}

	if *ledger != "" {
		records := ingest(ctx, normalizer, *ledger, logger)
		batch := &storage.LedgerBatch{
			ID:          uuid.NewString(),
			Filename:    filepath.Base(*ledger),
			RecordCount: len(records),
			UploadedAt:  time.Now().UTC(),
		}
		internals := make([]storage.InternalRecord, 0, len(records))
		for _, rec := range records {
			internals = append(internals, storage.InternalRecord{
				ID:      uuid.NewString(),
				BatchID: batch.ID,
				Record:  rec,
			})
		}
		if err := store.SaveLedgerBatch(ctx, batch, internals); err != nil {
			logger.Error("failed to save ledger batch", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Ingested %d ledger records from %s\n", len(records), *ledger)
	}

	engine := reconcile.NewEngine(store, reconcile.Config{
		FuzzyWindowDays: cfg.Reconcile.FuzzyWindowDays,
	}, logger)

	stats, err := engine.Run(ctx, progress.Noop{})
	if err != nil {
		logger.Error("reconciliation run failed", "error", err)
		os.Exit(1)
	}

	mismatched := stats.ExternalScanned - stats.ExactMatches - stats.FuzzyMatches

	fmt.Println("\nReconciliation Summary")
	fmt.Println("======================")
	fmt.Printf("Bank items scanned:   %d\n", stats.ExternalScanned)
	fmt.Printf("Ledger items scanned: %d\n", stats.InternalScanned)
	fmt.Printf("Exact matches:        %d\n", stats.ExactMatches)
	fmt.Printf("Fuzzy matches:        %d\n", stats.FuzzyMatches)
	fmt.Printf("Mismatches:           %d\n", mismatched)
}

// newNormalizer wires the pipeline, with document extraction only when an
// API key is configured.
func newNormalizer(ctx context.Context, cfg *config.Config, logger *slog.Logger) *normalize.Normalizer {
	var extractor normalize.Extractor
	if cfg.Gemini.APIKey != "" {
		gemini, err := extract.NewGeminiExtractor(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, logger)
		if err != nil {
			logger.Error("failed to initialize document extractor", "error", err)
			os.Exit(1)
		}
		extractor = gemini
	}
	return normalize.New(extractor, logger)
}

func ingest(ctx context.Context, normalizer *normalize.Normalizer, path string, logger *slog.Logger) []record.Record {
	content, err := os.ReadFile(path)
	if err != nil {
		logger.Error("failed to read file", "path", path, "error", err)
		os.Exit(1)
	}

	records, err := normalizer.Normalize(ctx, filepath.Base(path), content, normalize.Options{})
	if err != nil {
		logger.Error("failed to normalize file", "path", path, "error", err)
		os.Exit(1)
	}
	return records
}

func sourceFormat(records []record.Record) string {
	if len(records) > 0 {
		return string(records[0].Format)
	}
	return ""
}
