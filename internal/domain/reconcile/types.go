package reconcile

import (
	"context"
	"time"

	"github.com/clearledger/reconcile-backend/internal/infrastructure/storage"
)

// Repository is the slice of storage the engine needs: read both unmatched
// pools, persist decisions. Each call is a transactional unit.
type Repository interface {
	ListUnmatchedExternal(ctx context.Context) ([]storage.ExternalRecord, error)
	ListUnmatchedInternal(ctx context.Context) ([]storage.InternalRecord, error)
	CreateMatch(ctx context.Context, params storage.CreateMatchParams) (*storage.Match, error)
}

// Config holds engine configuration.
type Config struct {
	// FuzzyWindowDays is the inclusive date distance, in either direction,
	// accepted by the fuzzy pass.
	FuzzyWindowDays int

	// EmitDelay pauses the engine after each progress event so a live
	// observer can follow the stream. Zero disables pacing.
	EmitDelay time.Duration
}

// DefaultConfig returns the production matching parameters.
func DefaultConfig() Config {
	return Config{
		FuzzyWindowDays: 2,
	}
}

// Confidence scores per match kind. Mismatch is a flat zero: no partial
// credit for near misses.
const (
	exactConfidence    = 1.0
	fuzzyConfidence    = 0.85
	mismatchConfidence = 0.0
)

// Stats summarizes one reconciliation run.
type Stats struct {
	ExternalScanned int `json:"bank_items_scanned"`
	InternalScanned int `json:"ledger_items_scanned"`
	ExactMatches    int `json:"exact_matches"`
	FuzzyMatches    int `json:"fuzzy_matches"`
}
