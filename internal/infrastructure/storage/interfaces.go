package storage

import "context"

// Repository defines the complete storage interface.
// This interface allows swapping implementations (SQLite, PostgreSQL, etc.)
// and makes testing with mocks straightforward.
type Repository interface {
	BatchRepository
	RecordRepository
	MatchRepository
	Close() error
}

// BatchRepository handles statement and ledger upload batches.
type BatchRepository interface {
	// SaveStatementBatch persists a statement batch and its external
	// records as one transactional unit.
	SaveStatementBatch(ctx context.Context, batch *StatementBatch, records []ExternalRecord) error

	// SaveLedgerBatch persists a ledger batch and its internal records as
	// one transactional unit.
	SaveLedgerBatch(ctx context.Context, batch *LedgerBatch, records []InternalRecord) error

	// ListStatementBatches returns all uploaded statement batches, newest
	// first.
	ListStatementBatches(ctx context.Context) ([]StatementBatch, error)
}

// RecordRepository handles reading persisted canonical records.
type RecordRepository interface {
	// ListUnmatchedExternal returns external records with no match yet,
	// in stable insertion order.
	ListUnmatchedExternal(ctx context.Context) ([]ExternalRecord, error)

	// ListUnmatchedInternal returns internal records with no match yet,
	// in stable insertion order. After a run, anything still here is a
	// ledger-only deviation.
	ListUnmatchedInternal(ctx context.Context) ([]InternalRecord, error)
}

// MatchRepository handles match decisions and their reporting views.
type MatchRepository interface {
	// CreateMatch persists one reconciliation decision as a transactional
	// unit and returns the stored match.
	CreateMatch(ctx context.Context, params CreateMatchParams) (*Match, error)

	// ListRecentMatches returns matches joined with both-side
	// descriptions, newest first. limit <= 0 returns all.
	ListRecentMatches(ctx context.Context, limit int) ([]MatchActivity, error)

	// Stats returns the aggregate reconciliation counters.
	Stats(ctx context.Context) (*ReconcileStats, error)

	// Reset deletes all matches, records, and batches.
	Reset(ctx context.Context) error
}
