package storage

import (
	"time"

	"github.com/clearledger/reconcile-backend/internal/domain/record"
)

// MatchKind tags how a reconciliation decision was reached.
type MatchKind string

const (
	// MatchExact means amount (or its negation) and date matched exactly.
	MatchExact MatchKind = "exact"
	// MatchFuzzyDate means amount matched and the dates were within the
	// fuzzy window.
	MatchFuzzyDate MatchKind = "fuzzy_date"
	// MatchMismatch means no acceptable ledger pairing was found.
	MatchMismatch MatchKind = "mismatch"
)

// StatementBatch is one uploaded bank statement file.
type StatementBatch struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	Institution string    `json:"institution"`
	FormatType  string    `json:"format_type"`
	RecordCount int       `json:"record_count"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// LedgerBatch is one uploaded internal ledger file.
type LedgerBatch struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	RecordCount int       `json:"record_count"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// ExternalRecord is a canonical record on the bank side, persisted with its
// system identity and batch membership. Records are immutable once saved.
type ExternalRecord struct {
	ID      string        `json:"id"`
	BatchID string        `json:"batch_id"`
	Record  record.Record `json:"record"`
}

// InternalRecord is a canonical record on the ledger side.
type InternalRecord struct {
	ID      string        `json:"id"`
	BatchID string        `json:"batch_id"`
	Record  record.Record `json:"record"`
}

// Match is the terminal reconciliation decision for one external record.
// InternalID is nil for a mismatch. Matches are immutable: they are never
// re-scored or deleted outside a bulk reset.
type Match struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"external_id"`
	InternalID *string   `json:"internal_id,omitempty"`
	Kind       MatchKind `json:"kind"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateMatchParams carries one match-creation decision from the engine.
type CreateMatchParams struct {
	ExternalID string
	InternalID *string
	Kind       MatchKind
	Confidence float64
}

// MatchActivity is a match joined with both-side descriptions for display.
type MatchActivity struct {
	MatchID    string    `json:"id"`
	Kind       MatchKind `json:"match_type"`
	Amount     string    `json:"amount"`
	Date       string    `json:"date"`
	BankDesc   string    `json:"bank_desc"`
	LedgerDesc string    `json:"ledger_desc"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReconcileStats are the aggregate counters shown on the dashboard.
type ReconcileStats struct {
	TotalExternal      int     `json:"total_transactions"`
	TotalInternal      int     `json:"total_ledger_entries"`
	TotalMatches       int     `json:"total_matches"`
	ReconciliationRate float64 `json:"reconciliation_rate"`
}
