package dto

import (
	"time"

	"github.com/clearledger/reconcile-backend/internal/domain/reconcile"
	"github.com/clearledger/reconcile-backend/internal/infrastructure/storage"
)

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// NewHealthResponse creates a health response with current timestamp.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// UploadResponse is returned after a statement or ledger file is ingested.
type UploadResponse struct {
	BatchID     string `json:"batch_id"`
	Filename    string `json:"filename"`
	FormatType  string `json:"format_type"`
	RecordCount int    `json:"record_count"`
}

// StatementBatchResponse represents one uploaded statement batch.
type StatementBatchResponse struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	Institution string `json:"institution"`
	FormatType  string `json:"format_type"`
	RecordCount int    `json:"record_count"`
	UploadedAt  string `json:"uploaded_at"`
}

// StatementBatchListResponse is returned when listing statement batches.
type StatementBatchListResponse struct {
	Batches []StatementBatchResponse `json:"batches"`
	Count   int                      `json:"count"`
}

// ToStatementBatchResponse converts a storage batch to an API response.
func ToStatementBatchResponse(batch storage.StatementBatch) StatementBatchResponse {
	return StatementBatchResponse{
		ID:          batch.ID,
		Filename:    batch.Filename,
		Institution: batch.Institution,
		FormatType:  batch.FormatType,
		RecordCount: batch.RecordCount,
		UploadedAt:  batch.UploadedAt.UTC().Format(time.RFC3339),
	}
}

// RunResponse reports the counters of one completed reconciliation run.
type RunResponse struct {
	Status             string `json:"status"`
	BankItemsScanned   int    `json:"bank_items_scanned"`
	LedgerItemsScanned int    `json:"ledger_items_scanned"`
	ExactMatches       int    `json:"exact_matches"`
	FuzzyMatches       int    `json:"fuzzy_matches"`
}

// ToRunResponse converts engine run statistics to an API response.
func ToRunResponse(stats *reconcile.Stats) RunResponse {
	return RunResponse{
		Status:             "completed",
		BankItemsScanned:   stats.ExternalScanned,
		LedgerItemsScanned: stats.InternalScanned,
		ExactMatches:       stats.ExactMatches,
		FuzzyMatches:       stats.FuzzyMatches,
	}
}

// StatsResponse reports the aggregate reconciliation counters.
type StatsResponse struct {
	TotalTransactions  int     `json:"total_transactions"`
	TotalLedgerEntries int     `json:"total_ledger_entries"`
	TotalMatches       int     `json:"total_matches"`
	ReconciliationRate float64 `json:"reconciliation_rate"`
}

// ToStatsResponse converts storage counters to an API response.
func ToStatsResponse(stats *storage.ReconcileStats) StatsResponse {
	return StatsResponse{
		TotalTransactions:  stats.TotalExternal,
		TotalLedgerEntries: stats.TotalInternal,
		TotalMatches:       stats.TotalMatches,
		ReconciliationRate: stats.ReconciliationRate,
	}
}

// MatchActivityResponse represents one match in the activity feed.
type MatchActivityResponse struct {
	ID         string  `json:"id"`
	MatchType  string  `json:"match_type"`
	Amount     string  `json:"amount"`
	Date       string  `json:"date"`
	BankDesc   string  `json:"bank_desc"`
	LedgerDesc string  `json:"ledger_desc"`
	Confidence float64 `json:"confidence"`
	CreatedAt  string  `json:"created_at"`
}

// ActivityResponse is returned by the activity feed endpoint.
type ActivityResponse struct {
	Matches []MatchActivityResponse `json:"matches"`
	Count   int                     `json:"count"`
}

// ToMatchActivityResponse converts a storage activity row to an API response.
func ToMatchActivityResponse(activity storage.MatchActivity) MatchActivityResponse {
	return MatchActivityResponse{
		ID:         activity.MatchID,
		MatchType:  string(activity.Kind),
		Amount:     activity.Amount,
		Date:       activity.Date,
		BankDesc:   activity.BankDesc,
		LedgerDesc: activity.LedgerDesc,
		Confidence: activity.Confidence,
		CreatedAt:  activity.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ClearResponse is returned after a bulk reset.
type ClearResponse struct {
	Status string `json:"status"`
}
