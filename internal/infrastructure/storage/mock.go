package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in slices preserving insertion order, which the engine
// relies on for determinism.
type MockRepository struct {
	statementBatches []StatementBatch
	ledgerBatches    []LedgerBatch
	externalRecords  []ExternalRecord
	internalRecords  []InternalRecord
	matches          []Match

	// Hooks for test assertions
	CreateMatchCalls int

	// Error injection for testing error paths
	SaveStatementErr error
	SaveLedgerErr    error
	ListExternalErr  error
	ListInternalErr  error
	CreateMatchErr   error

	// FailCreateMatchAfter fails CreateMatch once this many matches have
	// been created. Zero disables the trip wire.
	FailCreateMatchAfter int
}

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{}
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// SaveStatementBatch stores the batch and its records in memory.
func (m *MockRepository) SaveStatementBatch(ctx context.Context, batch *StatementBatch, records []ExternalRecord) error {
	if m.SaveStatementErr != nil {
		return m.SaveStatementErr
	}
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	if batch.UploadedAt.IsZero() {
		batch.UploadedAt = time.Now().UTC()
	}
	batch.RecordCount = len(records)
	m.statementBatches = append(m.statementBatches, *batch)

	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
		records[i].BatchID = batch.ID
		m.externalRecords = append(m.externalRecords, records[i])
	}
	return nil
}

// SaveLedgerBatch stores the batch and its records in memory.
func (m *MockRepository) SaveLedgerBatch(ctx context.Context, batch *LedgerBatch, records []InternalRecord) error {
	if m.SaveLedgerErr != nil {
		return m.SaveLedgerErr
	}
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	if batch.UploadedAt.IsZero() {
		batch.UploadedAt = time.Now().UTC()
	}
	batch.RecordCount = len(records)
	m.ledgerBatches = append(m.ledgerBatches, *batch)

	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
		records[i].BatchID = batch.ID
		m.internalRecords = append(m.internalRecords, records[i])
	}
	return nil
}

// ListStatementBatches returns batches newest first.
func (m *MockRepository) ListStatementBatches(ctx context.Context) ([]StatementBatch, error) {
	out := make([]StatementBatch, 0, len(m.statementBatches))
	for i := len(m.statementBatches) - 1; i >= 0; i-- {
		out = append(out, m.statementBatches[i])
	}
	return out, nil
}

// ListUnmatchedExternal returns external records with no match, in insertion
// order.
func (m *MockRepository) ListUnmatchedExternal(ctx context.Context) ([]ExternalRecord, error) {
	if m.ListExternalErr != nil {
		return nil, m.ListExternalErr
	}
	matched := m.matchedExternalIDs()
	var out []ExternalRecord
	for _, rec := range m.externalRecords {
		if !matched[rec.ID] {
			out = append(out, rec)
		}
	}
	return out, nil
}

// ListUnmatchedInternal returns internal records with no match, in insertion
// order.
func (m *MockRepository) ListUnmatchedInternal(ctx context.Context) ([]InternalRecord, error) {
	if m.ListInternalErr != nil {
		return nil, m.ListInternalErr
	}
	matched := m.matchedInternalIDs()
	var out []InternalRecord
	for _, rec := range m.internalRecords {
		if !matched[rec.ID] {
			out = append(out, rec)
		}
	}
	return out, nil
}

// CreateMatch stores a match, enforcing the same exclusivity the sqlite
// unique indexes enforce.
func (m *MockRepository) CreateMatch(ctx context.Context, params CreateMatchParams) (*Match, error) {
	m.CreateMatchCalls++
	if m.CreateMatchErr != nil {
		return nil, m.CreateMatchErr
	}
	if m.FailCreateMatchAfter > 0 && len(m.matches) >= m.FailCreateMatchAfter {
		return nil, fmt.Errorf("mock: create match failed after %d matches", m.FailCreateMatchAfter)
	}

	if m.matchedExternalIDs()[params.ExternalID] {
		return nil, fmt.Errorf("mock: external record %s already matched", params.ExternalID)
	}
	if params.InternalID != nil && m.matchedInternalIDs()[*params.InternalID] {
		return nil, fmt.Errorf("mock: internal record %s already matched", *params.InternalID)
	}

	match := Match{
		ID:         uuid.NewString(),
		ExternalID: params.ExternalID,
		InternalID: params.InternalID,
		Kind:       params.Kind,
		Confidence: params.Confidence,
		CreatedAt:  time.Now().UTC(),
	}
	m.matches = append(m.matches, match)
	return &match, nil
}

// ListRecentMatches returns matches newest first with joined descriptions.
func (m *MockRepository) ListRecentMatches(ctx context.Context, limit int) ([]MatchActivity, error) {
	externals := make(map[string]ExternalRecord, len(m.externalRecords))
	for _, rec := range m.externalRecords {
		externals[rec.ID] = rec
	}
	internals := make(map[string]InternalRecord, len(m.internalRecords))
	for _, rec := range m.internalRecords {
		internals[rec.ID] = rec
	}

	var out []MatchActivity
	for i := len(m.matches) - 1; i >= 0; i-- {
		match := m.matches[i]
		ext := externals[match.ExternalID]

		ledgerDesc := "-"
		if match.InternalID != nil {
			ledgerDesc = internals[*match.InternalID].Record.Description
		}

		out = append(out, MatchActivity{
			MatchID:    match.ID,
			Kind:       match.Kind,
			Amount:     ext.Record.Amount.String(),
			Date:       ext.Record.OccurredOn.Format(dateLayout),
			BankDesc:   ext.Record.Description,
			LedgerDesc: ledgerDesc,
			Confidence: match.Confidence,
			CreatedAt:  match.CreatedAt,
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Stats returns counters over the in-memory data.
func (m *MockRepository) Stats(ctx context.Context) (*ReconcileStats, error) {
	stats := &ReconcileStats{
		TotalExternal: len(m.externalRecords),
		TotalInternal: len(m.internalRecords),
		TotalMatches:  len(m.matches),
	}
	if stats.TotalExternal > 0 {
		stats.ReconciliationRate = float64(stats.TotalMatches) / float64(stats.TotalExternal) * 100
	}
	return stats, nil
}

// Reset clears everything.
func (m *MockRepository) Reset(ctx context.Context) error {
	m.statementBatches = nil
	m.ledgerBatches = nil
	m.externalRecords = nil
	m.internalRecords = nil
	m.matches = nil
	return nil
}

// Matches exposes the stored matches for test assertions.
func (m *MockRepository) Matches() []Match {
	return append([]Match(nil), m.matches...)
}

func (m *MockRepository) matchedExternalIDs() map[string]bool {
	ids := make(map[string]bool, len(m.matches))
	for _, match := range m.matches {
		ids[match.ExternalID] = true
	}
	return ids
}

func (m *MockRepository) matchedInternalIDs() map[string]bool {
	ids := make(map[string]bool, len(m.matches))
	for _, match := range m.matches {
		if match.InternalID != nil {
			ids[*match.InternalID] = true
		}
	}
	return ids
}
