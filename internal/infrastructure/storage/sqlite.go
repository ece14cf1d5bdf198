package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/clearledger/reconcile-backend/internal/domain/record"
)

const dateLayout = "2006-01-02"

// Storage provides SQLite database access for reconciliation data.
// It implements the Repository interface.
type Storage struct {
	db *sql.DB
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints (SQLite-specific)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{db: db}

	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// SaveStatementBatch inserts the batch row and all its external records in
// one transaction. A failed insert leaves nothing behind.
func (s *Storage) SaveStatementBatch(ctx context.Context, batch *StatementBatch, records []ExternalRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	if batch.UploadedAt.IsZero() {
		batch.UploadedAt = time.Now().UTC()
	}
	batch.RecordCount = len(records)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO statement_batches (id, filename, institution, format_type, uploaded_at)
		VALUES (?, ?, ?, ?, ?)
	`, batch.ID, batch.Filename, batch.Institution, batch.FormatType, batch.UploadedAt)
	if err != nil {
		return fmt.Errorf("insert statement batch: %w", err)
	}

	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
		records[i].BatchID = batch.ID
		if err := insertRecord(ctx, tx, "external_records", records[i].ID, batch.ID, records[i].Record, i); err != nil {
			return fmt.Errorf("insert external record: %w", err)
		}
	}

	return tx.Commit()
}

// SaveLedgerBatch inserts the batch row and all its internal records in one
// transaction.
func (s *Storage) SaveLedgerBatch(ctx context.Context, batch *LedgerBatch, records []InternalRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	if batch.UploadedAt.IsZero() {
		batch.UploadedAt = time.Now().UTC()
	}
	batch.RecordCount = len(records)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_batches (id, filename, uploaded_at)
		VALUES (?, ?, ?)
	`, batch.ID, batch.Filename, batch.UploadedAt)
	if err != nil {
		return fmt.Errorf("insert ledger batch: %w", err)
	}

	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
		records[i].BatchID = batch.ID
		if err := insertRecord(ctx, tx, "internal_records", records[i].ID, batch.ID, records[i].Record, i); err != nil {
			return fmt.Errorf("insert internal record: %w", err)
		}
	}

	return tx.Commit()
}

func insertRecord(ctx context.Context, tx *sql.Tx, table, id, batchID string, rec record.Record, seq int) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, batch_id, occurred_on, amount, description, external_ref, raw_source, source_format, confidence, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, table)

	_, err := tx.ExecContext(ctx, query,
		id,
		batchID,
		rec.OccurredOn.Format(dateLayout),
		rec.Amount.String(),
		rec.Description,
		rec.ExternalRef,
		rec.RawSource,
		string(rec.Format),
		rec.Confidence,
		seq,
	)
	return err
}

// ListStatementBatches returns all statement batches, newest first.
func (s *Storage) ListStatementBatches(ctx context.Context) ([]StatementBatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.filename, b.institution, b.format_type, b.uploaded_at,
		       (SELECT COUNT(*) FROM external_records r WHERE r.batch_id = b.id)
		FROM statement_batches b
		ORDER BY b.uploaded_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var batches []StatementBatch
	for rows.Next() {
		var b StatementBatch
		if err := rows.Scan(&b.ID, &b.Filename, &b.Institution, &b.FormatType, &b.UploadedAt, &b.RecordCount); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// ListUnmatchedExternal returns external records with no match, in insertion
// order. Insertion order is what makes engine runs deterministic.
func (s *Storage) ListUnmatchedExternal(ctx context.Context) ([]ExternalRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.batch_id, r.occurred_on, r.amount, r.description, r.external_ref, r.raw_source, r.source_format, r.confidence
		FROM external_records r
		LEFT JOIN matches m ON m.external_id = r.id
		WHERE m.id IS NULL
		ORDER BY r.rowid
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []ExternalRecord
	for rows.Next() {
		var rec ExternalRecord
		var err error
		rec.ID, rec.BatchID, rec.Record, err = scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListUnmatchedInternal returns internal records with no match, in insertion
// order.
func (s *Storage) ListUnmatchedInternal(ctx context.Context) ([]InternalRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.batch_id, r.occurred_on, r.amount, r.description, r.external_ref, r.raw_source, r.source_format, r.confidence
		FROM internal_records r
		LEFT JOIN matches m ON m.internal_id = r.id
		WHERE m.id IS NULL
		ORDER BY r.rowid
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []InternalRecord
	for rows.Next() {
		var rec InternalRecord
		var err error
		rec.ID, rec.BatchID, rec.Record, err = scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanRecord(rows *sql.Rows) (id, batchID string, rec record.Record, err error) {
	var occurredOn, amount, format string
	var description, externalRef, rawSource sql.NullString

	err = rows.Scan(&id, &batchID, &occurredOn, &amount, &description, &externalRef, &rawSource, &format, &rec.Confidence)
	if err != nil {
		return "", "", record.Record{}, err
	}

	rec.OccurredOn, err = time.Parse(dateLayout, occurredOn)
	if err != nil {
		return "", "", record.Record{}, fmt.Errorf("stored date %q: %w", occurredOn, err)
	}
	rec.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return "", "", record.Record{}, fmt.Errorf("stored amount %q: %w", amount, err)
	}
	rec.Description = description.String
	rec.ExternalRef = externalRef.String
	rec.RawSource = rawSource.String
	rec.Format = record.SourceFormat(format)

	return id, batchID, rec, nil
}

// CreateMatch persists one reconciliation decision. The unique indexes on
// matches reject a second claim of either record, so a conflicting write
// fails instead of silently double-claiming.
func (s *Storage) CreateMatch(ctx context.Context, params CreateMatchParams) (*Match, error) {
	match := &Match{
		ID:         uuid.NewString(),
		ExternalID: params.ExternalID,
		InternalID: params.InternalID,
		Kind:       params.Kind,
		Confidence: params.Confidence,
		CreatedAt:  time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO matches (id, external_id, internal_id, kind, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, match.ID, match.ExternalID, match.InternalID, string(match.Kind), match.Confidence, match.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert match: %w", err)
	}

	return match, nil
}

// ListRecentMatches returns matches with both-side descriptions, newest
// first.
func (s *Storage) ListRecentMatches(ctx context.Context, limit int) ([]MatchActivity, error) {
	query := `
		SELECT m.id, m.kind, e.amount, e.occurred_on, e.description,
		       COALESCE(i.description, '-'), m.confidence, m.created_at
		FROM matches m
		JOIN external_records e ON e.id = m.external_id
		LEFT JOIN internal_records i ON i.id = m.internal_id
		ORDER BY m.created_at DESC, m.rowid DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var activity []MatchActivity
	for rows.Next() {
		var a MatchActivity
		var bankDesc sql.NullString
		if err := rows.Scan(&a.MatchID, &a.Kind, &a.Amount, &a.Date, &bankDesc, &a.LedgerDesc, &a.Confidence, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.BankDesc = bankDesc.String
		activity = append(activity, a)
	}
	return activity, rows.Err()
}

// Stats returns the aggregate reconciliation counters.
func (s *Storage) Stats(ctx context.Context) (*ReconcileStats, error) {
	stats := &ReconcileStats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM external_records),
			(SELECT COUNT(*) FROM internal_records),
			(SELECT COUNT(*) FROM matches)
	`).Scan(&stats.TotalExternal, &stats.TotalInternal, &stats.TotalMatches)
	if err != nil {
		return nil, err
	}

	if stats.TotalExternal > 0 {
		stats.ReconciliationRate = float64(stats.TotalMatches) / float64(stats.TotalExternal) * 100
	}

	return stats, nil
}

// Reset deletes all reconciliation data. Order matters for the foreign keys.
func (s *Storage) Reset(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"matches", "external_records", "internal_records", "statement_batches", "ledger_batches"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	return tx.Commit()
}
