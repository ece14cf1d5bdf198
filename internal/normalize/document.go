package normalize

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clearledger/reconcile-backend/internal/domain/record"
)

// documentConfidence is the fixed confidence for AI-derived extraction.
// Inference output is trusted less than an exact-format parse.
const documentConfidence = 0.95

// ExtractStatus reports where an extraction job stands.
type ExtractStatus string

const (
	ExtractPending ExtractStatus = "pending"
	ExtractReady   ExtractStatus = "ready"
	ExtractFailed  ExtractStatus = "failed"
)

// ExtractedRow is one transaction object returned by the extraction
// collaborator. Pointer fields distinguish null from zero so missing values
// can be rejected instead of silently becoming 0.
type ExtractedRow struct {
	Date        string       `json:"date"`
	Description string       `json:"description"`
	Amount      *json.Number `json:"amount"`
	Reference   *string      `json:"reference"`
}

// Extractor is the external inference collaborator that turns document bytes
// into structured transaction rows. Submit allocates a remote resource the
// caller must Release; Release is best-effort and safe to call on any path.
type Extractor interface {
	Submit(ctx context.Context, content []byte) (handle string, err error)
	Poll(ctx context.Context, handle string) (ExtractStatus, error)
	Fetch(ctx context.Context, handle string) ([]ExtractedRow, error)
	Release(handle string)
}

// DocumentConfig bounds the extraction poll loop.
type DocumentConfig struct {
	PollInterval time.Duration
	MaxWait      time.Duration
}

// DefaultDocumentConfig returns the poll bounds used in production.
func DefaultDocumentConfig() DocumentConfig {
	return DocumentConfig{
		PollInterval: time.Second,
		MaxWait:      2 * time.Minute,
	}
}

// DocumentParser extracts records from free-form documents via an Extractor.
// Its own job is narrow: submit, poll until ready or failed, validate each
// returned row, and release the remote resource no matter how parsing ends.
type DocumentParser struct {
	extractor Extractor
	config    DocumentConfig
	logger    *slog.Logger
}

// NewDocumentParser creates a document parser over the given collaborator.
func NewDocumentParser(extractor Extractor, config DocumentConfig, logger *slog.Logger) *DocumentParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentParser{extractor: extractor, config: config, logger: logger}
}

// Parse submits the document and converts every valid extracted row into a
// canonical record. Rows missing a date or amount are skipped.
func (p *DocumentParser) Parse(ctx context.Context, content []byte, opts Options) ([]record.Record, error) {
	if p.extractor == nil {
		return nil, fmt.Errorf("%w: no extraction backend configured", ErrExtractionFailed)
	}

	handle, err := p.extractor.Submit(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("submit document: %w", err)
	}
	defer p.extractor.Release(handle)

	if err := p.waitReady(ctx, handle); err != nil {
		return nil, err
	}

	rows, err := p.extractor.Fetch(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("fetch extraction: %w", err)
	}

	records := make([]record.Record, 0, len(rows))
	for i, row := range rows {
		rec, ok := p.convertRow(row, handle, i)
		if !ok {
			continue
		}
		records = append(records, rec)
	}

	return records, nil
}

// waitReady polls the collaborator until it is ready, failed, or the wait
// budget is spent.
func (p *DocumentParser) waitReady(ctx context.Context, handle string) error {
	deadline := time.Now().Add(p.config.MaxWait)

	for {
		status, err := p.extractor.Poll(ctx, handle)
		if err != nil {
			return fmt.Errorf("poll extraction: %w", err)
		}

		switch status {
		case ExtractReady:
			return nil
		case ExtractFailed:
			return ErrExtractionFailed
		}

		if time.Now().After(deadline) {
			return ErrExtractionTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.config.PollInterval):
		}
	}
}

func (p *DocumentParser) convertRow(row ExtractedRow, handle string, idx int) (record.Record, bool) {
	if row.Date == "" || row.Amount == nil {
		return record.Record{}, false
	}

	occurredOn, err := time.Parse("2006-01-02", row.Date)
	if err != nil {
		p.logger.Debug("skipping extracted row", "reason", "bad date", "date", row.Date)
		return record.Record{}, false
	}

	amount, err := decimal.NewFromString(row.Amount.String())
	if err != nil {
		p.logger.Debug("skipping extracted row", "reason", "bad amount", "amount", row.Amount.String())
		return record.Record{}, false
	}

	ref := ""
	if row.Reference != nil {
		ref = *row.Reference
	}
	if ref == "" {
		ref = fmt.Sprintf("DOC-%s-%d", handle, idx)
	}

	raw, _ := json.Marshal(row)

	return record.Record{
		OccurredOn:  record.Date(occurredOn),
		Amount:      amount,
		Description: row.Description,
		ExternalRef: ref,
		RawSource:   string(raw),
		Format:      record.SourceDocument,
		Confidence:  documentConfidence,
	}, true
}

var _ Parser = (*DocumentParser)(nil)
