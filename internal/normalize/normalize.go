// Package normalize converts raw statement and ledger files into canonical
// records. Each supported format has its own Parser; the Normalizer picks a
// parser from the file's extension and owns no parsing logic itself.
package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/clearledger/reconcile-backend/internal/domain/record"
)

// Options carries per-call parser configuration. Only the delimited-table
// parser reads it today.
type Options struct {
	// Columns overrides the default header mapping for tabular files.
	Columns ColumnMapping
}

// Parser converts one raw source format into canonical records.
type Parser interface {
	Parse(ctx context.Context, content []byte, opts Options) ([]record.Record, error)
}

// Normalizer dispatches files to format parsers by extension.
type Normalizer struct {
	parsers map[string]Parser
	logger  *slog.Logger
}

// New creates a Normalizer with the standard parser set. The extractor is
// the inference collaborator backing the document parser.
func New(extractor Extractor, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}

	csv := NewCSVParser(logger)
	mt940 := NewMT940Parser()
	doc := NewDocumentParser(extractor, DefaultDocumentConfig(), logger)

	return &Normalizer{
		parsers: map[string]Parser{
			".csv": csv,
			".sta": mt940,
			".txt": mt940,
			".pdf": doc,
		},
		logger: logger,
	}
}

// Normalize parses content into canonical records using the parser that
// matches the filename's extension. It returns ErrUnsupportedFormat when no
// parser matches.
func (n *Normalizer) Normalize(ctx context.Context, filename string, content []byte, opts Options) ([]record.Record, error) {
	parser, err := n.parserFor(filename)
	if err != nil {
		return nil, err
	}

	records, err := parser.Parse(ctx, content, opts)
	if err != nil {
		return nil, err
	}

	n.logger.Info("normalized file",
		"filename", filename,
		"records", len(records))

	return records, nil
}

func (n *Normalizer) parserFor(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	parser, ok := n.parsers[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}
	return parser, nil
}
