package normalize

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat is returned when a file's name matches no known parser.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ErrExtractionTimeout is returned when the document extraction collaborator
// does not become ready within the configured wait budget.
var ErrExtractionTimeout = errors.New("document extraction timed out")

// ErrExtractionFailed is returned when the document extraction collaborator
// reports that it could not process the document.
var ErrExtractionFailed = errors.New("document extraction failed")

// ParseError indicates a file that was routed to the right parser but is
// structurally unusable. It is fatal to that file only; individual bad rows
// inside an otherwise-usable file are skipped, not surfaced as errors.
type ParseError struct {
	Format string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %v", e.Format, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.Format, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseErrorf(format, reason string, args ...any) *ParseError {
	return &ParseError{Format: format, Reason: fmt.Sprintf(reason, args...)}
}
