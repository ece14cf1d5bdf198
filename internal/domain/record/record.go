// Package record defines the canonical transaction record shared by the
// normalization parsers and the matching engine.
//
// Every parser, whatever its source format, produces a flat sequence of
// Record values. The matching engine only ever sees Records, so format
// quirks stop at the normalization boundary.
package record

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SourceFormat tags which parser produced a record.
type SourceFormat string

const (
	// SourceCSV marks records parsed from delimited tabular files.
	SourceCSV SourceFormat = "csv"
	// SourceMT940 marks records parsed from MT940 statement messages.
	SourceMT940 SourceFormat = "mt940"
	// SourceDocument marks records extracted from documents by the
	// inference collaborator.
	SourceDocument SourceFormat = "document"
)

// Record is the normalized transaction all parsers return.
//
// Amount is sign-significant: negative is an outflow (debit), positive an
// inflow (credit). OccurredOn carries a calendar date only; parsers must
// truncate any time component.
type Record struct {
	OccurredOn  time.Time
	Amount      decimal.Decimal
	Description string
	ExternalRef string
	RawSource   string
	Format      SourceFormat
	Confidence  float64
}

// New builds a Record and validates its invariants. The amount comes in as
// a string so no parser is tempted to round-trip through float64.
func New(occurredOn time.Time, amount string, description string, format SourceFormat, confidence float64) (Record, error) {
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return Record{}, fmt.Errorf("record: invalid amount %q: %w", amount, err)
	}
	if confidence < 0 || confidence > 1 {
		return Record{}, fmt.Errorf("record: confidence %v outside [0,1]", confidence)
	}
	return Record{
		OccurredOn:  Date(occurredOn),
		Amount:      amt,
		Description: description,
		Format:      format,
		Confidence:  confidence,
	}, nil
}

// Date truncates t to a calendar date in UTC.
func Date(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether two records occurred on the same calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DaysBetween returns the absolute number of calendar days between two dates.
func DaysBetween(a, b time.Time) int {
	d := Date(a).Sub(Date(b)) / (24 * time.Hour)
	if d < 0 {
		d = -d
	}
	return int(d)
}

// AmountMatches reports whether two amounts are equal under the
// sign-tolerant comparison used for reconciliation: the two sides often
// disagree on direction conventions, so a matches b when a == b or a == -b.
// A convention difference and a genuine sign error are indistinguishable
// here; that ambiguity is deliberate and documented.
func AmountMatches(a, b decimal.Decimal) bool {
	return a.Equal(b) || a.Equal(b.Neg())
}
