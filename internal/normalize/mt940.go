package normalize

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clearledger/reconcile-backend/internal/domain/record"
)

// placeholderDescription is attached to an entry until a :86: line supplies
// the real text. Some statements never do.
const placeholderDescription = "No Description"

// statementLinePattern matches a :61: statement line:
// value date (YYMMDD), optional entry date (MMDD), debit/credit mark, amount.
var statementLinePattern = regexp.MustCompile(`^:61:(\d{6})(\d{4})?([CD])([\d,]+)`)

// MT940Parser parses SWIFT MT940 statement messages.
//
// The format is line oriented: a :61: tag opens a transaction entry and an
// optional :86: tag that follows carries its description. The parser keeps
// one entry in flight and finalizes it when the next :61: arrives or the
// input ends.
type MT940Parser struct{}

// NewMT940Parser creates an MT940 parser.
func NewMT940Parser() *MT940Parser {
	return &MT940Parser{}
}

// Parse walks the message lines and returns one record per :61: entry.
func (p *MT940Parser) Parse(ctx context.Context, content []byte, opts Options) ([]record.Record, error) {
	var records []record.Record
	var pending *record.Record

	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(line, ":61:"):
			if pending != nil {
				records = append(records, *pending)
				pending = nil
			}

			entry, ok := parseStatementLine(line, len(records))
			if !ok {
				// Malformed :61: line; skip rather than abort the message.
				continue
			}
			pending = &entry

		case strings.HasPrefix(line, ":86:") && pending != nil:
			pending.Description = strings.TrimSpace(line[4:])
		}
	}

	if pending != nil {
		records = append(records, *pending)
	}

	return records, nil
}

func parseStatementLine(line string, seq int) (record.Record, bool) {
	m := statementLinePattern.FindStringSubmatch(line)
	if m == nil {
		return record.Record{}, false
	}

	rawDate := m[1]
	dcMark := m[3]
	rawAmount := strings.ReplaceAll(m[4], ",", ".")

	occurredOn, err := time.Parse("060102", rawDate)
	if err != nil {
		return record.Record{}, false
	}

	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return record.Record{}, false
	}
	if dcMark == "D" {
		amount = amount.Neg()
	}

	return record.Record{
		OccurredOn:  record.Date(occurredOn),
		Amount:      amount,
		Description: placeholderDescription,
		ExternalRef: fmt.Sprintf("MT940-%s-%d", rawDate, seq),
		RawSource:   line,
		Format:      record.SourceMT940,
		Confidence:  1.0,
	}, true
}

var _ Parser = (*MT940Parser)(nil)
