package normalize

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/clearledger/reconcile-backend/internal/domain/record"
)

// ColumnMapping names the header columns for each logical field of a
// delimited table. Amount and the Debit/Credit pair are alternatives: when
// no single amount column resolves, the parser falls back to the pair.
type ColumnMapping struct {
	Date        string
	Description string
	Amount      string
	Debit       string
	Credit      string
}

// DefaultColumnMapping matches the headers most statement exports use.
func DefaultColumnMapping() ColumnMapping {
	return ColumnMapping{
		Date:        "Date",
		Description: "Description",
		Amount:      "Amount",
	}
}

// Column aliases tried when the mapped name is absent. Users are bad at
// mapping, and banks are worse at naming.
var (
	dateAliases        = []string{"Date", "Posting Date", "Trx Date", "date"}
	descriptionAliases = []string{"Description", "Memo", "Details", "Narration"}
	debitAliases       = []string{"Debit", "Dr", "Withdrawal", "Paid Out"}
	creditAliases      = []string{"Credit", "Cr", "Deposit", "Paid In"}
)

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"01/02/2006",
	"1/2/2006",
	"02 Jan 2006",
	"Jan 2, 2006",
	"2006/01/02",
}

// CSVParser parses delimited tabular statement files.
type CSVParser struct {
	logger *slog.Logger
}

// NewCSVParser creates a delimited-table parser.
func NewCSVParser(logger *slog.Logger) *CSVParser {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVParser{logger: logger}
}

// columns holds resolved header indexes. amount is -1 when the debit/credit
// pair is in use.
type columns struct {
	date        int
	description int
	amount      int
	debit       int
	credit      int
}

// Parse reads the table, resolves columns, and converts each usable row into
// a canonical record. Rows whose date or amount cannot be parsed are skipped:
// real exports carry footer totals and header noise, and a bad row must never
// corrupt the output with a zero amount.
func (p *CSVParser) Parse(ctx context.Context, content []byte, opts Options) ([]record.Record, error) {
	mapping := opts.Columns
	if mapping == (ColumnMapping{}) {
		mapping = DefaultColumnMapping()
	}

	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, &ParseError{Format: "csv", Reason: "unreadable table", Err: err}
	}
	if len(rows) == 0 {
		return nil, parseErrorf("csv", "file has no header row")
	}

	cols, err := resolveColumns(rows[0], mapping)
	if err != nil {
		return nil, err
	}

	records := make([]record.Record, 0, len(rows)-1)
	skipped := 0

	for i, row := range rows[1:] {
		occurredOn, ok := parseRowDate(cell(row, cols.date))
		if !ok {
			skipped++
			continue
		}

		amount, ok := resolveAmount(row, cols)
		if !ok {
			skipped++
			continue
		}

		records = append(records, record.Record{
			OccurredOn:  occurredOn,
			Amount:      amount,
			Description: strings.TrimSpace(cell(row, cols.description)),
			ExternalRef: fmt.Sprintf("CSV-%d", i),
			RawSource:   strings.Join(row, ","),
			Format:      record.SourceCSV,
			Confidence:  1.0,
		})
	}

	if skipped > 0 {
		p.logger.Debug("skipped unparseable rows", "format", "csv", "skipped", skipped)
	}

	return records, nil
}

func resolveColumns(header []string, mapping ColumnMapping) (columns, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	cols := columns{date: -1, description: -1, amount: -1, debit: -1, credit: -1}

	cols.date = findColumn(index, mapping.Date, dateAliases)
	if cols.date < 0 {
		return cols, parseErrorf("csv", "no date column matching %q or known aliases in headers %v", mapping.Date, header)
	}

	cols.description = findColumn(index, mapping.Description, descriptionAliases)

	if mapping.Amount != "" {
		if i, ok := index[mapping.Amount]; ok {
			cols.amount = i
			return cols, nil
		}
	}

	cols.debit = findColumn(index, mapping.Debit, debitAliases)
	cols.credit = findColumn(index, mapping.Credit, creditAliases)
	if cols.debit >= 0 && cols.credit >= 0 {
		return cols, nil
	}

	return cols, parseErrorf("csv", "no amount column and no debit/credit pair in headers %v", header)
}

func findColumn(index map[string]int, configured string, aliases []string) int {
	if configured != "" {
		if i, ok := index[configured]; ok {
			return i
		}
	}
	for _, alias := range aliases {
		if i, ok := index[alias]; ok {
			return i
		}
	}
	return -1
}

// resolveAmount computes the signed amount for one row. With a debit/credit
// pair both columns are treated as non-negative magnitudes and the amount is
// credit minus debit.
func resolveAmount(row []string, cols columns) (decimal.Decimal, bool) {
	if cols.amount >= 0 {
		cleaned := cleanAmount(cell(row, cols.amount))
		if cleaned == "" {
			return decimal.Decimal{}, false
		}
		amt, err := decimal.NewFromString(cleaned)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return amt, true
	}

	credit, ok := parseMagnitude(cell(row, cols.credit))
	if !ok {
		return decimal.Decimal{}, false
	}
	debit, ok := parseMagnitude(cell(row, cols.debit))
	if !ok {
		return decimal.Decimal{}, false
	}
	if credit.IsZero() && debit.IsZero() {
		// Neither side populated; summary or separator row.
		return decimal.Decimal{}, false
	}
	return credit.Sub(debit), true
}

func parseMagnitude(raw string) (decimal.Decimal, bool) {
	cleaned := cleanAmount(raw)
	if cleaned == "" {
		return decimal.Zero, true
	}
	amt, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return amt, true
}

// cleanAmount strips currency noise and maps parenthesized values to
// negatives: "(500.00)" becomes "-500.00".
func cleanAmount(raw string) string {
	s := strings.NewReplacer("$", "", "£", "", "€", "", ",", "", " ", "", " ", "").Replace(raw)
	s = strings.TrimSpace(s)
	if strings.Contains(s, "(") && strings.Contains(s, ")") {
		s = "-" + strings.NewReplacer("(", "", ")", "").Replace(s)
	}
	return s
}

func parseRowDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return record.Date(t), true
		}
	}
	return time.Time{}, false
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

var _ Parser = (*CSVParser)(nil)
