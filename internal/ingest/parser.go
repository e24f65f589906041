// Package ingest parses raw delimited transaction exports into normalized
// core.Transaction records.
//
// Parsing is tolerant of minor schema variance: headers are matched
// case-insensitively against a canonical set, rows with bad dates or amounts
// are skipped and reported individually, and the batch succeeds as long as
// at least one row is valid. File-level problems (missing required headers,
// empty input, zero valid rows) are fatal and reported separately from row
// errors. Parsing has no persistence side effect.
package ingest

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"finpulse/internal/core"
)

var (
	ErrEmptyFile     = errors.New("empty file")
	ErrMissingHeader = errors.New("missing required header")
	ErrNoValidRows   = errors.New("no valid rows")
)

// HintExpenses marks an upload as an expense export; any other hint is
// treated as a revenue source label and doubles as the default gateway tag.
const HintExpenses = "expenses"

// RowError describes why a single row was skipped. Line is 1-based and
// counts the header row.
type RowError struct {
	Line   int
	Reason string
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// dateLayouts are tried in order; the first successful parse wins.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"01/02/2006",
	"2006/01/02",
	"02-01-2006",
}

// canonical header names, keyed by the lowercase aliases seen in exports.
var headerAliases = map[string]string{
	"date":             "date",
	"transaction date": "date",
	"amount":           "amount",
	"value":            "amount",
	"description":      "description",
	"memo":             "description",
	"kind":             "kind",
	"type":             "kind",
	"category":         "category",
	"gateway":          "gateway",
	"source":           "gateway",
}

// Parse converts raw delimited text into transactions. The hint names the
// upload's source: "expenses" flips the default kind; anything else is kept
// as the default gateway tag. Returned transactions carry no ID or OrgID;
// the caller assigns those before persistence.
func Parse(raw string, hint string) ([]core.Transaction, []RowError, error) {
	lines := splitLines(raw)
	if len(lines) == 0 {
		return nil, nil, ErrEmptyFile
	}

	columns, err := mapHeader(splitFields(lines[0]))
	if err != nil {
		return nil, nil, err
	}
	if len(lines) == 1 {
		return nil, nil, ErrNoValidRows
	}

	defaultKind := core.Revenue
	defaultGateway := strings.TrimSpace(hint)
	if strings.EqualFold(defaultGateway, HintExpenses) {
		defaultKind = core.Expense
		defaultGateway = ""
	}

	var (
		txs     []core.Transaction
		rowErrs []RowError
	)
	for i, line := range lines[1:] {
		lineNo := i + 2
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := splitFields(line)

		tx, err := buildRow(fields, columns, defaultKind, defaultGateway)
		if err != nil {
			rowErrs = append(rowErrs, RowError{Line: lineNo, Reason: err.Error()})
			continue
		}
		txs = append(txs, tx)
	}

	if len(txs) == 0 {
		return nil, rowErrs, ErrNoValidRows
	}
	return txs, rowErrs, nil
}

func buildRow(fields []string, columns map[string]int, defaultKind core.TransactionKind, defaultGateway string) (core.Transaction, error) {
	get := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[idx])
	}

	date, err := parseDate(get("date"))
	if err != nil {
		return core.Transaction{}, err
	}

	cents, err := core.ParseAmountToCents(get("amount"))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount %q: %w", get("amount"), err)
	}

	description := get("description")
	if description == "" {
		return core.Transaction{}, core.ErrEmptyDescription
	}

	kind := defaultKind
	switch strings.ToLower(get("kind")) {
	case "":
	case "revenue", "income":
		kind = core.Revenue
	case "expense", "expenses":
		kind = core.Expense
	default:
		return core.Transaction{}, fmt.Errorf("kind %q: %w", get("kind"), core.ErrInvalidKind)
	}

	gateway := get("gateway")
	if gateway == "" {
		gateway = defaultGateway
	}

	return core.Transaction{
		Date:        date,
		Amount:      core.Money{Cents: cents},
		Kind:        kind,
		Description: description,
		Category:    get("category"),
		Gateway:     gateway,
	}, nil
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, core.ErrInvalidDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("date %q: %w", raw, core.ErrInvalidDate)
}

// mapHeader resolves each header cell to its canonical column name.
// Unrecognized columns are ignored; date, amount and description must all
// be present or the whole file is rejected.
func mapHeader(cells []string) (map[string]int, error) {
	columns := make(map[string]int, len(cells))
	for i, cell := range cells {
		name, ok := headerAliases[strings.ToLower(strings.TrimSpace(cell))]
		if !ok {
			continue
		}
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}
	for _, required := range []string{"date", "amount", "description"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingHeader, required)
		}
	}
	return columns, nil
}

func splitLines(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// splitFields splits one delimited line on commas, honoring quoting:
// commas inside a quoted field are literal, and a doubled quote inside a
// quoted field is an escaped quote character.
func splitFields(line string) []string {
	var (
		fields   []string
		field    strings.Builder
		inQuotes bool
	)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				field.WriteByte('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case c == ',' && !inQuotes:
			fields = append(fields, field.String())
			field.Reset()
		default:
			field.WriteByte(c)
		}
	}
	fields = append(fields, field.String())
	return fields
}
