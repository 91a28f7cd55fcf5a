package extract

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/Disclosure-Ledger/internal/apperrors"
)

// Kind names the type a raw cell value is coerced to.
type Kind string

const (
	KindString  Kind = "string"
	KindInt     Kind = "int"
	KindFloat   Kind = "float"
	KindDate    Kind = "date"
	KindDecimal Kind = "decimal" // plain number, e.g. an amount in won
	KindAmount  Kind = "amount"  // free text like "12,345 백만원 (2023.12.31)"
	KindDigits  Kind = "digits"  // every digit in the text, e.g. share counts
)

// NotApplicable is the placeholder filers use for an empty value.
const NotApplicable = "-"

const connector = "ㆍ"

var dateLayouts = []string{
	"2006-01-02",
	"2006.01.02",
	"2006. 01. 02",
	"2006. 1. 2",
	"20060102",
	"2006년 01월 02일",
	"2006년 1월 2일",
	"2006/01/02",
}

var (
	parenthesised = regexp.MustCompile(`\(.*?\)`)
	nonDigit      = regexp.MustCompile(`[^\d]`)
)

var errNoDigits = errors.New("no digits")

// Lookup returns the raw value of the first row matching a candidate label.
// Candidates are tried in order and every row is scanned for each one, so
// callers list specific labels before generic ones. The value is the last
// cell with thousands separators removed. ok is false when no row matches or
// the value is empty or "-".
func (d *Document) Lookup(labels []string) (string, bool) {
	return d.LookupAt(labels, 0)
}

// LookupAt is Lookup reading the 1-based column instead of the last cell.
// Rows too short to hold the column are skipped.
func (d *Document) LookupAt(labels []string, column int) (string, bool) {
	return d.lookup(labels, column, 0)
}

func (d *Document) lookup(labels []string, column, rowCells int) (string, bool) {
	rows := d.tableRows()
	for _, candidate := range labels {
		want := normalizeLabel(candidate)
		if want == "" {
			continue
		}
		for _, r := range rows {
			if rowCells > 0 && len(r.cells) != rowCells {
				continue
			}
			idx := len(r.cells) - 1
			if column > 0 {
				if column > len(r.cells) {
					continue
				}
				idx = column - 1
			}
			if !strings.Contains(rowLabel(r, idx), want) {
				continue
			}
			v := strings.ReplaceAll(r.cells[idx], ",", "")
			v = strings.TrimSpace(v)
			if v == "" || v == NotApplicable {
				return "", false
			}
			return v, true
		}
	}
	return "", false
}

// rowLabel is the first cell, joined with the second when the row is wider
// than a label/value pair and the second cell is not the value being read.
func rowLabel(r row, valueIdx int) string {
	label := r.cells[0]
	if len(r.cells) > 2 && valueIdx != 1 {
		label += r.cells[1]
	}
	return normalizeLabel(label)
}

func normalizeLabel(s string) string {
	s = whitespace.ReplaceAllString(s, "")
	return strings.ReplaceAll(s, connector, "")
}

// Extract looks up a value and coerces it. A missing value is reported with
// ok false and no error; a present value that fails coercion returns a
// *apperrors.MalformedFieldError.
func Extract(doc *Document, field string, labels []string, kind Kind) (any, bool, error) {
	return ExtractAt(doc, field, labels, kind, 0)
}

// ExtractAt is Extract reading the given 1-based column.
func ExtractAt(doc *Document, field string, labels []string, kind Kind, column int) (any, bool, error) {
	raw, ok := doc.LookupAt(labels, column)
	if !ok {
		return nil, false, nil
	}
	v, err := Coerce(field, raw, kind)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Coerce converts a raw cell value to kind.
func Coerce(field, raw string, kind Kind) (any, error) {
	malformed := func(err error) error {
		return &apperrors.MalformedFieldError{Field: field, Raw: raw, Kind: string(kind), Err: err}
	}
	s := strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))

	switch kind {
	case KindString, "":
		return strings.TrimSpace(raw), nil
	case KindInt:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, malformed(err)
		}
		return v, nil
	case KindFloat:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, malformed(err)
		}
		return v, nil
	case KindDecimal:
		v, err := decimal.NewFromString(s)
		if err != nil {
			return nil, malformed(err)
		}
		return v, nil
	case KindDate:
		v, err := ParseDate(s)
		if err != nil {
			return nil, malformed(err)
		}
		return v, nil
	case KindAmount:
		v, err := parseAmount(s)
		if err != nil {
			return nil, malformed(err)
		}
		return v, nil
	case KindDigits:
		digits := nonDigit.ReplaceAllString(parenthesised.ReplaceAllString(s, ""), "")
		if digits == "" {
			return nil, malformed(errNoDigits)
		}
		v, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return nil, malformed(err)
		}
		return v, nil
	default:
		return nil, malformed(errors.New("unsupported kind"))
	}
}

// ParseDate accepts the date spellings seen in filings.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var firstErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// parseAmount reads amounts written with units. Parenthesised notes are
// dropped and "백만" scales the digits to won.
func parseAmount(s string) (decimal.Decimal, error) {
	s = parenthesised.ReplaceAllString(s, "")
	digits := nonDigit.ReplaceAllString(s, "")
	if digits == "" {
		return decimal.Decimal{}, errNoDigits
	}
	v, err := decimal.NewFromString(digits)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if strings.Contains(s, "백만") {
		v = v.Mul(decimal.New(1, 6))
	}
	return v, nil
}
