package ledger

import (
	"fmt"
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/ndewijer/Disclosure-Ledger/internal/apperrors"
	"github.com/ndewijer/Disclosure-Ledger/internal/model"
)

var cellDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006.01.02",
	"2006/01/02",
}

// Sheet is one category's rows inside a Workbook. It keeps a snapshot of the
// raw cell values so reads reflect rows appended during the run.
type Sheet struct {
	wb     *Workbook
	schema Schema
	header []string
	cols   map[string]int
	rows   [][]string // rows[i] is sheet row i+2
}

var (
	_ Store       = (*Sheet)(nil)
	_ PairHistory = (*Sheet)(nil)
)

// Name returns the sheet name.
func (s *Sheet) Name() string {
	return s.schema.Sheet
}

// Len returns the number of data rows, blank ones included.
func (s *Sheet) Len() int {
	return len(s.rows)
}

func (s *Sheet) addColumn(header string) error {
	col := len(s.header)
	name, err := excelize.CoordinatesToCellName(col+1, 1)
	if err != nil {
		return err
	}
	if err := s.wb.file.SetCellValue(s.schema.Sheet, name, header); err != nil {
		return fmt.Errorf("failed to write header %s: %w", header, err)
	}
	style, err := s.wb.headerStyle()
	if err != nil {
		return err
	}
	if err := s.wb.file.SetCellStyle(s.schema.Sheet, name, name, style); err != nil {
		return fmt.Errorf("failed to style header %s: %w", header, err)
	}
	s.header = append(s.header, header)
	s.cols[header] = col
	return nil
}

func (s *Sheet) cell(i int, role Role) string {
	c, ok := s.schema.column(role)
	if !ok {
		return ""
	}
	return s.value(i, c.Header)
}

func (s *Sheet) value(i int, header string) string {
	col, ok := s.cols[header]
	if !ok || col >= len(s.rows[i]) {
		return ""
	}
	return strings.TrimSpace(s.rows[i][col])
}

// ExistingKeys implements Store. Rows missing a key component cannot collide
// with a new record and are skipped.
func (s *Sheet) ExistingKeys() (KeySet, error) {
	keys := make(KeySet, len(s.rows))
	for i := range s.rows {
		issuer := s.cell(i, RoleIssuer)
		if issuer == "" {
			continue
		}
		date, err := parseCellDate(s.cell(i, RoleFilingDate))
		if err != nil {
			continue
		}
		amount, err := decimal.NewFromString(s.cell(i, RoleAmount))
		if err != nil {
			continue
		}
		keys[model.NewNaturalKey(issuer, date, amount)] = struct{}{}
	}
	return keys, nil
}

// FirstSeen implements PairHistory. Sheets without merger pair columns
// never match. A row with an unreadable first report date counts from its
// filing date.
func (s *Sheet) FirstSeen(mergingCorp, targetCorp string) (time.Time, bool) {
	mergingCol, ok := s.schema.fieldColumn(model.FieldMergingCorp)
	if !ok {
		return time.Time{}, false
	}
	targetCol, ok := s.schema.fieldColumn(model.FieldTargetCorp)
	if !ok {
		return time.Time{}, false
	}
	firstCol, _ := s.schema.fieldColumn(model.FieldFirstReportDate)
	mergingCorp, targetCorp = strings.TrimSpace(mergingCorp), strings.TrimSpace(targetCorp)
	if mergingCorp == "" || targetCorp == "" {
		return time.Time{}, false
	}

	var first time.Time
	for i := range s.rows {
		if s.value(i, mergingCol.Header) != mergingCorp || s.value(i, targetCol.Header) != targetCorp {
			continue
		}
		d, err := parseCellDate(s.value(i, firstCol.Header))
		if err != nil {
			if d, err = parseCellDate(s.cell(i, RoleFilingDate)); err != nil {
				continue
			}
		}
		if first.IsZero() || d.Before(first) {
			first = d
		}
	}
	return first, !first.IsZero()
}

// MaxSequencePerIssuer implements Store. A blank or non-numeric counter
// reads as 0.
func (s *Sheet) MaxSequencePerIssuer() (map[string]int, error) {
	out := make(map[string]int)
	for i := range s.rows {
		issuer := s.cell(i, RoleIssuer)
		if issuer == "" {
			continue
		}
		seq := 0
		if d, err := decimal.NewFromString(s.cell(i, RoleSequence)); err == nil {
			seq = int(d.IntPart())
		}
		if cur, ok := out[issuer]; !ok || seq > cur {
			out[issuer] = seq
		}
	}
	return out, nil
}

// Append implements Store. Every row is checked before the first cell is
// written, so a rejected batch leaves the sheet untouched.
func (s *Sheet) Append(rows []model.DisclosureRecord) error {
	if err := validateRows(rows); err != nil {
		return err
	}
	for _, rec := range rows {
		if err := s.appendRow(rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sheet) appendRow(rec model.DisclosureRecord) error {
	rowNum := len(s.rows) + 2
	snapshot := make([]string, len(s.header))

	for _, c := range s.schema.Columns {
		col := s.cols[c.Header]
		v, raw := cellValue(rec, c)
		if v == nil {
			continue
		}
		if err := s.write(col, rowNum, v, c.Format); err != nil {
			return err
		}
		snapshot[col] = raw
	}

	s.rows = append(s.rows, snapshot)
	return nil
}

func (s *Sheet) write(col, rowNum int, v any, f Format) error {
	name, err := excelize.CoordinatesToCellName(col+1, rowNum)
	if err != nil {
		return err
	}
	if err := s.wb.file.SetCellValue(s.schema.Sheet, name, v); err != nil {
		return fmt.Errorf("failed to write %s!%s: %w", s.schema.Sheet, name, err)
	}
	style, err := s.wb.style(f)
	if err != nil {
		return err
	}
	if err := s.wb.file.SetCellStyle(s.schema.Sheet, name, name, style); err != nil {
		return fmt.Errorf("failed to style %s!%s: %w", s.schema.Sheet, name, err)
	}
	return nil
}

// ScanIncomplete implements Store. Rows without an instrument or a readable
// filing date cannot be looked up and are not yielded.
func (s *Sheet) ScanIncomplete(field string) iter.Seq[IncompleteRow] {
	return func(yield func(IncompleteRow) bool) {
		trigger, ok := s.schema.deferredColumn(field)
		if !ok {
			return
		}
		for i := range s.rows {
			if s.value(i, trigger.Header) != "" {
				continue
			}
			issuer := s.cell(i, RoleIssuer)
			instrument := s.cell(i, RoleInstrument)
			if issuer == "" || instrument == "" {
				continue
			}
			date, err := parseCellDate(s.cell(i, RoleFilingDate))
			if err != nil {
				continue
			}

			row := IncompleteRow{
				Handle:       RowHandle(i),
				Issuer:       issuer,
				InstrumentID: instrument,
				FilingDate:   date,
			}
			for _, f := range s.schema.DeferredFields() {
				c, _ := s.schema.deferredColumn(f)
				if s.value(i, c.Header) == "" {
					row.Pending = append(row.Pending, f)
				}
			}
			if !yield(row) {
				return
			}
		}
	}
}

// CompleteField implements Store.
func (s *Sheet) CompleteField(h RowHandle, field string, v model.DeferredValue) error {
	i := int(h)
	if i < 0 || i >= len(s.rows) {
		return fmt.Errorf("%w: %s row %d", apperrors.ErrRowNotFound, s.schema.Sheet, i+2)
	}
	c, ok := s.schema.deferredColumn(field)
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrUnknownColumn, field)
	}
	if !v.IsResolved() || s.value(i, c.Header) != "" {
		return nil
	}

	var cell any = ResolvedEmpty
	raw := ResolvedEmpty
	if v.Value != nil {
		cell = *v.Value
		raw = strconv.FormatInt(*v.Value, 10)
	}

	col := s.cols[c.Header]
	if err := s.write(col, i+2, cell, c.Format); err != nil {
		return err
	}
	for len(s.rows[i]) <= col {
		s.rows[i] = append(s.rows[i], "")
	}
	s.rows[i][col] = raw
	return nil
}

// cellValue returns the value written for c and its raw snapshot form, or
// nil when the cell stays blank.
func cellValue(rec model.DisclosureRecord, c Column) (any, string) {
	switch c.Role {
	case RoleIssuer:
		return rec.Issuer, rec.Issuer
	case RoleInstrument:
		if rec.InstrumentID == "" {
			return nil, ""
		}
		return rec.InstrumentID, rec.InstrumentID
	case RoleFilingDate:
		return rec.FilingDate, rec.FilingDate.Format(model.DateKeyLayout)
	case RoleAmount:
		return decimalCell(rec.Amount.Decimal)
	case RoleSequence:
		return int64(rec.Sequence), strconv.Itoa(rec.Sequence)
	case RoleDeferred:
		dv, ok := rec.Deferred[c.Field]
		if !ok || !dv.IsResolved() {
			return nil, ""
		}
		if dv.Value == nil {
			return ResolvedEmpty, ResolvedEmpty
		}
		return *dv.Value, strconv.FormatInt(*dv.Value, 10)
	default:
		return fieldCell(rec.Field(c.Field))
	}
}

func fieldCell(v any) (any, string) {
	switch t := v.(type) {
	case nil:
		return nil, ""
	case string:
		if t == "" {
			return nil, ""
		}
		return t, t
	case int:
		return int64(t), strconv.Itoa(t)
	case int64:
		return t, strconv.FormatInt(t, 10)
	case float64:
		return t, strconv.FormatFloat(t, 'f', -1, 64)
	case decimal.Decimal:
		return decimalCell(t)
	case time.Time:
		if t.IsZero() {
			return nil, ""
		}
		return t, t.Format(model.DateKeyLayout)
	default:
		s := fmt.Sprint(t)
		return s, s
	}
}

// decimalCell stores decimals as numbers. The shortest float form reads back
// to the same decimal for the unit-scaled amounts the ledger holds.
func decimalCell(d decimal.Decimal) (any, string) {
	f := d.InexactFloat64()
	return f, strconv.FormatFloat(f, 'f', -1, 64)
}

// parseCellDate reads a date cell: an Excel serial, a YYYYMMDD string or a
// formatted date.
func parseCellDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if len(raw) == len(model.DateKeyLayout) && isDigits(raw) {
		return time.Parse(model.DateKeyLayout, raw)
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, err
		}
		// Serials carry the time of day as a fraction. Snap float noise to the
		// minute, then drop the time.
		t = t.Round(time.Minute)
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	for _, layout := range cellDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", raw)
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
