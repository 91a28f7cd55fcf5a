package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ndewijer/Disclosure-Ledger/internal/apperrors"
	"github.com/ndewijer/Disclosure-Ledger/internal/model"
	"github.com/ndewijer/Disclosure-Ledger/internal/testutil"
)

func openSheet(t *testing.T, path string, c model.Category) (*Workbook, *Sheet) {
	t.Helper()
	wb, err := OpenWorkbook(path)
	if err != nil {
		t.Fatalf("OpenWorkbook() returned unexpected error: %v", err)
	}
	t.Cleanup(func() { wb.Close() })
	schema, err := SchemaFor(c)
	if err != nil {
		t.Fatalf("SchemaFor() returned unexpected error: %v", err)
	}
	sheet, err := wb.Sheet(schema)
	if err != nil {
		t.Fatalf("Sheet() returned unexpected error: %v", err)
	}
	return wb, sheet
}

// writeFixture creates a workbook with one sheet holding rows.
func writeFixture(t *testing.T, path, sheet string, rows [][]any) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		t.Fatalf("Failed to name sheet: %v", err)
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("Failed to write fixture row: %v", err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("Failed to save fixture: %v", err)
	}
}

func TestWorkbook_NewLedgerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "국내 주요 공시 정리.xlsx")

	wb, sheet := openSheet(t, path, model.CategoryContract)
	err := sheet.Append([]model.DisclosureRecord{
		testutil.NewRecord().
			WithIssuer("IssuerA").
			WithAmount("123.45").
			WithSequence(1).
			WithField(model.FieldContractName, "장비 공급").
			WithField(model.FieldStartDate, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)).
			Build(),
	})
	if err != nil {
		t.Fatalf("Append() returned unexpected error: %v", err)
	}
	if err := wb.Save(); err != nil {
		t.Fatalf("Save() returned unexpected error: %v", err)
	}

	// Assert on the saved file
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("Failed to reopen ledger: %v", err)
	}
	defer f.Close()

	if slices.Contains(f.GetSheetList(), "Sheet1") {
		t.Error("Expected default sheet to be removed")
	}
	rows, err := f.GetRows("main")
	if err != nil {
		t.Fatalf("Failed to read rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected header and one row, got %d rows", len(rows))
	}
	schema, _ := SchemaFor(model.CategoryContract)
	if !slices.Equal(rows[0], schema.Headers()) {
		t.Errorf("Expected schema header, got %v", rows[0])
	}
	if got, _ := f.GetCellValue("main", "C2"); got != "2024-01-10" {
		t.Errorf("Expected formatted filing date 2024-01-10, got %q", got)
	}
	if got, _ := f.GetCellValue("main", "A2"); got != "005930" {
		t.Errorf("Expected stock code kept as text, got %q", got)
	}

	// Reading the saved ledger yields the same key.
	_, reopened := openSheet(t, path, model.CategoryContract)
	keys, _ := reopened.ExistingKeys()
	want := testutil.NewRecord().WithIssuer("IssuerA").WithAmount("123.45").Build().Key()
	if !keys.Has(want) {
		t.Errorf("Expected key %+v after reopen, got %v", want, keys)
	}
}

func TestWorkbook_StoreCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	writeFixture(t, path, "main", [][]any{
		{"종목코드", "날짜 (D)", "내용"},
		{"005930", "20240110", "장비"},
	})

	wb, err := OpenWorkbook(path)
	if err != nil {
		t.Fatalf("OpenWorkbook() returned unexpected error: %v", err)
	}
	defer wb.Close()

	schema, _ := SchemaFor(model.CategoryContract)
	_, err = wb.Sheet(schema)

	var corrupt *apperrors.StoreCorruptError
	if !errors.As(err, &corrupt) {
		t.Fatalf("Expected StoreCorruptError, got %v", err)
	}
	if !slices.Contains(corrupt.Missing, "공시회사") || !slices.Contains(corrupt.Missing, "계약 금액(억)") {
		t.Errorf("Expected issuer and amount columns reported, got %v", corrupt.Missing)
	}
}

// TestWorkbook_ExtendsLegacyHeader tests sheets written before the counter
// column existed.
//
// WHY: Users keep their own columns and older sheets lack Cnt. Both must
// survive: unknown columns stay, missing non-key columns are added.
func TestWorkbook_ExtendsLegacyHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	writeFixture(t, path, "신규투자", [][]any{
		{"공시회사", "공시일", "투자금액(백만원)", "메모"},
		{"IssuerA", "2024-01-09", 25000, "확인 필요"},
	})

	wb, sheet := openSheet(t, path, model.CategoryInvestment)

	seqs, _ := sheet.MaxSequencePerIssuer()
	if seqs["IssuerA"] != 0 {
		t.Errorf("Expected blank counter to read as 0, got %d", seqs["IssuerA"])
	}
	keys, _ := sheet.ExistingKeys()
	if !keys.Has(model.NaturalKey{Issuer: "IssuerA", Date: "20240109", Amount: "25000"}) {
		t.Errorf("Expected legacy row key, got %v", keys)
	}

	err := sheet.Append([]model.DisclosureRecord{
		testutil.NewRecord().WithCategory(model.CategoryInvestment).WithIssuer("IssuerA").WithAmount("100").WithSequence(1).Build(),
	})
	if err != nil {
		t.Fatalf("Append() returned unexpected error: %v", err)
	}
	if err := wb.Save(); err != nil {
		t.Fatalf("Save() returned unexpected error: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("Failed to reopen ledger: %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows("신규투자")

	if rows[0][3] != "메모" || rows[1][3] != "확인 필요" {
		t.Errorf("Expected user column preserved, got header %v row %v", rows[0], rows[1])
	}
	if !slices.Contains(rows[0], SequenceHeader) || !slices.Contains(rows[0], "익일종가") {
		t.Errorf("Expected missing columns appended, got %v", rows[0])
	}
	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows, got %d", len(rows))
	}
	if len(rows[2]) > 3 && rows[2][3] != "" {
		t.Errorf("Expected user column blank on new row, got %q", rows[2][3])
	}
}

func TestWorkbook_UnreadableFileIsNotReplaced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	if err := os.WriteFile(path, []byte("not a workbook"), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if _, err := OpenWorkbook(path); err == nil {
		t.Fatal("Expected error opening an unreadable ledger")
	}

	data, _ := os.ReadFile(path)
	if string(data) != "not a workbook" {
		t.Error("Expected unreadable file to be left untouched")
	}
}

func TestWorkbook_CompletedCellsPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.xlsx")

	wb, sheet := openSheet(t, path, model.CategoryContract)
	if err := sheet.Append([]model.DisclosureRecord{testutil.NewRecord().WithSequence(1).Build()}); err != nil {
		t.Fatalf("Append() returned unexpected error: %v", err)
	}
	if err := sheet.CompleteField(0, model.FieldSameDayClose, model.Resolved(72000)); err != nil {
		t.Fatalf("CompleteField() returned unexpected error: %v", err)
	}
	if err := sheet.CompleteField(0, model.FieldNextClose, model.ResolvedEmpty()); err != nil {
		t.Fatalf("CompleteField() returned unexpected error: %v", err)
	}
	if err := wb.Save(); err != nil {
		t.Fatalf("Save() returned unexpected error: %v", err)
	}

	_, reopened := openSheet(t, path, model.CategoryContract)
	for row := range reopened.ScanIncomplete(model.FieldNextClose) {
		t.Errorf("Expected no incomplete rows after reopen, got %+v", row)
	}
	// prev close is still open, so scanning on it finds the row.
	rows := slices.Collect(reopened.ScanIncomplete(model.FieldPrevClose))
	if len(rows) != 1 || !slices.Equal(rows[0].Pending, []string{model.FieldPrevClose}) {
		t.Errorf("Expected prev close pending, got %+v", rows)
	}
}

func TestParseCellDate(t *testing.T) {
	want := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{
		"20240304", "45355", "2024-03-04", "2024-03-04 00:00:00", "2024.03.04",
		"45355.5",           // noon
		"45355.75",          // 18:00
		"45354.99999999999", // float noise just before midnight
		"2024-03-04 18:30:00",
	} {
		t.Run(raw, func(t *testing.T) {
			got, err := parseCellDate(raw)
			if err != nil {
				t.Fatalf("parseCellDate(%q) returned unexpected error: %v", raw, err)
			}
			if !got.Equal(want) {
				t.Errorf("parseCellDate(%q) = %v, want %v", raw, got, want)
			}
		})
	}

	if _, err := parseCellDate("어제"); err == nil {
		t.Error("Expected error for unrecognised date")
	}
}
