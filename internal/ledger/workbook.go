package ledger

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/ndewijer/Disclosure-Ledger/internal/apperrors"
)

const defaultSheet = "Sheet1"

var dateFormat = "yyyy-mm-dd"

// Workbook is the ledger file. Changes stay in memory until Save.
type Workbook struct {
	path    string
	file    *excelize.File
	created bool
	sheets  map[string]*Sheet
	styles  map[Format]int
	header  int
}

// OpenWorkbook opens the ledger at path, or starts a new one when the file
// does not exist. A file that exists but cannot be read is an error; it is
// never replaced.
func OpenWorkbook(path string) (*Workbook, error) {
	w := &Workbook{
		path:   path,
		sheets: make(map[string]*Sheet),
		styles: make(map[Format]int),
		header: -1,
	}

	_, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		w.file = excelize.NewFile()
		w.created = true
		return w, nil
	case err != nil:
		return nil, fmt.Errorf("failed to stat ledger %s: %w", path, err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %s: %w", path, err)
	}
	w.file = f
	return w, nil
}

// Path returns the ledger location.
func (w *Workbook) Path() string {
	return w.path
}

// Sheet returns the store for schema, creating the sheet when missing.
// A persisted sheet whose header lacks a key column fails with
// *apperrors.StoreCorruptError; other missing schema columns are added to the
// end of the header.
func (w *Workbook) Sheet(schema Schema) (*Sheet, error) {
	if s, ok := w.sheets[schema.Sheet]; ok {
		return s, nil
	}

	idx, err := w.file.GetSheetIndex(schema.Sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to look up sheet %s: %w", schema.Sheet, err)
	}

	s := &Sheet{wb: w, schema: schema, cols: make(map[string]int)}

	if idx == -1 {
		if err := w.createSheet(schema); err != nil {
			return nil, err
		}
	} else {
		rows, err := w.file.GetRows(schema.Sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", schema.Sheet, err)
		}
		if len(rows) > 0 {
			s.header = rows[0]
			s.rows = rows[1:]
		}
	}

	for i, h := range s.header {
		if _, dup := s.cols[h]; !dup && h != "" {
			s.cols[h] = i
		}
	}

	var missing []string
	for _, h := range schema.Required() {
		if _, ok := s.cols[h]; !ok {
			missing = append(missing, h)
		}
	}
	// A sheet with no header at all is treated as empty, not corrupt.
	if len(missing) > 0 && len(s.header) > 0 {
		return nil, &apperrors.StoreCorruptError{Sheet: schema.Sheet, Missing: missing}
	}

	for _, c := range schema.Columns {
		if _, ok := s.cols[c.Header]; ok {
			continue
		}
		if err := s.addColumn(c.Header); err != nil {
			return nil, err
		}
	}

	w.sheets[schema.Sheet] = s
	return s, nil
}

func (w *Workbook) createSheet(schema Schema) error {
	if _, err := w.file.NewSheet(schema.Sheet); err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", schema.Sheet, err)
	}
	if w.created && schema.Sheet != defaultSheet {
		if idx, _ := w.file.GetSheetIndex(defaultSheet); idx != -1 {
			if err := w.file.DeleteSheet(defaultSheet); err != nil {
				return fmt.Errorf("failed to drop default sheet: %w", err)
			}
		}
	}
	return nil
}

// Save writes the workbook atomically: a temporary file in the same
// directory is renamed over the ledger.
func (w *Workbook) Save() error {
	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*.xlsx")
	if err != nil {
		return fmt.Errorf("failed to create temporary ledger: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := w.file.Write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set ledger permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to flush ledger: %w", err)
	}
	if err := os.Rename(tmpName, w.path); err != nil {
		return fmt.Errorf("failed to replace ledger: %w", err)
	}
	w.created = false
	return nil
}

// Close releases the workbook without saving.
func (w *Workbook) Close() error {
	return w.file.Close()
}

func (w *Workbook) style(f Format) (int, error) {
	if id, ok := w.styles[f]; ok {
		return id, nil
	}

	font := &excelize.Font{Size: 10}
	centered := &excelize.Alignment{Horizontal: "center", Vertical: "center"}
	st := &excelize.Style{Font: font, Alignment: centered}
	switch f {
	case FormatPlain:
		st.Alignment = &excelize.Alignment{Vertical: "center"}
	case FormatWrap:
		st.Alignment = &excelize.Alignment{Vertical: "top", WrapText: true}
	case FormatDate:
		st.CustomNumFmt = &dateFormat
	case FormatInt:
		st.NumFmt = 3 // #,##0
	case FormatFloat:
		st.NumFmt = 4 // #,##0.00
	}

	id, err := w.file.NewStyle(st)
	if err != nil {
		return 0, fmt.Errorf("failed to create cell style: %w", err)
	}
	w.styles[f] = id
	return id, nil
}

func (w *Workbook) headerStyle() (int, error) {
	if w.header >= 0 {
		return w.header, nil
	}
	id, err := w.file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 10},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create header style: %w", err)
	}
	w.header = id
	return id, nil
}
