package extract

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/ndewijer/Disclosure-Ledger/internal/model"
)

//go:embed labels.yaml
var defaultLabels []byte

// FieldSpec describes one field to extract.
type FieldSpec struct {
	Name     string   `yaml:"name"`
	Kind     Kind     `yaml:"kind"`
	Labels   []string `yaml:"labels"`
	Fallback []string `yaml:"fallback"`
	Column   int      `yaml:"column"` // 1-based; 0 reads the last cell
}

// FieldSet is the extraction recipe for one category.
type FieldSet struct {
	Section  string      `yaml:"section"`   // heading the search starts at
	Anchors  []string    `yaml:"anchors"`   // first table containing one is searched
	RowCells int         `yaml:"row_cells"` // only rows with exactly this many cells
	Overview bool        `yaml:"overview"`  // also collect business overviews
	Fields   []FieldSpec `yaml:"fields"`
}

// LabelTable maps categories to their extraction recipes.
type LabelTable map[model.Category]FieldSet

// DefaultLabels returns the built-in label table.
func DefaultLabels() LabelTable {
	t, err := ParseLabelTable(defaultLabels)
	if err != nil {
		panic(fmt.Sprintf("embedded labels.yaml: %v", err))
	}
	return t
}

// ParseLabelTable decodes a YAML label table and validates it.
func ParseLabelTable(data []byte) (LabelTable, error) {
	var raw map[string]FieldSet
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode label table: %w", err)
	}
	table := make(LabelTable, len(raw))
	for name, fs := range raw {
		category, err := model.ParseCategory(name)
		if err != nil {
			return nil, err
		}
		for i, f := range fs.Fields {
			if f.Name == "" || len(f.Labels) == 0 {
				return nil, fmt.Errorf("%s field %d: name and labels are required", name, i)
			}
			switch f.Kind {
			case KindString, KindInt, KindFloat, KindDate, KindDecimal, KindAmount, KindDigits:
			case "":
				fs.Fields[i].Kind = KindString
			default:
				return nil, fmt.Errorf("%s field %s: unknown kind %q", name, f.Name, f.Kind)
			}
		}
		table[category] = fs
	}
	return table, nil
}

// Keys holding the business overview paragraphs when FieldSet.Overview is set.
const (
	OverviewMerging = "overview_merging"
	OverviewTarget  = "overview_target"
)

// Fields holds coerced values by field name. Absent fields have no entry.
type Fields map[string]any

// String returns a string field or "".
func (f Fields) String(name string) string {
	s, _ := f[name].(string)
	return s
}

// Int returns an integer field.
func (f Fields) Int(name string) (int64, bool) {
	v, ok := f[name].(int64)
	return v, ok
}

// Float returns a float field.
func (f Fields) Float(name string) (float64, bool) {
	v, ok := f[name].(float64)
	return v, ok
}

// Date returns a date field.
func (f Fields) Date(name string) (time.Time, bool) {
	v, ok := f[name].(time.Time)
	return v, ok
}

// Decimal returns a decimal or amount field.
func (f Fields) Decimal(name string) (decimal.Decimal, bool) {
	v, ok := f[name].(decimal.Decimal)
	return v, ok
}

// ExtractAll applies a recipe. Malformed values are reported per field and
// left absent so the remaining fields are still usable.
func ExtractAll(doc *Document, fs FieldSet) (Fields, []error) {
	fields := Fields{}

	if fs.Overview {
		overviews := BusinessOverviews(doc)
		if len(overviews) > 0 {
			fields[OverviewMerging] = overviews[0]
		}
		if len(overviews) > 1 {
			fields[OverviewTarget] = overviews[1]
		}
	}

	scope := doc
	if fs.Section != "" {
		sec, ok := scope.Section(fs.Section)
		if !ok {
			return fields, nil
		}
		scope = sec
	}
	if len(fs.Anchors) > 0 {
		tbl, ok := scope.Table(fs.Anchors...)
		if !ok {
			return fields, nil
		}
		scope = tbl
	}

	var errs []error
	for _, field := range fs.Fields {
		raw, ok := scope.lookup(field.Labels, field.Column, fs.RowCells)
		if !ok && len(field.Fallback) > 0 {
			raw, ok = scope.lookup(field.Fallback, field.Column, fs.RowCells)
		}
		if !ok {
			continue
		}
		v, err := Coerce(field.Name, raw, field.Kind)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fields[field.Name] = v
	}
	return fields, errs
}
