package ledger

import (
	"fmt"
	"iter"
	"maps"
	"strings"
	"time"

	"github.com/ndewijer/Disclosure-Ledger/internal/apperrors"
	"github.com/ndewijer/Disclosure-Ledger/internal/model"
)

// MemoryStore is a Store over a slice. Dry runs and tests use it.
type MemoryStore struct {
	rows []model.DisclosureRecord
}

var (
	_ Store       = (*MemoryStore)(nil)
	_ PairHistory = (*MemoryStore)(nil)
)

// NewMemoryStore returns a store holding rows.
func NewMemoryStore(rows ...model.DisclosureRecord) *MemoryStore {
	m := &MemoryStore{}
	for _, r := range rows {
		m.rows = append(m.rows, cloneRecord(r))
	}
	return m
}

// Rows returns a copy of the stored rows in insertion order.
func (m *MemoryStore) Rows() []model.DisclosureRecord {
	out := make([]model.DisclosureRecord, len(m.rows))
	for i, r := range m.rows {
		out[i] = cloneRecord(r)
	}
	return out
}

// ExistingKeys implements Store.
func (m *MemoryStore) ExistingKeys() (KeySet, error) {
	keys := make(KeySet, len(m.rows))
	for _, r := range m.rows {
		if len(r.Missing()) == 0 {
			keys[r.Key()] = struct{}{}
		}
	}
	return keys, nil
}

// MaxSequencePerIssuer implements Store.
func (m *MemoryStore) MaxSequencePerIssuer() (map[string]int, error) {
	out := make(map[string]int)
	for _, r := range m.rows {
		issuer := strings.TrimSpace(r.Issuer)
		if issuer == "" {
			continue
		}
		if cur, ok := out[issuer]; !ok || r.Sequence > cur {
			out[issuer] = r.Sequence
		}
	}
	return out, nil
}

// Append implements Store.
func (m *MemoryStore) Append(rows []model.DisclosureRecord) error {
	if err := validateRows(rows); err != nil {
		return err
	}
	for _, r := range rows {
		m.rows = append(m.rows, cloneRecord(r))
	}
	return nil
}

// FirstSeen implements PairHistory. A row without a first report date
// counts from its filing date.
func (m *MemoryStore) FirstSeen(mergingCorp, targetCorp string) (time.Time, bool) {
	mergingCorp, targetCorp = strings.TrimSpace(mergingCorp), strings.TrimSpace(targetCorp)
	if mergingCorp == "" || targetCorp == "" {
		return time.Time{}, false
	}
	var first time.Time
	for _, r := range m.rows {
		if fieldString(r, model.FieldMergingCorp) != mergingCorp || fieldString(r, model.FieldTargetCorp) != targetCorp {
			continue
		}
		d := r.FilingDate
		if v, ok := r.Fields[model.FieldFirstReportDate].(time.Time); ok && !v.IsZero() {
			d = v
		}
		if !d.IsZero() && (first.IsZero() || d.Before(first)) {
			first = d
		}
	}
	return first, !first.IsZero()
}

func fieldString(r model.DisclosureRecord, field string) string {
	s, _ := r.Fields[field].(string)
	return strings.TrimSpace(s)
}

// ScanIncomplete implements Store.
func (m *MemoryStore) ScanIncomplete(field string) iter.Seq[IncompleteRow] {
	return func(yield func(IncompleteRow) bool) {
		for i, r := range m.rows {
			dv, ok := r.Deferred[field]
			if !ok || dv.IsResolved() || r.InstrumentID == "" || r.FilingDate.IsZero() {
				continue
			}
			row := IncompleteRow{
				Handle:       RowHandle(i),
				Issuer:       r.Issuer,
				InstrumentID: r.InstrumentID,
				FilingDate:   r.FilingDate,
			}
			for _, f := range model.CloseFields() {
				if v, ok := r.Deferred[f]; ok && !v.IsResolved() {
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
func (m *MemoryStore) CompleteField(h RowHandle, field string, v model.DeferredValue) error {
	i := int(h)
	if i < 0 || i >= len(m.rows) {
		return fmt.Errorf("%w: handle %d", apperrors.ErrRowNotFound, i)
	}
	cur, ok := m.rows[i].Deferred[field]
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrUnknownColumn, field)
	}
	if cur.IsResolved() {
		return nil
	}
	if !v.IsResolved() {
		v = model.DeferredValue{State: model.DeferredPending}
	}
	m.rows[i].Deferred[field] = v
	return nil
}

func cloneRecord(r model.DisclosureRecord) model.DisclosureRecord {
	r.Fields = maps.Clone(r.Fields)
	r.Deferred = maps.Clone(r.Deferred)
	return r
}
