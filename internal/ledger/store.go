package ledger

import (
	"fmt"
	"iter"
	"time"

	"github.com/ndewijer/Disclosure-Ledger/internal/apperrors"
	"github.com/ndewijer/Disclosure-Ledger/internal/model"
)

// KeySet holds the natural keys already persisted.
type KeySet map[model.NaturalKey]struct{}

// Has reports whether k is in the set.
func (s KeySet) Has(k model.NaturalKey) bool {
	_, ok := s[k]
	return ok
}

// RowHandle addresses a persisted row. It stays valid for the life of the
// store it came from.
type RowHandle int

// IncompleteRow is a persisted row with at least one deferred field open.
type IncompleteRow struct {
	Handle       RowHandle
	Issuer       string
	InstrumentID string
	FilingDate   time.Time
	Pending      []string // deferred fields not yet resolved, in column order
}

// Store is the ledger as seen by reconciliation and completion.
type Store interface {
	// ExistingKeys returns the natural key of every persisted row.
	ExistingKeys() (KeySet, error)
	// MaxSequencePerIssuer returns the highest sequence per issuer.
	// Issuers without rows are absent, which reads as 0.
	MaxSequencePerIssuer() (map[string]int, error)
	// Append adds fully keyed, sequenced rows in order.
	Append(rows []model.DisclosureRecord) error
	// ScanIncomplete yields rows whose field is unresolved, in storage order.
	ScanIncomplete(field string) iter.Seq[IncompleteRow]
	// CompleteField writes one deferred cell. Resolved cells are never
	// overwritten and pending values leave the cell open.
	CompleteField(h RowHandle, field string, v model.DeferredValue) error
}

// PairHistory looks up merger pairs already recorded in a sheet.
type PairHistory interface {
	// FirstSeen returns the earliest first report date recorded for the
	// merging and target company pair. It reports false when the pair has
	// no row.
	FirstSeen(mergingCorp, targetCorp string) (time.Time, bool)
}

// validateRows rejects a batch containing a row without its full identity.
func validateRows(rows []model.DisclosureRecord) error {
	for _, r := range rows {
		if missing := r.Missing(); len(missing) > 0 {
			return &apperrors.IncompleteRecordError{FilingID: r.FilingID, Missing: missing}
		}
		if r.Sequence < 1 {
			return fmt.Errorf("filing %s: row has no sequence", r.FilingID)
		}
	}
	return nil
}
