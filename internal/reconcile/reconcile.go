// Package reconcile decides which candidate records are new and numbers them
// per issuer.
package reconcile

import (
	"fmt"
	"strings"

	"github.com/ndewijer/Disclosure-Ledger/internal/apperrors"
	"github.com/ndewijer/Disclosure-Ledger/internal/ledger"
	"github.com/ndewijer/Disclosure-Ledger/internal/model"
)

// Reader is the part of the ledger reconciliation reads.
type Reader interface {
	ExistingKeys() (ledger.KeySet, error)
	MaxSequencePerIssuer() (map[string]int, error)
}

// Outcome is the result of one reconciliation.
type Outcome struct {
	// Rows are new, sequenced and in candidate order.
	Rows []model.DisclosureRecord
	// Rejected holds one *apperrors.IncompleteRecordError per unkeyed candidate.
	Rejected []error
	// Duplicates are candidates whose key is already persisted or appeared
	// earlier in the same batch.
	Duplicates []model.DisclosureRecord
}

// Reconcile filters candidates against the persisted keys and assigns each
// survivor the next sequence of its issuer. It does not modify candidates.
func Reconcile(candidates []model.DisclosureRecord, store Reader) (Outcome, error) {
	var out Outcome

	keyed := make([]model.DisclosureRecord, 0, len(candidates))
	for _, c := range candidates {
		if missing := c.Missing(); len(missing) > 0 {
			out.Rejected = append(out.Rejected, &apperrors.IncompleteRecordError{FilingID: c.FilingID, Missing: missing})
			continue
		}
		keyed = append(keyed, c)
	}
	if len(keyed) == 0 {
		return out, nil
	}

	existing, err := store.ExistingKeys()
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to read existing keys: %w", err)
	}
	counters, err := store.MaxSequencePerIssuer()
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to read sequences: %w", err)
	}

	seen := make(ledger.KeySet, len(keyed))
	for _, c := range keyed {
		key := c.Key()
		if existing.Has(key) || seen.Has(key) {
			out.Duplicates = append(out.Duplicates, c)
			continue
		}
		seen[key] = struct{}{}

		issuer := strings.TrimSpace(c.Issuer)
		counters[issuer]++
		c.Sequence = counters[issuer]
		out.Rows = append(out.Rows, c)
	}
	return out, nil
}
