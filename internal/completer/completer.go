// Package completer backfills ledger fields that are only known after the
// filing date: the close prices around it.
package completer

import (
	"context"
	"fmt"
	"time"

	"github.com/ndewijer/Disclosure-Ledger/internal/ledger"
	"github.com/ndewijer/Disclosure-Ledger/internal/logger"
	"github.com/ndewijer/Disclosure-Ledger/internal/market"
	"github.com/ndewijer/Disclosure-Ledger/internal/model"
)

// Result counts what one completion pass did.
type Result struct {
	Scanned   int // rows with the trigger field open
	Completed int // cells resolved, including resolved-empty
	Pending   int // rows left open for a later run
	Failures  int // rows skipped on lookup or write errors
}

// Completer resolves deferred close-price fields against a price source.
type Completer struct {
	prices market.PriceSource
}

// New creates a Completer.
func New(prices market.PriceSource) *Completer {
	return &Completer{prices: prices}
}

type historyKey struct {
	instrument string
	date       time.Time
}

// Complete visits every row whose next-day close is open. Rows are
// independent: a failure is logged and counted and the pass continues.
// Only a cancelled context stops it early.
func (c *Completer) Complete(ctx context.Context, store ledger.Store) (Result, error) {
	log := logger.WithContext(ctx)
	var res Result
	histories := make(map[historyKey]market.Series)

	for row := range store.ScanIncomplete(model.FieldNextClose) {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Scanned++

		key := historyKey{instrument: row.InstrumentID, date: row.FilingDate}
		series, ok := histories[key]
		if !ok {
			var err error
			series, err = c.prices.History(ctx, row.InstrumentID, row.FilingDate)
			if err != nil {
				log.Warn("price lookup failed",
					"issuer", row.Issuer,
					"instrument", row.InstrumentID,
					"date", row.FilingDate.Format(time.DateOnly),
					"error", err)
				res.Failures++
				continue
			}
			histories[key] = series
		}

		lookup := market.ClosesAround(series, row.FilingDate)
		if lookup.Status == market.LookupNotYetAvailable {
			res.Pending++
			continue
		}

		written, err := complete(store, row, values(lookup))
		res.Completed += written
		if err != nil {
			log.Warn("failed to complete row",
				"issuer", row.Issuer,
				"instrument", row.InstrumentID,
				"error", err)
			res.Failures++
			continue
		}
		if lookup.Next == nil && lookup.Status == market.LookupFound {
			res.Pending++
		}

		log.Debug("row completed",
			"issuer", row.Issuer,
			"instrument", row.InstrumentID,
			"lookup", lookup.Status.String(),
			"cells", written)
	}

	return res, nil
}

// values maps a lookup onto the deferred fields. A missing previous close
// is final; a missing next close is not published yet.
func values(l market.CloseLookup) map[string]model.DeferredValue {
	if l.Status == market.LookupNotFound {
		return map[string]model.DeferredValue{
			model.FieldPrevClose:    model.ResolvedEmpty(),
			model.FieldSameDayClose: model.ResolvedEmpty(),
			model.FieldNextClose:    model.ResolvedEmpty(),
		}
	}
	return map[string]model.DeferredValue{
		model.FieldPrevClose:    resolved(l.Prev),
		model.FieldSameDayClose: resolved(l.Same),
		model.FieldNextClose:    pendingUnless(l.Next),
	}
}

func resolved(v *int64) model.DeferredValue {
	if v == nil {
		return model.ResolvedEmpty()
	}
	return model.Resolved(*v)
}

func pendingUnless(v *int64) model.DeferredValue {
	if v == nil {
		return model.DeferredValue{State: model.DeferredPending}
	}
	return model.Resolved(*v)
}

// complete writes the open fields of one row and returns how many cells
// were resolved before the first error.
func complete(store ledger.Store, row ledger.IncompleteRow, vals map[string]model.DeferredValue) (int, error) {
	written := 0
	for _, field := range row.Pending {
		v, ok := vals[field]
		if !ok {
			continue
		}
		if err := store.CompleteField(row.Handle, field, v); err != nil {
			return written, fmt.Errorf("field %s: %w", field, err)
		}
		if v.IsResolved() {
			written++
		}
	}
	return written, nil
}
