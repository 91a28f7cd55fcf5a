package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

// Source errors represent failures of the external collaborators
// (filing list, document store, market info and price pages).
var (
	// ErrTransientSource indicates a network failure, timeout or 5xx response.
	// The current filing is skipped; the batch continues.
	ErrTransientSource = errors.New("transient source failure")

	// ErrDocumentNotFound indicates the document bundle had no document-like entry.
	ErrDocumentNotFound = errors.New("document not found in bundle")

	// ErrMissingAPIKey indicates no OpenDART API key was configured.
	ErrMissingAPIKey = errors.New("DART API key is not configured")

	// ErrLookupNotFound indicates a price lookup could not place a date in the
	// trading-day sequence. It is resolved as an empty value, never retried.
	ErrLookupNotFound = errors.New("trading day not found")

	// ErrPriceWindowExceeded indicates the page bound was reached before the
	// price history reached back past the filing date.
	ErrPriceWindowExceeded = errors.New("price history window exceeded")
)

// Record errors represent filings that cannot become ledger rows.
var (
	// ErrMalformedField indicates an extracted value that failed type coercion.
	ErrMalformedField = errors.New("malformed field")

	// ErrIncompleteRecord indicates a record missing issuer, filing date or amount.
	ErrIncompleteRecord = errors.New("incomplete record")

	// ErrExcludedSector indicates a filing whose issuer belongs to an excluded sector.
	ErrExcludedSector = errors.New("issuer sector is excluded")

	// ErrUnknownCategory indicates a category name outside the supported set.
	ErrUnknownCategory = errors.New("unknown filing category")
)

// Ledger errors are fatal for the whole run.
var (
	// ErrStoreCorrupt indicates the persisted header row does not carry the
	// required columns for a category.
	ErrStoreCorrupt = errors.New("ledger schema mismatch")

	// ErrRowNotFound indicates a row handle that no longer points at a ledger row.
	ErrRowNotFound = errors.New("ledger row not found")

	// ErrUnknownColumn indicates a deferred field name the schema does not define.
	ErrUnknownColumn = errors.New("unknown ledger column")
)

// Run errors are reported by the run service and the admin API.
var (
	// ErrRunInProgress indicates another run currently owns the ledger.
	ErrRunInProgress = errors.New("a run is already in progress")

	// ErrRunNotFound indicates that a run with the given ID does not exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrInvalidUUID indicates that a provided ID is not a valid UUID format.
	ErrInvalidUUID = errors.New("invalid UUID format")

	// ErrInvalidDate indicates a date parameter not in YYYYMMDD form.
	ErrInvalidDate = errors.New("invalid date, expected YYYYMMDD")
)

// TransientSourceError wraps a retryable failure of an external collaborator.
type TransientSourceError struct {
	Source string // e.g. "dart", "naver", "wisereport"
	Op     string
	Err    error
}

func (e *TransientSourceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Source, e.Op, e.Err)
}

func (e *TransientSourceError) Unwrap() []error {
	return []error{ErrTransientSource, e.Err}
}

// MalformedFieldError reports an extracted value that is present but cannot be
// coerced to the requested kind.
type MalformedFieldError struct {
	Field string
	Raw   string
	Kind  string
	Err   error
}

func (e *MalformedFieldError) Error() string {
	return fmt.Sprintf("field %q: cannot parse %q as %s: %v", e.Field, e.Raw, e.Kind, e.Err)
}

func (e *MalformedFieldError) Unwrap() []error {
	return []error{ErrMalformedField, e.Err}
}

// IncompleteRecordError rejects a record before reconciliation.
type IncompleteRecordError struct {
	FilingID string
	Missing  []string
}

func (e *IncompleteRecordError) Error() string {
	return fmt.Sprintf("filing %s missing %s", e.FilingID, strings.Join(e.Missing, ", "))
}

func (e *IncompleteRecordError) Unwrap() error {
	return ErrIncompleteRecord
}

// StoreCorruptError reports the sheet whose header lacks required columns.
type StoreCorruptError struct {
	Sheet   string
	Missing []string
}

func (e *StoreCorruptError) Error() string {
	return fmt.Sprintf("sheet %q is missing columns: %s", e.Sheet, strings.Join(e.Missing, ", "))
}

func (e *StoreCorruptError) Unwrap() error {
	return ErrStoreCorrupt
}
