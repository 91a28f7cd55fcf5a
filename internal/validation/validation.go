// Package validation checks identifiers and dates received over the admin API.
package validation

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ndewijer/Disclosure-Ledger/internal/apperrors"
	"github.com/ndewijer/Disclosure-Ledger/internal/model"
)

// ValidateUUID checks if a string is a valid UUID
func ValidateUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidUUID, id)
	}
	return nil
}

// ValidateDate parses a YYYYMMDD target date. Dates after today in loc are
// rejected, since no filings exist for them yet.
func ValidateDate(raw string, today time.Time) (time.Time, error) {
	if len(raw) != len(model.DateKeyLayout) {
		return time.Time{}, fmt.Errorf("%w: %q", apperrors.ErrInvalidDate, raw)
	}
	d, err := time.Parse(model.DateKeyLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", apperrors.ErrInvalidDate, raw)
	}
	if !today.IsZero() && d.After(today) {
		return time.Time{}, fmt.Errorf("%w: %s is in the future", apperrors.ErrInvalidDate, raw)
	}
	return d, nil
}
