// Package request parses and validates admin API request parameters.
package request

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ndewijer/Disclosure-Ledger/internal/validation"
)

// Run list limits.
const (
	DefaultRunLimit = 20
	MaxRunLimit     = 100
)

// ParseRunLimit reads the limit query parameter of the run list. An empty
// value gives DefaultRunLimit.
func ParseRunLimit(limitParam string) (int, error) {
	limitParam = strings.TrimSpace(limitParam)
	if limitParam == "" {
		return DefaultRunLimit, nil
	}
	limit, err := strconv.Atoi(limitParam)
	if err != nil {
		return 0, fmt.Errorf("invalid limit: must be a number")
	}
	if limit < 1 || limit > MaxRunLimit {
		return 0, fmt.Errorf("invalid limit: must be between 1 and %d", MaxRunLimit)
	}
	return limit, nil
}

// ParseRunDate reads the optional date of a run trigger. An empty value
// returns the zero time, which means today.
func ParseRunDate(dateParam string, today time.Time) (time.Time, error) {
	dateParam = strings.TrimSpace(dateParam)
	if dateParam == "" {
		return time.Time{}, nil
	}
	return validation.ValidateDate(dateParam, today)
}
