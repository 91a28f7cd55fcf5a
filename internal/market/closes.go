package market

import (
	"slices"
	"time"
)

// DailyClose is one trading day of the price history.
type DailyClose struct {
	Date  time.Time
	Close int64
}

// Series is a price history ordered newest first.
type Series []DailyClose

// Newest returns the most recent trading day, or false for an empty series.
func (s Series) Newest() (time.Time, bool) {
	if len(s) == 0 {
		return time.Time{}, false
	}
	return s[0].Date, true
}

// Oldest returns the earliest trading day, or false for an empty series.
func (s Series) Oldest() (time.Time, bool) {
	if len(s) == 0 {
		return time.Time{}, false
	}
	return s[len(s)-1].Date, true
}

// LookupStatus is the outcome of ClosesAround.
type LookupStatus int

const (
	// LookupFound means the date is a trading day in the series.
	LookupFound LookupStatus = iota
	// LookupNotFound means the series covers the date but it is not a
	// trading day there. All three closes resolve as empty.
	LookupNotFound
	// LookupNotYetAvailable means the series ends before the date. Nothing
	// is resolved; a later run retries.
	LookupNotYetAvailable
)

func (s LookupStatus) String() string {
	switch s {
	case LookupFound:
		return "found"
	case LookupNotFound:
		return "not_found"
	case LookupNotYetAvailable:
		return "not_yet_available"
	default:
		return "unknown"
	}
}

// CloseLookup holds the closes around a filing date. Prev is nil when the
// series has no older day, Next is nil when the date is the newest day.
type CloseLookup struct {
	Status LookupStatus
	Prev   *int64
	Same   *int64
	Next   *int64
}

// ClosesAround places date in the trading-day sequence. Only the calendar
// day of date is compared.
func ClosesAround(series Series, date time.Time) CloseLookup {
	newest, ok := series.Newest()
	if !ok || dayOf(date).After(dayOf(newest)) {
		return CloseLookup{Status: LookupNotYetAvailable}
	}

	idx := slices.IndexFunc(series, func(d DailyClose) bool {
		return dayOf(d.Date).Equal(dayOf(date))
	})
	if idx < 0 {
		return CloseLookup{Status: LookupNotFound}
	}

	out := CloseLookup{Status: LookupFound, Same: ptr(series[idx].Close)}
	if idx+1 < len(series) {
		out.Prev = ptr(series[idx+1].Close)
	}
	if idx > 0 {
		out.Next = ptr(series[idx-1].Close)
	}
	return out
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr(v int64) *int64 {
	return &v
}
