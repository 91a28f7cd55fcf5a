package market

import (
	"testing"
	"time"
)

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

// testSeries returns closes newest first: 01-12, 01-11, 01-10, 01-09, 01-08.
func testSeries() Series {
	return Series{
		{Date: day("2024-01-12"), Close: 1200},
		{Date: day("2024-01-11"), Close: 1100},
		{Date: day("2024-01-10"), Close: 1000},
		{Date: day("2024-01-09"), Close: 900},
		{Date: day("2024-01-08"), Close: 800},
	}
}

func value(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func TestClosesAround(t *testing.T) {
	tests := []struct {
		name       string
		series     Series
		date       time.Time
		wantStatus LookupStatus
		wantPrev   any
		wantSame   any
		wantNext   any
	}{
		{
			name:       "middle of window",
			series:     testSeries(),
			date:       day("2024-01-10"),
			wantStatus: LookupFound,
			wantPrev:   int64(900),
			wantSame:   int64(1000),
			wantNext:   int64(1100),
		},
		{
			name:       "newest day has no next close yet",
			series:     testSeries(),
			date:       day("2024-01-12"),
			wantStatus: LookupFound,
			wantPrev:   int64(1100),
			wantSame:   int64(1200),
		},
		{
			name:       "oldest day has no previous close",
			series:     testSeries(),
			date:       day("2024-01-08"),
			wantStatus: LookupFound,
			wantSame:   int64(800),
			wantNext:   int64(900),
		},
		{
			name:       "time of day is ignored",
			series:     testSeries(),
			date:       time.Date(2024, 1, 10, 18, 30, 0, 0, time.UTC),
			wantStatus: LookupFound,
			wantPrev:   int64(900),
			wantSame:   int64(1000),
			wantNext:   int64(1100),
		},
		{
			name:       "weekend inside window",
			series:     Series{{Date: day("2024-01-08"), Close: 800}, {Date: day("2024-01-05"), Close: 500}},
			date:       day("2024-01-06"),
			wantStatus: LookupNotFound,
		},
		{
			name:       "older than window",
			series:     testSeries(),
			date:       day("2023-12-01"),
			wantStatus: LookupNotFound,
		},
		{
			name:       "newer than window",
			series:     testSeries(),
			date:       day("2024-01-15"),
			wantStatus: LookupNotYetAvailable,
		},
		{
			name:       "empty series",
			series:     nil,
			date:       day("2024-01-10"),
			wantStatus: LookupNotYetAvailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClosesAround(tt.series, tt.date)
			if got.Status != tt.wantStatus {
				t.Fatalf("Status = %s, want %s", got.Status, tt.wantStatus)
			}
			if value(got.Prev) != tt.wantPrev {
				t.Errorf("Prev = %v, want %v", value(got.Prev), tt.wantPrev)
			}
			if value(got.Same) != tt.wantSame {
				t.Errorf("Same = %v, want %v", value(got.Same), tt.wantSame)
			}
			if value(got.Next) != tt.wantNext {
				t.Errorf("Next = %v, want %v", value(got.Next), tt.wantNext)
			}
		})
	}
}
