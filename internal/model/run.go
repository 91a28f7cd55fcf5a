package model

import "time"

// Run statuses stored in the run journal.
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// CategorySummary counts what a run did for one category.
type CategorySummary struct {
	Category           Category `json:"category"`
	Considered         int      `json:"considered"`         // filings returned by the source
	Inserted           int      `json:"inserted"`           // rows appended to the ledger
	Duplicates         int      `json:"duplicates"`         // candidates already in the ledger or repeated in the batch
	Rejected           int      `json:"rejected"`           // candidates missing a key component
	Excluded           int      `json:"excluded"`           // filings of excluded sectors
	Failed             int      `json:"failed"`             // filings skipped on fetch or parse errors
	Completed          int      `json:"completed"`          // deferred cells written
	CompletionFailures int      `json:"completionFailures"` // rows whose completion failed
}

// Skipped is every considered filing that did not become a row.
func (s CategorySummary) Skipped() int {
	return s.Duplicates + s.Rejected + s.Excluded + s.Failed
}

// RunSummary is the user-visible outcome of one pipeline run.
type RunSummary struct {
	Date       time.Time         `json:"date"`
	DryRun     bool              `json:"dryRun"`
	Categories []CategorySummary `json:"categories"`
}

// Totals sums the per-category counters.
func (s RunSummary) Totals() CategorySummary {
	var t CategorySummary
	for _, c := range s.Categories {
		t.Considered += c.Considered
		t.Inserted += c.Inserted
		t.Duplicates += c.Duplicates
		t.Rejected += c.Rejected
		t.Excluded += c.Excluded
		t.Failed += c.Failed
		t.Completed += c.Completed
		t.CompletionFailures += c.CompletionFailures
	}
	return t
}

// Run is one entry of the run journal.
type Run struct {
	ID         string      `json:"id"`
	Date       string      `json:"date"` // target date, YYYYMMDD
	Trigger    string      `json:"trigger"`
	Status     string      `json:"status"`
	StartedAt  time.Time   `json:"startedAt"`
	FinishedAt *time.Time  `json:"finishedAt,omitempty"`
	Summary    *RunSummary `json:"summary,omitempty"`
	Error      string      `json:"error,omitempty"`
}
