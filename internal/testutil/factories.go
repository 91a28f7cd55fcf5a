package testutil

import (
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/Disclosure-Ledger/internal/model"
)

// RecordBuilder provides a fluent interface for creating ledger records.
//
// Example usage:
//
//	// Keyed contract record with defaults
//	rec := testutil.NewRecord().Build()
//
//	// Customized record
//	rec := testutil.NewRecord().
//	    WithIssuer("IssuerA").
//	    WithDate(time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)).
//	    WithAmount("500").
//	    Build()
type RecordBuilder struct {
	rec model.DisclosureRecord
}

// NewRecord creates a RecordBuilder for a fully keyed contract record whose
// close prices are still open.
func NewRecord() *RecordBuilder {
	return &RecordBuilder{rec: model.DisclosureRecord{
		Category:     model.CategoryContract,
		FilingID:     MakeFilingID(),
		Issuer:       "테스트전자",
		InstrumentID: "005930",
		FilingDate:   time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Amount:       decimal.NewNullDecimal(decimal.NewFromInt(500)),
		Fields:       map[string]any{},
		Deferred: map[string]model.DeferredValue{
			model.FieldPrevClose:    {},
			model.FieldSameDayClose: {},
			model.FieldNextClose:    {},
		},
	}}
}

// WithCategory sets the category. Merger records carry no close prices.
func (b *RecordBuilder) WithCategory(c model.Category) *RecordBuilder {
	b.rec.Category = c
	if c == model.CategoryMerger {
		b.rec.Deferred = nil
	}
	return b
}

// WithIssuer sets the issuer name.
func (b *RecordBuilder) WithIssuer(issuer string) *RecordBuilder {
	b.rec.Issuer = issuer
	return b
}

// WithInstrument sets the stock code.
func (b *RecordBuilder) WithInstrument(code string) *RecordBuilder {
	b.rec.InstrumentID = code
	return b
}

// WithDate sets the filing date.
func (b *RecordBuilder) WithDate(date time.Time) *RecordBuilder {
	b.rec.FilingDate = date
	return b
}

// WithAmount sets the amount from its decimal text.
func (b *RecordBuilder) WithAmount(amount string) *RecordBuilder {
	b.rec.Amount = decimal.NewNullDecimal(decimal.RequireFromString(amount))
	return b
}

// WithoutAmount clears the amount.
func (b *RecordBuilder) WithoutAmount() *RecordBuilder {
	b.rec.Amount = decimal.NullDecimal{}
	return b
}

// WithSequence sets the per-issuer sequence.
func (b *RecordBuilder) WithSequence(seq int) *RecordBuilder {
	b.rec.Sequence = seq
	return b
}

// WithField sets a category-specific field.
func (b *RecordBuilder) WithField(name string, v any) *RecordBuilder {
	b.rec.Fields[name] = v
	return b
}

// WithDeferred sets a deferred field.
func (b *RecordBuilder) WithDeferred(name string, v model.DeferredValue) *RecordBuilder {
	if b.rec.Deferred == nil {
		b.rec.Deferred = map[string]model.DeferredValue{}
	}
	b.rec.Deferred[name] = v
	return b
}

// Build returns the record.
func (b *RecordBuilder) Build() model.DisclosureRecord {
	return b.rec
}

// RunBuilder provides a fluent interface for journal entries.
//
// Example usage:
//
//	run := testutil.NewRun().WithStatus(model.RunStatusFailed).Build(t, db)
type RunBuilder struct {
	run model.Run
}

// NewRun creates a RunBuilder for a succeeded manual run.
func NewRun() *RunBuilder {
	started := time.Date(2024, 1, 10, 9, 30, 0, 0, time.UTC)
	finished := started.Add(time.Minute)
	return &RunBuilder{run: model.Run{
		ID:         MakeID(),
		Date:       "20240110",
		Trigger:    "manual",
		Status:     model.RunStatusSucceeded,
		StartedAt:  started,
		FinishedAt: &finished,
		Summary:    &model.RunSummary{Date: started.Truncate(24 * time.Hour)},
	}}
}

// WithID sets a custom ID.
func (b *RunBuilder) WithID(id string) *RunBuilder {
	b.run.ID = id
	return b
}

// WithStatus sets the status. A running entry has no finish time.
func (b *RunBuilder) WithStatus(status string) *RunBuilder {
	b.run.Status = status
	if status == model.RunStatusRunning {
		b.run.FinishedAt = nil
		b.run.Summary = nil
	}
	return b
}

// WithStartedAt sets the start time.
func (b *RunBuilder) WithStartedAt(t time.Time) *RunBuilder {
	b.run.StartedAt = t
	return b
}

// WithError sets the failure message.
func (b *RunBuilder) WithError(msg string) *RunBuilder {
	b.run.Error = msg
	return b
}

// Build inserts the run into the database.
func (b *RunBuilder) Build(t *testing.T, db *sql.DB) model.Run {
	t.Helper()

	var finished, summary, runErr any
	if b.run.FinishedAt != nil {
		finished = b.run.FinishedAt.UTC().Format(time.RFC3339)
	}
	if b.run.Summary != nil {
		raw, err := json.Marshal(b.run.Summary)
		if err != nil {
			t.Fatalf("Failed to encode run summary: %v", err)
		}
		summary = string(raw)
	}
	if b.run.Error != "" {
		runErr = b.run.Error
	}

	query := `
		INSERT INTO runs (id, date, trigger, status, started_at, finished_at, summary, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.Exec(query, b.run.ID, b.run.Date, b.run.Trigger, b.run.Status,
		b.run.StartedAt.UTC().Format(time.RFC3339), finished, summary, runErr)
	if err != nil {
		t.Fatalf("Failed to create test run: %v", err)
	}

	return b.run
}
