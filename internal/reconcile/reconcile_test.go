package reconcile

import (
	"errors"
	"testing"
	"time"

	"github.com/ndewijer/Disclosure-Ledger/internal/apperrors"
	"github.com/ndewijer/Disclosure-Ledger/internal/ledger"
	"github.com/ndewijer/Disclosure-Ledger/internal/model"
	"github.com/ndewijer/Disclosure-Ledger/internal/testutil"
)

var jan10 = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

func candidate(issuer, amount string) model.DisclosureRecord {
	return testutil.NewRecord().WithIssuer(issuer).WithDate(jan10).WithAmount(amount).Build()
}

func sequences(rows []model.DisclosureRecord) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r.Sequence
	}
	return out
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TestReconcile_EmptyLedgerSameIssuer tests the same issuer filing twice on one day.
//
// WHY: Amount is part of the key, so two contracts of one issuer on one day are
// distinct rows and must be numbered in input order.
func TestReconcile_EmptyLedgerSameIssuer(t *testing.T) {
	// Setup
	store := ledger.NewMemoryStore()
	batch := []model.DisclosureRecord{candidate("IssuerA", "500"), candidate("IssuerA", "700")}

	// Execute
	out, err := Reconcile(batch, store)

	// Assert
	if err != nil {
		t.Fatalf("Reconcile() returned unexpected error: %v", err)
	}
	if len(out.Rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(out.Rows))
	}
	if !equalInts(sequences(out.Rows), []int{1, 2}) {
		t.Errorf("Expected sequences [1 2], got %v", sequences(out.Rows))
	}
	if out.Rows[0].Amount.Decimal.String() != "500" || out.Rows[1].Amount.Decimal.String() != "700" {
		t.Errorf("Expected input order kept, got %v then %v", out.Rows[0].Amount, out.Rows[1].Amount)
	}
}

func TestReconcile_ContinuesFromMaxSequence(t *testing.T) {
	store := ledger.NewMemoryStore(
		testutil.NewRecord().WithIssuer("IssuerA").WithAmount("1").WithSequence(1).Build(),
		testutil.NewRecord().WithIssuer("IssuerA").WithAmount("2").WithSequence(3).Build(),
		testutil.NewRecord().WithIssuer("IssuerB").WithAmount("3").WithSequence(1).Build(),
	)

	out, err := Reconcile([]model.DisclosureRecord{candidate("IssuerA", "900")}, store)
	if err != nil {
		t.Fatalf("Reconcile() returned unexpected error: %v", err)
	}

	if len(out.Rows) != 1 || out.Rows[0].Sequence != 4 {
		t.Errorf("Expected one row with sequence 4, got %v", sequences(out.Rows))
	}
}

func TestReconcile_InterleavedIssuers(t *testing.T) {
	store := ledger.NewMemoryStore(
		testutil.NewRecord().WithIssuer("IssuerB").WithAmount("1").WithSequence(2).Build(),
	)
	batch := []model.DisclosureRecord{
		candidate("IssuerA", "10"),
		candidate("IssuerB", "20"),
		candidate("IssuerA", "30"),
		candidate("IssuerC", "40"),
		candidate("IssuerB", "50"),
	}

	out, err := Reconcile(batch, store)
	if err != nil {
		t.Fatalf("Reconcile() returned unexpected error: %v", err)
	}

	if want := []int{1, 3, 2, 1, 4}; !equalInts(sequences(out.Rows), want) {
		t.Errorf("Expected sequences %v, got %v", want, sequences(out.Rows))
	}
}

func TestReconcile_ExcludesExistingKey(t *testing.T) {
	existing := candidate("IssuerA", "500")
	existing.Sequence = 1
	store := ledger.NewMemoryStore(existing)

	out, err := Reconcile([]model.DisclosureRecord{candidate("IssuerA", "500"), candidate("IssuerA", "501")}, store)
	if err != nil {
		t.Fatalf("Reconcile() returned unexpected error: %v", err)
	}

	if len(out.Rows) != 1 || out.Rows[0].Amount.Decimal.String() != "501" {
		t.Fatalf("Expected only the 501 row, got %+v", out.Rows)
	}
	if out.Rows[0].Sequence != 2 {
		t.Errorf("Expected sequence 2, got %d", out.Rows[0].Sequence)
	}
	if len(out.Duplicates) != 1 {
		t.Errorf("Expected 1 duplicate, got %d", len(out.Duplicates))
	}
}

// TestReconcile_Idempotent tests re-running the same batch.
//
// WHY: The daily job is re-run freely (manual reruns, retries after a crash).
// The second pass over the same filings must insert nothing.
func TestReconcile_Idempotent(t *testing.T) {
	store := ledger.NewMemoryStore()
	batch := []model.DisclosureRecord{
		candidate("IssuerA", "500"),
		candidate("IssuerB", "700"),
		candidate("IssuerA", "900"),
	}

	first, err := Reconcile(batch, store)
	if err != nil {
		t.Fatalf("first Reconcile() returned unexpected error: %v", err)
	}
	if err := store.Append(first.Rows); err != nil {
		t.Fatalf("Append() returned unexpected error: %v", err)
	}

	second, err := Reconcile(batch, store)
	if err != nil {
		t.Fatalf("second Reconcile() returned unexpected error: %v", err)
	}

	if len(second.Rows) != 0 {
		t.Errorf("Expected no rows on rerun, got %d", len(second.Rows))
	}
	if len(second.Duplicates) != 3 {
		t.Errorf("Expected 3 duplicates on rerun, got %d", len(second.Duplicates))
	}
}

func TestReconcile_GapFreePerIssuer(t *testing.T) {
	store := ledger.NewMemoryStore()

	// Three daily batches, each mixing issuers and repeating earlier filings.
	batches := [][]model.DisclosureRecord{
		{candidate("IssuerA", "1"), candidate("IssuerB", "1")},
		{candidate("IssuerA", "1"), candidate("IssuerA", "2"), candidate("IssuerC", "1")},
		{candidate("IssuerB", "2"), candidate("IssuerA", "3"), candidate("IssuerB", "1")},
	}
	for _, b := range batches {
		out, err := Reconcile(b, store)
		if err != nil {
			t.Fatalf("Reconcile() returned unexpected error: %v", err)
		}
		if err := store.Append(out.Rows); err != nil {
			t.Fatalf("Append() returned unexpected error: %v", err)
		}
	}

	perIssuer := map[string][]int{}
	for _, r := range store.Rows() {
		perIssuer[r.Issuer] = append(perIssuer[r.Issuer], r.Sequence)
	}
	want := map[string][]int{"IssuerA": {1, 2, 3}, "IssuerB": {1, 2}, "IssuerC": {1}}
	for issuer, seqs := range want {
		if !equalInts(perIssuer[issuer], seqs) {
			t.Errorf("%s: expected %v, got %v", issuer, seqs, perIssuer[issuer])
		}
	}
}

func TestReconcile_RejectsIncomplete(t *testing.T) {
	store := ledger.NewMemoryStore()
	noAmount := testutil.NewRecord().WithIssuer("IssuerA").WithoutAmount().Build()
	noIssuer := testutil.NewRecord().WithIssuer(" ").Build()

	out, err := Reconcile([]model.DisclosureRecord{noAmount, candidate("IssuerA", "5"), noIssuer}, store)
	if err != nil {
		t.Fatalf("Reconcile() returned unexpected error: %v", err)
	}

	if len(out.Rejected) != 2 {
		t.Fatalf("Expected 2 rejected, got %d", len(out.Rejected))
	}
	for _, e := range out.Rejected {
		if !errors.Is(e, apperrors.ErrIncompleteRecord) {
			t.Errorf("Expected ErrIncompleteRecord, got %v", e)
		}
	}
	if len(out.Rows) != 1 || out.Rows[0].Sequence != 1 {
		t.Errorf("Expected the keyed row with sequence 1, got %+v", out.Rows)
	}
}

func TestReconcile_DuplicateWithinBatch(t *testing.T) {
	store := ledger.NewMemoryStore()

	out, err := Reconcile([]model.DisclosureRecord{candidate("IssuerA", "500"), candidate("IssuerA", "500")}, store)
	if err != nil {
		t.Fatalf("Reconcile() returned unexpected error: %v", err)
	}

	if len(out.Rows) != 1 || len(out.Duplicates) != 1 {
		t.Errorf("Expected the second equal key dropped, got rows=%d duplicates=%d", len(out.Rows), len(out.Duplicates))
	}
}

type failingReader struct{ err error }

func (f failingReader) ExistingKeys() (ledger.KeySet, error)         { return nil, f.err }
func (f failingReader) MaxSequencePerIssuer() (map[string]int, error) { return nil, f.err }

func TestReconcile_StoreError(t *testing.T) {
	boom := errors.New("read failed")

	_, err := Reconcile([]model.DisclosureRecord{candidate("IssuerA", "1")}, failingReader{err: boom})
	if !errors.Is(err, boom) {
		t.Errorf("Expected store error to propagate, got %v", err)
	}
}
