package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateKeyLayout is the date layout used inside natural keys and by the filing list.
const DateKeyLayout = "20060102"

// amountKeyPlaces bounds the precision of the amount key component. Amounts
// are canonicalised from whole won, so eight places keep 억 values exact.
const amountKeyPlaces = 8

// Category-specific field names. They are opaque to reconciliation and only
// travel from the normalizer to the ledger schema.
const (
	FieldAmount       = "amount"
	FieldExchange     = "exchange"
	FieldSector       = "sector"
	FieldMarketCap    = "market_cap"
	FieldStartDate    = "start_date"
	FieldEndDate      = "end_date"
	FieldContractName = "contract_name"
	FieldSalesRatio   = "sales_ratio"
	FieldCounterparty = "counterparty"

	FieldInvestmentType = "investment_type"
	FieldEquity         = "equity"
	FieldEquityRatio    = "equity_ratio"
	FieldDecisionDate   = "decision_date"

	FieldMergingCorp      = "merging_corp"
	FieldTargetCorp       = "target_corp"
	FieldFirstReportDate  = "first_report_date"
	FieldCapitalMerging   = "capital_merging"
	FieldCapitalTarget    = "capital_target"
	FieldAssetsMerging    = "assets_merging"
	FieldAssetsTarget     = "assets_target"
	FieldListingMerging   = "listing_merging"
	FieldListingTarget    = "listing_target"
	FieldSharesMerging    = "shares_merging"
	FieldSharesTarget     = "shares_target"
	FieldBusinessOverview = "business_overview"
)

// Deferred field names: close prices published after the filing date.
const (
	FieldPrevClose    = "prev_close"
	FieldSameDayClose = "same_day_close"
	FieldNextClose    = "next_close"
)

// CloseFields lists the deferred close-price fields in ledger order.
func CloseFields() []string {
	return []string{FieldPrevClose, FieldSameDayClose, FieldNextClose}
}

// DeferredState tracks whether a deferred field has been finalised.
type DeferredState int

const (
	// DeferredUnset means no lookup was attempted yet.
	DeferredUnset DeferredState = iota
	// DeferredPending means a lookup ran but the value is not published yet.
	DeferredPending
	// DeferredResolved is final: a value, or empty when the lookup found no data.
	DeferredResolved
)

// DeferredValue is the state of one deferred ledger cell.
type DeferredValue struct {
	State DeferredState
	Value *int64
}

// Resolved returns a final value.
func Resolved(v int64) DeferredValue {
	return DeferredValue{State: DeferredResolved, Value: &v}
}

// ResolvedEmpty returns a final "no data found" value.
func ResolvedEmpty() DeferredValue {
	return DeferredValue{State: DeferredResolved}
}

// IsResolved reports whether the value must never be recomputed.
func (v DeferredValue) IsResolved() bool {
	return v.State == DeferredResolved
}

// NaturalKey identifies a ledger row for deduplication.
type NaturalKey struct {
	Issuer string
	Date   string // YYYYMMDD
	Amount string // canonical decimal string
}

// NewNaturalKey canonicalises the key components so that a value read back
// from the ledger and a freshly normalised value compare equal.
func NewNaturalKey(issuer string, date time.Time, amount decimal.Decimal) NaturalKey {
	return NaturalKey{
		Issuer: strings.TrimSpace(issuer),
		Date:   date.Format(DateKeyLayout),
		Amount: amount.Round(amountKeyPlaces).String(),
	}
}

// DisclosureRecord is one ledger row.
type DisclosureRecord struct {
	Category     Category
	FilingID     string
	Issuer       string
	InstrumentID string
	FilingDate   time.Time
	Amount       decimal.NullDecimal
	Sequence     int

	// Fields holds category-specific values (string, int64, float64,
	// decimal.Decimal or time.Time) keyed by the Field* constants.
	Fields map[string]any

	// Deferred holds values resolved after the filing date.
	Deferred map[string]DeferredValue
}

// Key returns the natural key. Only meaningful when Missing is empty.
func (r DisclosureRecord) Key() NaturalKey {
	return NewNaturalKey(r.Issuer, r.FilingDate, r.Amount.Decimal)
}

// Missing lists absent key components.
func (r DisclosureRecord) Missing() []string {
	var missing []string
	if strings.TrimSpace(r.Issuer) == "" {
		missing = append(missing, "issuer")
	}
	if r.FilingDate.IsZero() {
		missing = append(missing, "filing date")
	}
	if !r.Amount.Valid {
		missing = append(missing, "amount")
	}
	return missing
}

// Field returns a category-specific value, or nil when absent.
func (r DisclosureRecord) Field(name string) any {
	if r.Fields == nil {
		return nil
	}
	return r.Fields[name]
}
