// Package normalize turns extracted filing fields into ledger records.
package normalize

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ndewijer/Disclosure-Ledger/internal/apperrors"
	"github.com/ndewijer/Disclosure-Ledger/internal/extract"
	"github.com/ndewijer/Disclosure-Ledger/internal/model"
)

var (
	hundredMillion = decimal.New(1, 8) // 억
	million        = decimal.New(1, 6) // 백만
)

var spacPattern = regexp.MustCompile(`인수목적|스팩|SPAC`)

// Input is everything known about one filing before it becomes a row.
type Input struct {
	Filing model.Filing
	Fields extract.Fields
	Market *model.MarketInfo // nil when the lookup failed or was skipped
}

// Normalizer maps one category's extracted fields to the ledger schema.
// A record missing a key component is returned as is; reconciliation rejects it.
type Normalizer interface {
	Category() model.Category
	Normalize(in Input) (model.DisclosureRecord, error)
}

// PairHistory reports the first report date already recorded for a merger
// pair. ledger.Sheet implements it.
type PairHistory interface {
	FirstSeen(mergingCorp, targetCorp string) (time.Time, bool)
}

// Options configures every normalizer.
type Options struct {
	ExcludedSectors []string
	Mergers         PairHistory // merger only; nil means every pair is new
}

// ForCategory returns the normalizer for c.
func ForCategory(c model.Category, opts Options) (Normalizer, error) {
	base := base{excluded: opts.ExcludedSectors}
	switch c {
	case model.CategoryContract:
		return contract{base}, nil
	case model.CategoryInvestment:
		return investment{base}, nil
	case model.CategoryMerger:
		return merger{base: base, history: opts.Mergers}, nil
	default:
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownCategory, c)
	}
}

// ExchangeCode maps DART's corp_cls to the exchange code used in the ledger.
func ExchangeCode(corpCls string) string {
	switch corpCls {
	case "Y":
		return "KS"
	case "K":
		return "KQ"
	default:
		return ""
	}
}

type base struct {
	excluded []string
}

func (b base) checkExcluded(in Input) error {
	if in.Market == nil || in.Market.Sector == "" {
		return nil
	}
	if slices.Contains(b.excluded, in.Market.Sector) {
		return fmt.Errorf("%w: %s is classified as %s", apperrors.ErrExcludedSector, in.Filing.Issuer, in.Market.Sector)
	}
	return nil
}

func (b base) record(c model.Category, in Input) model.DisclosureRecord {
	return model.DisclosureRecord{
		Category:     c,
		FilingID:     in.Filing.ID,
		Issuer:       strings.TrimSpace(in.Filing.Issuer),
		InstrumentID: strings.TrimSpace(in.Filing.StockCode),
		FilingDate:   in.Filing.FilingDate,
		Fields:       map[string]any{},
	}
}

// scaled divides a won amount into the unit the sheet uses.
func scaled(f extract.Fields, name string, unit decimal.Decimal) decimal.NullDecimal {
	v, ok := f.Decimal(name)
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(v.Div(unit))
}

func setIf(fields map[string]any, name string, v any, ok bool) {
	if ok {
		fields[name] = v
	}
}

func setString(fields map[string]any, name, v string) {
	if v != "" {
		fields[name] = v
	}
}

func withCloses(rec model.DisclosureRecord) model.DisclosureRecord {
	rec.Deferred = make(map[string]model.DeferredValue, 3)
	for _, f := range model.CloseFields() {
		rec.Deferred[f] = model.DeferredValue{}
	}
	return rec
}

type contract struct{ base }

func (contract) Category() model.Category { return model.CategoryContract }

func (n contract) Normalize(in Input) (model.DisclosureRecord, error) {
	if err := n.checkExcluded(in); err != nil {
		return model.DisclosureRecord{}, err
	}
	rec := n.record(model.CategoryContract, in)
	rec.Amount = scaled(in.Fields, model.FieldAmount, hundredMillion)

	f := rec.Fields
	setString(f, model.FieldExchange, ExchangeCode(in.Filing.MarketSegment))
	setString(f, model.FieldContractName, in.Fields.String(model.FieldContractName))
	setString(f, model.FieldCounterparty, in.Fields.String(model.FieldCounterparty))
	ratio, ok := in.Fields.Float(model.FieldSalesRatio)
	setIf(f, model.FieldSalesRatio, ratio, ok)
	start, ok := in.Fields.Date(model.FieldStartDate)
	setIf(f, model.FieldStartDate, start, ok)
	end, ok := in.Fields.Date(model.FieldEndDate)
	setIf(f, model.FieldEndDate, end, ok)
	if in.Market != nil {
		setString(f, model.FieldSector, in.Market.Sector)
		if in.Market.MarketCap != nil {
			f[model.FieldMarketCap] = *in.Market.MarketCap
		}
	}
	return withCloses(rec), nil
}

type investment struct{ base }

func (investment) Category() model.Category { return model.CategoryInvestment }

func (n investment) Normalize(in Input) (model.DisclosureRecord, error) {
	if err := n.checkExcluded(in); err != nil {
		return model.DisclosureRecord{}, err
	}
	rec := n.record(model.CategoryInvestment, in)
	rec.Amount = scaled(in.Fields, model.FieldAmount, million)

	f := rec.Fields
	setString(f, model.FieldInvestmentType, in.Fields.String(model.FieldInvestmentType))
	if equity := scaled(in.Fields, model.FieldEquity, million); equity.Valid {
		f[model.FieldEquity] = equity.Decimal
	}
	ratio, ok := in.Fields.Float(model.FieldEquityRatio)
	setIf(f, model.FieldEquityRatio, ratio, ok)
	for _, name := range []string{model.FieldDecisionDate, model.FieldStartDate, model.FieldEndDate} {
		d, ok := in.Fields.Date(name)
		setIf(f, name, d, ok)
	}
	return withCloses(rec), nil
}

type merger struct {
	base
	history PairHistory
}

func (merger) Category() model.Category { return model.CategoryMerger }

// Normalize keys merger rows on the target's total assets in won. Mergers
// carry no close prices. An amended statement for a pair already in the
// ledger keeps the pair's first report date.
func (n merger) Normalize(in Input) (model.DisclosureRecord, error) {
	if err := n.checkExcluded(in); err != nil {
		return model.DisclosureRecord{}, err
	}
	rec := n.record(model.CategoryMerger, in)
	if v, ok := in.Fields.Decimal(model.FieldAssetsTarget); ok {
		rec.Amount = decimal.NewNullDecimal(v)
	}

	f := rec.Fields
	mergingCorp := in.Fields.String(model.FieldMergingCorp)
	targetCorp := in.Fields.String(model.FieldTargetCorp)
	setString(f, model.FieldMergingCorp, mergingCorp)
	setString(f, model.FieldTargetCorp, targetCorp)
	if first := n.firstReport(mergingCorp, targetCorp, in.Filing.FilingDate); !first.IsZero() {
		f[model.FieldFirstReportDate] = first
	}
	for _, name := range []string{
		model.FieldCapitalMerging, model.FieldCapitalTarget,
		model.FieldAssetsMerging, model.FieldAssetsTarget,
	} {
		v, ok := in.Fields.Decimal(name)
		setIf(f, name, v, ok)
	}
	setString(f, model.FieldListingMerging, in.Fields.String(model.FieldListingMerging))
	setString(f, model.FieldListingTarget, in.Fields.String(model.FieldListingTarget))
	for _, name := range []string{model.FieldSharesMerging, model.FieldSharesTarget} {
		v, ok := in.Fields.Int(name)
		setIf(f, name, v, ok)
	}

	overview := in.Fields.String(extract.OverviewMerging)
	if IsSPAC(mergingCorp) {
		overview = in.Fields.String(extract.OverviewTarget)
	}
	setString(f, model.FieldBusinessOverview, overview)
	return rec, nil
}

func (n merger) firstReport(mergingCorp, targetCorp string, filed time.Time) time.Time {
	if n.history == nil {
		return filed
	}
	seen, ok := n.history.FirstSeen(mergingCorp, targetCorp)
	if ok && (filed.IsZero() || seen.Before(filed)) {
		return seen
	}
	return filed
}

// IsSPAC reports whether a company name marks a special purpose acquisition company.
func IsSPAC(name string) bool {
	return spacPattern.MatchString(name)
}
