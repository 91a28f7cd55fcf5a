// Package ledger persists disclosure records in the shared workbook, one
// sheet per category.
package ledger

import (
	"fmt"

	"github.com/ndewijer/Disclosure-Ledger/internal/apperrors"
	"github.com/ndewijer/Disclosure-Ledger/internal/model"
)

// Role says how a column is filled from a record.
type Role int

const (
	RoleField Role = iota
	RoleIssuer
	RoleInstrument
	RoleFilingDate
	RoleAmount
	RoleSequence
	RoleDeferred
)

// Format controls the cell style of appended values.
type Format int

const (
	FormatCentered Format = iota
	FormatPlain           // left aligned text
	FormatWrap            // wrapped long text
	FormatDate
	FormatInt
	FormatFloat
)

// Column is one header cell of a sheet.
type Column struct {
	Header string
	Role   Role
	Field  string // RoleField and RoleDeferred only
	Format Format
}

// Schema describes one category's sheet.
type Schema struct {
	Category model.Category
	Sheet    string
	Columns  []Column
}

// SequenceHeader is the per-issuer counter column shared by every sheet.
const SequenceHeader = "Cnt"

// ResolvedEmpty marks a deferred cell whose lookup found no data.
const ResolvedEmpty = "-"

var schemas = map[model.Category]Schema{
	model.CategoryContract: {
		Category: model.CategoryContract,
		Sheet:    "main",
		Columns: []Column{
			{Header: "종목코드", Role: RoleInstrument},
			{Header: "공시회사", Role: RoleIssuer},
			{Header: "날짜 (D)", Role: RoleFilingDate, Format: FormatDate},
			{Header: "거래소", Field: model.FieldExchange},
			{Header: "내용", Field: model.FieldContractName, Format: FormatPlain},
			{Header: "계약 금액(억)", Role: RoleAmount, Format: FormatFloat},
			{Header: "매출액 대비(%) (A)", Field: model.FieldSalesRatio, Format: FormatFloat},
			{Header: "계약상대", Field: model.FieldCounterparty, Format: FormatPlain},
			{Header: "시작일 (s)", Field: model.FieldStartDate, Format: FormatDate},
			{Header: "종료일 (e)", Field: model.FieldEndDate, Format: FormatDate},
			{Header: "업종 분류", Field: model.FieldSector},
			{Header: "시가총액(억)", Field: model.FieldMarketCap, Format: FormatInt},
			{Header: "전일종가(원)", Role: RoleDeferred, Field: model.FieldPrevClose, Format: FormatInt},
			{Header: "당일종가(원)", Role: RoleDeferred, Field: model.FieldSameDayClose, Format: FormatInt},
			{Header: "익일종가(원)", Role: RoleDeferred, Field: model.FieldNextClose, Format: FormatInt},
			{Header: SequenceHeader, Role: RoleSequence, Format: FormatInt},
		},
	},
	model.CategoryInvestment: {
		Category: model.CategoryInvestment,
		Sheet:    "신규투자",
		Columns: []Column{
			{Header: "공시회사", Role: RoleIssuer},
			{Header: "공시일", Role: RoleFilingDate, Format: FormatDate},
			{Header: "종목코드", Role: RoleInstrument},
			{Header: "투자구분", Field: model.FieldInvestmentType},
			{Header: "투자금액(백만원)", Role: RoleAmount, Format: FormatInt},
			{Header: "자기자본(백만원)", Field: model.FieldEquity, Format: FormatInt},
			{Header: "자기자본대비(%)", Field: model.FieldEquityRatio, Format: FormatFloat},
			{Header: "결정일", Field: model.FieldDecisionDate, Format: FormatDate},
			{Header: "시작일", Field: model.FieldStartDate, Format: FormatDate},
			{Header: "종료일", Field: model.FieldEndDate, Format: FormatDate},
			{Header: "전일종가", Role: RoleDeferred, Field: model.FieldPrevClose, Format: FormatInt},
			{Header: "당일종가", Role: RoleDeferred, Field: model.FieldSameDayClose, Format: FormatInt},
			{Header: "익일종가", Role: RoleDeferred, Field: model.FieldNextClose, Format: FormatInt},
			{Header: SequenceHeader, Role: RoleSequence, Format: FormatInt},
		},
	},
	model.CategoryMerger: {
		Category: model.CategoryMerger,
		Sheet:    "합병",
		Columns: []Column{
			{Header: "공시회사", Role: RoleIssuer},
			{Header: "합병법인", Field: model.FieldMergingCorp},
			{Header: "피합병법인", Field: model.FieldTargetCorp},
			{Header: "최종보고일", Role: RoleFilingDate, Format: FormatDate},
			{Header: "최초보고일", Field: model.FieldFirstReportDate, Format: FormatDate},
			{Header: "납입자본금(합병)", Field: model.FieldCapitalMerging, Format: FormatInt},
			{Header: "납입자본금(피합병)", Field: model.FieldCapitalTarget, Format: FormatInt},
			{Header: "자산총액(합병)", Field: model.FieldAssetsMerging, Format: FormatInt},
			{Header: "자산총액(피합병)", Role: RoleAmount, Format: FormatInt},
			{Header: "합병법인 상장", Field: model.FieldListingMerging},
			{Header: "피합병법인 상장", Field: model.FieldListingTarget},
			{Header: "발행주식수(합병)", Field: model.FieldSharesMerging, Format: FormatInt},
			{Header: "발행주식수(피합병)", Field: model.FieldSharesTarget, Format: FormatInt},
			{Header: "사업개요", Field: model.FieldBusinessOverview, Format: FormatWrap},
			{Header: SequenceHeader, Role: RoleSequence, Format: FormatInt},
		},
	},
}

// SchemaFor returns the sheet schema of c.
func SchemaFor(c model.Category) (Schema, error) {
	s, ok := schemas[c]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %q", apperrors.ErrUnknownCategory, c)
	}
	return s, nil
}

// Headers returns the header row written to a new sheet.
func (s Schema) Headers() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Header
	}
	return out
}

// Required lists the key columns a persisted sheet must already carry.
// Any other schema column is added to the header when missing.
func (s Schema) Required() []string {
	var out []string
	for _, c := range s.Columns {
		switch c.Role {
		case RoleIssuer, RoleFilingDate, RoleAmount:
			out = append(out, c.Header)
		}
	}
	return out
}

// DeferredFields lists the deferred fields in column order.
func (s Schema) DeferredFields() []string {
	var out []string
	for _, c := range s.Columns {
		if c.Role == RoleDeferred {
			out = append(out, c.Field)
		}
	}
	return out
}

func (s Schema) column(role Role) (Column, bool) {
	for _, c := range s.Columns {
		if c.Role == role {
			return c, true
		}
	}
	return Column{}, false
}

func (s Schema) deferredColumn(field string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Role == RoleDeferred && c.Field == field {
			return c, true
		}
	}
	return Column{}, false
}

func (s Schema) fieldColumn(field string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Role == RoleField && c.Field == field {
			return c, true
		}
	}
	return Column{}, false
}
