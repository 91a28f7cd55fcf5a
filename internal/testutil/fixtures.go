package testutil

import (
	"fmt"
	"time"

	"github.com/ndewijer/Disclosure-Ledger/internal/model"
)

// MakeFiling creates a KOSPI filing list entry for a contract report.
//
// Example usage:
//
//	f := testutil.MakeFiling("테스트전자", "005930", date)
func MakeFiling(issuer, stockCode string, date time.Time) model.Filing {
	return model.Filing{
		ID:            date.Format(model.DateKeyLayout) + randomDigits(6),
		Issuer:        issuer,
		CorpCode:      randomDigits(8),
		StockCode:     stockCode,
		MarketSegment: "Y",
		ReportName:    "단일판매ㆍ공급계약체결",
		FilingDate:    date,
	}
}

// ContractDocument renders a single sales/supply contract filing body with
// the given total amount in won, e.g. "12,345,678,900".
func ContractDocument(amountWon, counterparty string) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<DOCUMENT><BODY>
<TABLE><TR><TD>회사명</TD><TD>예시</TD></TR></TABLE>
<TABLE>
<TR><TD>1. 판매ㆍ공급계약 내용</TD><TD COLSPAN="2">2차전지 장비 공급</TD></TR>
<TR><TD ROWSPAN="3">2. 계약내역</TD><TD>계약금액 총액(원)</TD><TD>%s</TD></TR>
<TR><TD>최근 매출액(원)</TD><TD>98,765,432,100</TD></TR>
<TR><TD>매출액 대비(%%)</TD><TD>12.5</TD></TR>
<TR><TD>3. 계약상대방</TD><TD COLSPAN="2">%s</TD></TR>
<TR><TD ROWSPAN="2">5. 계약기간</TD><TD>시작일</TD><TD>2024-01-10</TD></TR>
<TR><TD>종료일</TD><TD>2025-06-30</TD></TR>
</TABLE>
</BODY></DOCUMENT>`, amountWon, counterparty)
}
