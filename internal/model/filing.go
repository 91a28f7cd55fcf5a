package model

import "time"

// Filing is one entry of the OpenDART filing list.
type Filing struct {
	ID            string    `json:"rceptNo"`       // receipt number, unique per filing
	Issuer        string    `json:"corpName"`      // company name as filed
	CorpCode      string    `json:"corpCode"`      // DART corporation code
	StockCode     string    `json:"stockCode"`     // KRX instrument identifier, empty for unlisted issuers
	MarketSegment string    `json:"corpCls"`       // Y (KOSPI), K (KOSDAQ), N (KONEX), E (other)
	ReportName    string    `json:"reportNm"`
	FilingDate    time.Time `json:"rceptDt"`
}

// MarketInfo is the cross-referenced market data for an instrument.
type MarketInfo struct {
	Sector    string `json:"sector"`              // WICS sector classification
	MarketCap *int64 `json:"marketCap,omitempty"` // market capitalisation in 억원
}
