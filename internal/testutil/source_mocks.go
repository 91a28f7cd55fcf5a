package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/ndewijer/Disclosure-Ledger/internal/dart"
	"github.com/ndewijer/Disclosure-Ledger/internal/market"
	"github.com/ndewijer/Disclosure-Ledger/internal/model"
)

// MockFilingSource is a mock implementation of dart.Source for testing.
// It returns predefined filings and documents instead of calling OpenDART.
// Safe for concurrent use.
type MockFilingSource struct {
	mu sync.Mutex
	// Filings holds the list returned per category
	Filings map[model.Category][]model.Filing
	// Documents holds the document markup per filing ID
	Documents map[string]string
	// DocumentErrors holds per-filing fetch errors
	DocumentErrors map[string]error
	// MockError is returned from ListFilings when set
	MockError error
	// QueryCount tracks how many times a method was called
	QueryCount int
}

// NewMockFilingSource creates an empty mock filing source.
func NewMockFilingSource() *MockFilingSource {
	return &MockFilingSource{
		Filings:        make(map[model.Category][]model.Filing),
		Documents:      make(map[string]string),
		DocumentErrors: make(map[string]error),
	}
}

// ListFilings returns the configured filings of the query's category.
func (m *MockFilingSource) ListFilings(_ context.Context, q dart.Query) ([]model.Filing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QueryCount++
	if m.MockError != nil {
		return nil, m.MockError
	}
	return append([]model.Filing(nil), m.Filings[q.Filter.Category]...), nil
}

// FetchDocument returns the configured document of a filing.
func (m *MockFilingSource) FetchDocument(_ context.Context, filingID string, _ dart.EntryRule) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QueryCount++
	if err := m.DocumentErrors[filingID]; err != nil {
		return "", err
	}
	return m.Documents[filingID], nil
}

// WithFiling adds a filing and its document.
func (m *MockFilingSource) WithFiling(c model.Category, f model.Filing, document string) *MockFilingSource {
	m.Filings[c] = append(m.Filings[c], f)
	m.Documents[f.ID] = document
	return m
}

// WithDocumentError makes fetching a filing's document fail.
func (m *MockFilingSource) WithDocumentError(filingID string, err error) *MockFilingSource {
	m.DocumentErrors[filingID] = err
	return m
}

// WithError configures ListFilings to return the specified error.
func (m *MockFilingSource) WithError(err error) *MockFilingSource {
	m.MockError = err
	return m
}

// MockInfoSource is a mock implementation of market.InfoSource for testing.
type MockInfoSource struct {
	mu sync.Mutex
	// Info holds the market info per instrument; unknown instruments get a zero value
	Info map[string]model.MarketInfo
	// MockError is returned from every lookup when set
	MockError error
	// QueryCount tracks how many times Lookup was called
	QueryCount int
}

// NewMockInfoSource creates a mock returning zero market info.
func NewMockInfoSource() *MockInfoSource {
	return &MockInfoSource{Info: make(map[string]model.MarketInfo)}
}

// Lookup returns the configured info of an instrument.
func (m *MockInfoSource) Lookup(_ context.Context, instrumentID string) (model.MarketInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QueryCount++
	if m.MockError != nil {
		return model.MarketInfo{}, m.MockError
	}
	return m.Info[instrumentID], nil
}

// WithInfo sets the info returned for an instrument.
func (m *MockInfoSource) WithInfo(instrumentID, sector string, marketCap int64) *MockInfoSource {
	m.Info[instrumentID] = model.MarketInfo{Sector: sector, MarketCap: &marketCap}
	return m
}

// WithError configures the mock to return the specified error.
func (m *MockInfoSource) WithError(err error) *MockInfoSource {
	m.MockError = err
	return m
}

// MockPriceSource is a mock implementation of market.PriceSource for testing.
type MockPriceSource struct {
	mu sync.Mutex
	// Series holds the close history per instrument
	Series map[string]market.Series
	// Errors holds per-instrument lookup errors
	Errors map[string]error
	// QueryCount tracks how many times History was called
	QueryCount int
}

// NewMockPriceSource creates a mock with no price history.
func NewMockPriceSource() *MockPriceSource {
	return &MockPriceSource{
		Series: make(map[string]market.Series),
		Errors: make(map[string]error),
	}
}

// History returns the configured series of an instrument.
func (m *MockPriceSource) History(_ context.Context, instrumentID string, _ time.Time) (market.Series, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QueryCount++
	if err := m.Errors[instrumentID]; err != nil {
		return nil, err
	}
	return m.Series[instrumentID], nil
}

// WithCloses sets consecutive daily closes ending at newest, given oldest
// first. Weekends are not skipped.
func (m *MockPriceSource) WithCloses(instrumentID string, newest time.Time, closes ...int64) *MockPriceSource {
	series := make(market.Series, 0, len(closes))
	for i := len(closes) - 1; i >= 0; i-- {
		offset := len(closes) - 1 - i
		series = append(series, market.DailyClose{Date: newest.AddDate(0, 0, -offset), Close: closes[i]})
	}
	m.Series[instrumentID] = series
	return m
}

// WithError makes lookups of an instrument fail.
func (m *MockPriceSource) WithError(instrumentID string, err error) *MockPriceSource {
	m.Errors[instrumentID] = err
	return m
}

// Queries returns the call count under the lock.
func (m *MockPriceSource) Queries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.QueryCount
}
