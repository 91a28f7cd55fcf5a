// Package dart reads filings from the OpenDART API: the daily filing list
// and the document bundle of a single filing.
package dart

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/ndewijer/Disclosure-Ledger/internal/apperrors"
	"github.com/ndewijer/Disclosure-Ledger/internal/fetch"
	"github.com/ndewijer/Disclosure-Ledger/internal/logger"
	"github.com/ndewijer/Disclosure-Ledger/internal/model"
)

const pageCount = 100

// OpenDART status codes.
const (
	statusOK          = "000"
	statusNoData      = "013"
	statusRateLimited = "020"
	statusMaintenance = "800"
)

// Source defines the filing operations the pipeline depends on.
// It enables testing with mock implementations.
type Source interface {
	ListFilings(ctx context.Context, q Query) ([]model.Filing, error)
	FetchDocument(ctx context.Context, filingID string, rule EntryRule) (string, error)
}

// Query selects the filings of one category over a date range.
type Query struct {
	Begin  time.Time
	End    time.Time
	Filter Filter
}

// QueryFor returns the query for one category on one day.
func QueryFor(c model.Category, date time.Time) (Query, error) {
	f, err := FilterFor(c)
	if err != nil {
		return Query{}, err
	}
	return Query{Begin: date, End: date, Filter: f}, nil
}

// Client talks to the OpenDART API.
type Client struct {
	http    *fetch.Client
	baseURL string
	apiKey  string
}

// NewClient creates a client. baseURL is the API root without a trailing slash.
func NewClient(http *fetch.Client, baseURL, apiKey string) *Client {
	return &Client{
		http:    http,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

type listResponse struct {
	Status    string     `json:"status"`
	Message   string     `json:"message"`
	PageNo    int        `json:"page_no"`
	TotalPage int        `json:"total_page"`
	List      []listItem `json:"list"`
}

type listItem struct {
	CorpCode  string `json:"corp_code"`
	CorpName  string `json:"corp_name"`
	StockCode string `json:"stock_code"`
	CorpCls   string `json:"corp_cls"`
	ReportNm  string `json:"report_nm"`
	RceptNo   string `json:"rcept_no"`
	RceptDt   string `json:"rcept_dt"`
}

// ListFilings pages through the filing list and returns the filings matching
// q.Filter in the order the API reports them.
func (c *Client) ListFilings(ctx context.Context, q Query) ([]model.Filing, error) {
	if c.apiKey == "" {
		return nil, apperrors.ErrMissingAPIKey
	}

	var filings []model.Filing
	total := 0
	for page := 1; ; page++ {
		resp, err := c.listPage(ctx, q, page)
		if err != nil {
			return nil, err
		}
		if resp.Status == statusNoData {
			break
		}
		if len(resp.List) == 0 {
			break
		}
		total += len(resp.List)

		for _, item := range resp.List {
			if !q.Filter.Match(item.ReportNm) {
				continue
			}
			f, err := item.toFiling()
			if err != nil {
				logger.WithContext(ctx).Warn("skipping filing with unreadable date",
					"filing_id", item.RceptNo,
					"rcept_dt", item.RceptDt)
				continue
			}
			filings = append(filings, f)
		}

		if page >= resp.TotalPage {
			break
		}
	}

	logger.WithContext(ctx).Debug("filing list fetched",
		"detail_type", q.Filter.DetailType,
		"listed", total,
		"matched", len(filings))

	return filings, nil
}

func (c *Client) listPage(ctx context.Context, q Query, page int) (*listResponse, error) {
	resp, err := c.http.Get(ctx, c.baseURL+"/list.json", url.Values{
		"crtfc_key":        {c.apiKey},
		"bgn_de":           {q.Begin.Format(model.DateKeyLayout)},
		"end_de":           {q.End.Format(model.DateKeyLayout)},
		"pblntf_detail_ty": {q.Filter.DetailType},
		"last_reprt_at":    {"Y"},
		"page_count":       {strconv.Itoa(pageCount)},
		"page_no":          {strconv.Itoa(page)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list filings: %w", err)
	}

	var out listResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode filing list: %w", err)
	}
	if err := statusError("list.json", out.Status, out.Message); err != nil {
		return nil, err
	}
	return &out, nil
}

func (item listItem) toFiling() (model.Filing, error) {
	date, err := time.Parse(model.DateKeyLayout, strings.TrimSpace(item.RceptDt))
	if err != nil {
		return model.Filing{}, err
	}
	return model.Filing{
		ID:            strings.TrimSpace(item.RceptNo),
		Issuer:        strings.TrimSpace(item.CorpName),
		CorpCode:      strings.TrimSpace(item.CorpCode),
		StockCode:     strings.TrimSpace(item.StockCode),
		MarketSegment: strings.TrimSpace(item.CorpCls),
		ReportName:    strings.TrimSpace(item.ReportNm),
		FilingDate:    date,
	}, nil
}

// FetchDocument downloads the document bundle of a filing and returns the
// entry selected by rule, decoded to UTF-8.
func (c *Client) FetchDocument(ctx context.Context, filingID string, rule EntryRule) (string, error) {
	if c.apiKey == "" {
		return "", apperrors.ErrMissingAPIKey
	}

	resp, err := c.http.Get(ctx, c.baseURL+"/document.xml", url.Values{
		"crtfc_key": {c.apiKey},
		"rcept_no":  {filingID},
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch document %s: %w", filingID, err)
	}

	data, err := OpenBundle(resp.Body, rule)
	if err != nil {
		return "", fmt.Errorf("filing %s: %w", filingID, err)
	}
	return fetch.DecodeText(data, "")
}

// OpenBundle returns the raw bytes of the entry selected by rule. A body that
// is not a zip archive is an API error reply.
func OpenBundle(body []byte, rule EntryRule) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		if status, msg, ok := errorReply(body); ok {
			if err := statusError("document.xml", status, msg); err != nil {
				return nil, err
			}
		}
		return nil, fmt.Errorf("%w: not a zip archive", apperrors.ErrDocumentNotFound)
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if rule == FirstDocumentEntry && !isDocument(f.Name) {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open bundle entry %s: %w", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read bundle entry %s: %w", f.Name, err)
		}
		return data, nil
	}

	return nil, apperrors.ErrDocumentNotFound
}

func isDocument(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".xml", ".html":
		return true
	}
	return false
}

// apiReply is the status envelope OpenDART wraps error bodies in.
type apiReply struct {
	XMLName xml.Name `json:"-" xml:"result"`
	Status  string   `json:"status" xml:"status"`
	Message string   `json:"message" xml:"message"`
}

// errorReply reads the status of an XML or JSON error body.
func errorReply(body []byte) (status, message string, ok bool) {
	var reply apiReply
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if json.Unmarshal(trimmed, &reply) != nil {
			return "", "", false
		}
	} else {
		dec := xml.NewDecoder(bytes.NewReader(trimmed))
		dec.CharsetReader = charset.NewReaderLabel
		if dec.Decode(&reply) != nil {
			return "", "", false
		}
	}
	status = strings.TrimSpace(reply.Status)
	return status, strings.TrimSpace(reply.Message), status != ""
}

func statusError(op, status, message string) error {
	switch status {
	case statusOK, statusNoData:
		return nil
	case statusRateLimited, statusMaintenance:
		return &apperrors.TransientSourceError{
			Source: "dart",
			Op:     op,
			Err:    fmt.Errorf("status %s: %s", status, message),
		}
	default:
		return fmt.Errorf("dart %s returned status %s: %s", op, status, message)
	}
}
