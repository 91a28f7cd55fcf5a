package dart

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/ndewijer/Disclosure-Ledger/internal/apperrors"
	"github.com/ndewijer/Disclosure-Ledger/internal/fetch"
	"github.com/ndewijer/Disclosure-Ledger/internal/model"
)

var jan10 = time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

func newTestClient(baseURL, apiKey string) *Client {
	return NewClient(fetch.New(fetch.Options{
		Source:  "dart",
		Timeout: 2 * time.Second,
		Backoff: time.Millisecond,
	}), baseURL, apiKey)
}

func item(rceptNo, corp, report string) listItem {
	return listItem{
		CorpCode:  "00126380",
		CorpName:  corp,
		StockCode: "005930",
		CorpCls:   "Y",
		ReportNm:  report,
		RceptNo:   rceptNo,
		RceptDt:   "20240110",
	}
}

// listServer serves list.json from pages, indexed from 1.
func listServer(t *testing.T, pages [][]listItem) (*httptest.Server, *[]string) {
	t.Helper()
	var requested []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/list.json" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("crtfc_key") != "test-key" || q.Get("bgn_de") != "20240110" || q.Get("end_de") != "20240110" {
			t.Errorf("unexpected query %v", q)
		}
		if q.Get("page_count") != "100" || q.Get("last_reprt_at") != "Y" {
			t.Errorf("unexpected paging params %v", q)
		}
		requested = append(requested, q.Get("page_no"))

		page, _ := strconv.Atoi(q.Get("page_no"))
		resp := listResponse{Status: statusOK, PageNo: page, TotalPage: len(pages)}
		if len(pages) == 0 {
			resp = listResponse{Status: statusNoData, Message: "조회된 데이타가 없습니다."}
		} else if page >= 1 && page <= len(pages) {
			resp.List = pages[page-1]
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &requested
}

// TestListFilings_PagesAndFilters tests the page-then-flatten contract.
//
// WHY: Sequence numbers follow the order filings are fed to reconciliation,
// so the flattened list must keep the API's order across pages.
func TestListFilings_PagesAndFilters(t *testing.T) {
	// Setup
	srv, requested := listServer(t, [][]listItem{
		{
			item("20240110000001", "가전자", "단일판매ㆍ공급계약체결"),
			item("20240110000002", "나전자", "[기재정정]단일판매ㆍ공급계약체결"),
			item("20240110000003", "다전자", "신규시설투자등"),
		},
		{
			item("20240110000004", "라전자", "단일판매ㆍ공급계약체결(자율공시)"),
			item("20240110000005", "마전자", "단일판매ㆍ공급계약해지"),
		},
	})
	client := newTestClient(srv.URL, "test-key")
	q, err := QueryFor(model.CategoryContract, jan10)
	if err != nil {
		t.Fatalf("QueryFor() returned unexpected error: %v", err)
	}

	// Execute
	filings, err := client.ListFilings(context.Background(), q)

	// Assert
	if err != nil {
		t.Fatalf("ListFilings() returned unexpected error: %v", err)
	}
	if len(*requested) != 2 {
		t.Errorf("Expected 2 page requests, got %v", *requested)
	}
	if len(filings) != 2 {
		t.Fatalf("Expected 2 filings, got %d", len(filings))
	}
	if filings[0].ID != "20240110000001" || filings[1].ID != "20240110000004" {
		t.Errorf("Unexpected order: %s, %s", filings[0].ID, filings[1].ID)
	}
	f := filings[0]
	if f.Issuer != "가전자" || f.StockCode != "005930" || f.MarketSegment != "Y" || !f.FilingDate.Equal(jan10) {
		t.Errorf("Unexpected filing: %+v", f)
	}
}

// TestListFilings_NoData tests that status 013 is an empty day, not an error.
func TestListFilings_NoData(t *testing.T) {
	// Setup
	srv, _ := listServer(t, nil)
	client := newTestClient(srv.URL, "test-key")
	q, _ := QueryFor(model.CategoryInvestment, jan10)

	// Execute
	filings, err := client.ListFilings(context.Background(), q)

	// Assert
	if err != nil {
		t.Fatalf("ListFilings() returned unexpected error: %v", err)
	}
	if len(filings) != 0 {
		t.Errorf("Expected no filings, got %d", len(filings))
	}
}

func TestListFilings_StatusErrors(t *testing.T) {
	tests := []struct {
		name          string
		status        string
		wantTransient bool
	}{
		{name: "invalid key", status: "010", wantTransient: false},
		{name: "rate limited", status: "020", wantTransient: true},
		{name: "maintenance", status: "800", wantTransient: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(listResponse{Status: tt.status, Message: "error"})
			}))
			defer srv.Close()
			q, _ := QueryFor(model.CategoryContract, jan10)

			_, err := newTestClient(srv.URL, "test-key").ListFilings(context.Background(), q)

			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if got := errors.Is(err, apperrors.ErrTransientSource); got != tt.wantTransient {
				t.Errorf("transient = %v, want %v (%v)", got, tt.wantTransient, err)
			}
		})
	}
}

func TestClient_MissingAPIKey(t *testing.T) {
	client := newTestClient("http://127.0.0.1:0", "")
	q, _ := QueryFor(model.CategoryContract, jan10)

	if _, err := client.ListFilings(context.Background(), q); !errors.Is(err, apperrors.ErrMissingAPIKey) {
		t.Errorf("ListFilings() error = %v, want ErrMissingAPIKey", err)
	}
	if _, err := client.FetchDocument(context.Background(), "20240110000001", FirstDocumentEntry); !errors.Is(err, apperrors.ErrMissingAPIKey) {
		t.Errorf("FetchDocument() error = %v, want ErrMissingAPIKey", err)
	}
}

type entry struct {
	name string
	body string
}

func bundle(t *testing.T, entries ...entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatalf("failed to create zip entry: %v", err)
		}
		if _, err := w.Write([]byte(e.body)); err != nil {
			t.Fatalf("failed to write zip entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("failed to close zip: %v", err)
	}
	return buf.Bytes()
}

func TestOpenBundle(t *testing.T) {
	tests := []struct {
		name    string
		body    func(t *testing.T) []byte
		rule    EntryRule
		want    string
		wantErr error
	}{
		{
			name: "first document entry skips attachments",
			body: func(t *testing.T) []byte {
				return bundle(t, entry{"image.jpg", "jpeg"}, entry{"20240110000001.xml", "<DOCUMENT>본문</DOCUMENT>"}, entry{"20240110000001_00760.xml", "첨부"})
			},
			rule: FirstDocumentEntry,
			want: "<DOCUMENT>본문</DOCUMENT>",
		},
		{
			name: "first entry whatever its name",
			body: func(t *testing.T) []byte {
				return bundle(t, entry{"20240110000001", "본문"}, entry{"20240110000001_00760.xml", "첨부"})
			},
			rule: FirstEntry,
			want: "본문",
		},
		{
			name: "html extension is case insensitive",
			body: func(t *testing.T) []byte {
				return bundle(t, entry{"DOC.HTML", "<html></html>"})
			},
			rule: FirstDocumentEntry,
			want: "<html></html>",
		},
		{
			name: "no document entry",
			body: func(t *testing.T) []byte {
				return bundle(t, entry{"image.jpg", "jpeg"})
			},
			rule:    FirstDocumentEntry,
			wantErr: apperrors.ErrDocumentNotFound,
		},
		{
			name: "no data reply",
			body: func(t *testing.T) []byte {
				return []byte(`<?xml version="1.0" encoding="UTF-8"?><result><status>013</status><message>조회된 데이타가 없습니다.</message></result>`)
			},
			rule:    FirstDocumentEntry,
			wantErr: apperrors.ErrDocumentNotFound,
		},
		{
			name: "maintenance xml reply",
			body: func(t *testing.T) []byte {
				return []byte(`<?xml version="1.0" encoding="UTF-8"?>
<result>
  <status>800</status>
  <message>시스템 점검으로 인한 서비스가 중지 중입니다.</message>
</result>`)
			},
			rule:    FirstDocumentEntry,
			wantErr: apperrors.ErrTransientSource,
		},
		{
			name: "rate limited reply",
			body: func(t *testing.T) []byte {
				return []byte(`{"status":"020","message":"요청 제한을 초과하였습니다."}`)
			},
			rule:    FirstDocumentEntry,
			wantErr: apperrors.ErrTransientSource,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := OpenBundle(tt.body(t), tt.rule)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("OpenBundle() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("OpenBundle() returned unexpected error: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("OpenBundle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorReply(t *testing.T) {
	enc, _ := charset.Lookup("euc-kr")
	eucKR, err := enc.NewEncoder().String(`<?xml version="1.0" encoding="euc-kr"?><result><status>020</status><message>요청 제한을 초과하였습니다.</message></result>`)
	if err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}

	tests := []struct {
		name        string
		body        string
		wantStatus  string
		wantMessage string
		wantOK      bool
	}{
		{
			name:        "xml",
			body:        `<?xml version="1.0" encoding="UTF-8"?><result><status> 013 </status><message>조회된 데이타가 없습니다.</message></result>`,
			wantStatus:  "013",
			wantMessage: "조회된 데이타가 없습니다.",
			wantOK:      true,
		},
		{
			name:        "xml in legacy encoding",
			body:        eucKR,
			wantStatus:  "020",
			wantMessage: "요청 제한을 초과하였습니다.",
			wantOK:      true,
		},
		{
			name:        "json",
			body:        ` {"status":"100","message":"필드의 부적절한 값입니다."}`,
			wantStatus:  "100",
			wantMessage: "필드의 부적절한 값입니다.",
			wantOK:      true,
		},
		{name: "status inside other markup", body: `<html><body><status>000</status></body></html>`},
		{name: "xml without status", body: `<result><message>x</message></result>`},
		{name: "garbage", body: "PK\x03\x04 not quite a zip"},
		{name: "empty", body: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, message, ok := errorReply([]byte(tt.body))
			if ok != tt.wantOK || status != tt.wantStatus || message != tt.wantMessage {
				t.Errorf("errorReply() = %q, %q, %v; want %q, %q, %v", status, message, ok, tt.wantStatus, tt.wantMessage, tt.wantOK)
			}
		})
	}
}

// TestFetchDocument tests downloading and decoding a filing bundle.
func TestFetchDocument(t *testing.T) {
	// Setup
	body := bundle(t, entry{"20240110000001.xml", `<?xml version="1.0" encoding="utf-8"?><DOCUMENT><TITLE>단일판매ㆍ공급계약체결</TITLE></DOCUMENT>`})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/document.xml" || r.URL.Query().Get("rcept_no") != "20240110000001" {
			t.Errorf("unexpected request %s", r.URL)
		}
		w.Header().Set("Content-Type", "application/x-msdownload")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	// Execute
	doc, err := newTestClient(srv.URL+"/", "test-key").FetchDocument(context.Background(), "20240110000001", FirstDocumentEntry)

	// Assert
	if err != nil {
		t.Fatalf("FetchDocument() returned unexpected error: %v", err)
	}
	if !bytes.Contains([]byte(doc), []byte("단일판매ㆍ공급계약체결")) {
		t.Errorf("Unexpected document %q", doc)
	}
}

func TestFilter_Match(t *testing.T) {
	tests := []struct {
		category model.Category
		report   string
		want     bool
	}{
		{model.CategoryContract, "단일판매ㆍ공급계약체결", true},
		{model.CategoryContract, "[기재정정]단일판매ㆍ공급계약체결", false},
		{model.CategoryContract, "단일판매ㆍ공급계약해지", false},
		{model.CategoryInvestment, "신규시설투자등", true},
		{model.CategoryInvestment, "신규시설투자등(자회사의 주요경영사항)", false},
		{model.CategoryInvestment, "[철회]신규시설투자등", false},
		{model.CategoryMerger, "증권신고서(합병)", true},
		{model.CategoryMerger, "[기재정정]증권신고서(합병)", true},
		{model.CategoryMerger, "증권신고서(지분증권)", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.category)+"/"+tt.report, func(t *testing.T) {
			f, err := FilterFor(tt.category)
			if err != nil {
				t.Fatalf("FilterFor() returned unexpected error: %v", err)
			}
			if got := f.Match(tt.report); got != tt.want {
				t.Errorf("Match(%q) = %v, want %v", tt.report, got, tt.want)
			}
		})
	}
}

func TestFilterFor_Unknown(t *testing.T) {
	if _, err := FilterFor(model.Category("dividend")); !errors.Is(err, apperrors.ErrUnknownCategory) {
		t.Errorf("FilterFor() error = %v, want ErrUnknownCategory", err)
	}
}
