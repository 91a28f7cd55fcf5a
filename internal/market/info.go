package market

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/patrickmn/go-cache"

	"github.com/ndewijer/Disclosure-Ledger/internal/fetch"
	"github.com/ndewijer/Disclosure-Ledger/internal/model"
)

// InfoSource returns the sector and market capitalisation of an instrument.
type InfoSource interface {
	Lookup(ctx context.Context, instrumentID string) (model.MarketInfo, error)
}

// InfoClient reads the company overview page. Results are cached per
// instrument since one issuer often files several times a day.
type InfoClient struct {
	http    *fetch.Client
	baseURL string
	cache   *cache.Cache
}

// NewInfoClient creates a client for the overview page at baseURL.
func NewInfoClient(http *fetch.Client, baseURL string, ttl time.Duration) *InfoClient {
	return &InfoClient{
		http:    http,
		baseURL: baseURL,
		cache:   cache.New(ttl, 2*ttl),
	}
}

// Lookup returns the market info of instrumentID. An empty sector and nil
// market cap mean the page did not carry them.
func (c *InfoClient) Lookup(ctx context.Context, instrumentID string) (model.MarketInfo, error) {
	if v, ok := c.cache.Get(instrumentID); ok {
		return v.(model.MarketInfo), nil
	}

	resp, err := c.http.Get(ctx, c.baseURL, url.Values{
		"cmp_cd": {instrumentID},
		"cn":     {""},
	})
	if err != nil {
		return model.MarketInfo{}, fmt.Errorf("failed to fetch market info for %s: %w", instrumentID, err)
	}

	text, err := fetch.DecodeText(resp.Body, resp.ContentType)
	if err != nil {
		return model.MarketInfo{}, err
	}
	info, err := ParseInfoPage(text)
	if err != nil {
		return model.MarketInfo{}, err
	}

	c.cache.SetDefault(instrumentID, info)
	return info, nil
}

// ParseInfoPage reads the WICS sector and the market cap in 억원.
func ParseInfoPage(markup string) (model.MarketInfo, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return model.MarketInfo{}, fmt.Errorf("failed to parse market info page: %w", err)
	}

	var info model.MarketInfo
	doc.Find("td.td0101 dl dt.line-left").EachWithBreak(func(_ int, dt *goquery.Selection) bool {
		text := strings.TrimSpace(dt.Text())
		if !strings.HasPrefix(text, "WICS") {
			return true
		}
		if _, sector, ok := strings.Cut(text, ":"); ok {
			info.Sector = strings.TrimSpace(sector)
		}
		return false
	})

	doc.Find("table#cTB11 tr").EachWithBreak(func(_ int, tr *goquery.Selection) bool {
		if !strings.Contains(tr.Find("th.txt").Text(), "시가총액") {
			return true
		}
		raw := strings.TrimSpace(tr.Find("td.num").First().Text())
		raw = strings.NewReplacer("억원", "", ",", "").Replace(raw)
		if v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil {
			info.MarketCap = &v
		}
		return false
	})

	return info, nil
}
