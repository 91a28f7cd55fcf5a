// Package market reads issuer data that is not part of a filing: the sector
// and market capitalisation used by the exclusion filter, and the daily
// close history used to complete deferred ledger fields.
package market

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ndewijer/Disclosure-Ledger/internal/apperrors"
	"github.com/ndewijer/Disclosure-Ledger/internal/fetch"
	"github.com/ndewijer/Disclosure-Ledger/internal/logger"
)

const priceDateLayout = "2006.01.02"

// PriceSource returns the daily close history of an instrument.
type PriceSource interface {
	// History returns closes newest first, reaching back far enough to place
	// date when the source has data that old.
	History(ctx context.Context, instrumentID string, date time.Time) (Series, error)
}

// PriceClient reads the paged daily price table.
type PriceClient struct {
	http     *fetch.Client
	baseURL  string
	maxPages int
}

// NewPriceClient creates a client for the daily price pages at baseURL.
// maxPages bounds how far back History pages.
func NewPriceClient(http *fetch.Client, baseURL string, maxPages int) *PriceClient {
	return &PriceClient{
		http:     http,
		baseURL:  baseURL,
		maxPages: max(maxPages, 1),
	}
}

// Page fetches one page of the daily price table. Page 1 is the most recent.
func (c *PriceClient) Page(ctx context.Context, instrumentID string, page int) (Series, error) {
	resp, err := c.http.Get(ctx, c.baseURL, url.Values{
		"code": {instrumentID},
		"page": {strconv.Itoa(page)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price page %d for %s: %w", page, instrumentID, err)
	}

	text, err := fetch.DecodeText(resp.Body, resp.ContentType)
	if err != nil {
		return nil, err
	}
	return ParsePricePage(text)
}

// History pages backwards until the oldest close is older than date or the
// source runs out of rows. When date is the oldest day on the last allowed
// page one more page is read for its previous close. A window cut short by
// maxPages any earlier fails with apperrors.ErrPriceWindowExceeded, since
// the missing closes exist but were not read.
func (c *PriceClient) History(ctx context.Context, instrumentID string, date time.Time) (Series, error) {
	var series Series
	target := dayOf(date)

	for page := 1; ; page++ {
		rows, err := c.Page(ctx, instrumentID, page)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			break
		}
		series = merge(series, rows)

		oldest, _ := series.Oldest()
		oldest = dayOf(oldest)
		if oldest.Before(target) {
			break
		}
		if page < c.maxPages || (page == c.maxPages && oldest.Equal(target)) {
			continue
		}
		return nil, fmt.Errorf("%w: %s back to %s needs more than %d pages",
			apperrors.ErrPriceWindowExceeded, instrumentID, target.Format(time.DateOnly), c.maxPages)
	}

	logger.WithContext(ctx).Debug("price history fetched",
		"instrument", instrumentID,
		"date", date.Format(time.DateOnly),
		"days", len(series))

	return series, nil
}

// ParsePricePage reads the date and close columns of the daily price table.
// Spacer rows and rows with unparseable cells are skipped.
func ParsePricePage(markup string) (Series, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse price page: %w", err)
	}

	var out Series
	doc.Find("table.type2 tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.ChildrenFiltered("td")
		if cells.Length() != 7 {
			return
		}
		dateText := strings.TrimSpace(cells.Eq(0).Text())
		closeText := strings.ReplaceAll(strings.TrimSpace(cells.Eq(1).Text()), ",", "")
		if dateText == "" || closeText == "" {
			return
		}
		d, err := time.Parse(priceDateLayout, dateText)
		if err != nil {
			return
		}
		v, err := strconv.ParseInt(closeText, 10, 64)
		if err != nil {
			return
		}
		out = append(out, DailyClose{Date: d, Close: v})
	})

	sortNewestFirst(out)
	return out, nil
}

// merge adds rows to series, keeping one entry per day.
func merge(series, rows Series) Series {
	seen := make(map[time.Time]bool, len(series))
	for _, d := range series {
		seen[dayOf(d.Date)] = true
	}
	for _, d := range rows {
		if !seen[dayOf(d.Date)] {
			seen[dayOf(d.Date)] = true
			series = append(series, d)
		}
	}
	sortNewestFirst(series)
	return series
}

func sortNewestFirst(s Series) {
	slices.SortStableFunc(s, func(a, b DailyClose) int {
		return b.Date.Compare(a.Date)
	})
}
