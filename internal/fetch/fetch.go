// Package fetch is the HTTP transport shared by the OpenDART and market clients.
// It applies a per-client rate limit and timeout, retries transient failures,
// and decodes legacy Korean encodings to UTF-8.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"time"

	retry "github.com/sethvargo/go-retry"
	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/ndewijer/Disclosure-Ledger/internal/apperrors"
	"github.com/ndewijer/Disclosure-Ledger/internal/logger"
)

// BrowserUserAgent is sent to pages that reject requests without one.
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Options configures a Client.
type Options struct {
	Source            string // used in errors and logs, e.g. "dart"
	Timeout           time.Duration
	Retries           int
	RequestsPerSecond float64 // <= 0 disables limiting
	UserAgent         string
	Backoff           time.Duration // base delay between attempts
}

// Client performs GET requests against one external source.
type Client struct {
	source     string
	httpClient *http.Client
	limiter    *rate.Limiter
	retries    int
	userAgent  string
	backoff    time.Duration
}

// Response is a successful reply.
type Response struct {
	Body        []byte
	ContentType string
}

// New creates a Client.
func New(opts Options) *Client {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	retries := max(opts.Retries, 0)
	return &Client{
		source:     opts.Source,
		httpClient: &http.Client{Timeout: opts.Timeout},
		limiter:    limiter,
		retries:    retries,
		userAgent:  opts.UserAgent,
		backoff:    backoff,
	}
}

// Source returns the name used in errors.
func (c *Client) Source() string {
	return c.source
}

// Get requests rawURL with params appended to its query. Network failures,
// timeouts, 429 and 5xx replies are retried with exponential backoff; once
// retries are exhausted a *apperrors.TransientSourceError is returned. Other
// non-2xx replies fail immediately.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s url: %w", c.source, err)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	op := "GET " + u.Path
	backoff := retry.WithMaxRetries(uint64(c.retries), retry.NewExponential(c.backoff))
	attempt := 0
	return retry.DoValue(ctx, backoff, func(ctx context.Context) (*Response, error) {
		if attempt > 0 {
			logger.WithContext(ctx).Debug("retrying request",
				"source", c.source,
				"path", u.Path,
				"attempt", attempt)
		}
		attempt++

		resp, transient, err := c.do(ctx, u.String())
		if err != nil && transient {
			return nil, retry.RetryableError(&apperrors.TransientSourceError{Source: c.source, Op: op, Err: err})
		}
		return resp, err
	})
}

func (c *Client) do(ctx context.Context, target string) (*Response, bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to build %s request: %w", c.source, err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, isTransient(err), err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read %s response: %w", c.source, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("status %d", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, false, fmt.Errorf("%s returned status %d", c.source, resp.StatusCode)
	}

	return &Response{Body: data, ContentType: resp.Header.Get("Content-Type")}, false, nil
}

func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

var xmlEncoding = regexp.MustCompile(`^\s*<\?xml[^>]*encoding=["']([A-Za-z0-9._-]+)["']`)

// DecodeText converts a page or document to UTF-8. The encoding is taken
// from an XML declaration, then from the content type and HTML meta tags;
// UTF-8 input is returned unchanged.
func DecodeText(body []byte, contentType string) (string, error) {
	if m := xmlEncoding.FindSubmatch(body); m != nil {
		if enc, name := charset.Lookup(string(m[1])); enc != nil && name != "utf-8" {
			out, err := enc.NewDecoder().Bytes(body)
			if err != nil {
				return "", fmt.Errorf("failed to decode %s text: %w", name, err)
			}
			return string(out), nil
		}
		return string(body), nil
	}

	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return "", fmt.Errorf("failed to detect text encoding: %w", err)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to decode text: %w", err)
	}
	return string(out), nil
}
