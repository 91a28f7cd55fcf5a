package service

import (
	"fmt"
	"os"

	"github.com/ndewijer/Disclosure-Ledger/internal/config"
	"github.com/ndewijer/Disclosure-Ledger/internal/dart"
	"github.com/ndewijer/Disclosure-Ledger/internal/extract"
	"github.com/ndewijer/Disclosure-Ledger/internal/fetch"
	"github.com/ndewijer/Disclosure-Ledger/internal/market"
)

// NewPipelineServiceFromConfig builds the pipeline against the live OpenDART,
// WiseReport and Naver endpoints. Each source gets its own rate limit.
func NewPipelineServiceFromConfig(cfg *config.Config) (*PipelineService, error) {
	labels := extract.DefaultLabels()
	if cfg.Pipeline.LabelsPath != "" {
		data, err := os.ReadFile(cfg.Pipeline.LabelsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read label table: %w", err)
		}
		if labels, err = extract.ParseLabelTable(data); err != nil {
			return nil, err
		}
	}

	httpClient := func(source, userAgent string) *fetch.Client {
		return fetch.New(fetch.Options{
			Source:            source,
			Timeout:           cfg.Pipeline.HTTPTimeout,
			Retries:           cfg.Pipeline.HTTPRetries,
			RequestsPerSecond: cfg.Pipeline.RequestsPerSecond,
			UserAgent:         userAgent,
		})
	}

	filings := dart.NewClient(httpClient("dart", ""), cfg.Dart.BaseURL, cfg.Dart.APIKey)
	info := market.NewInfoClient(httpClient("wisereport", fetch.BrowserUserAgent), cfg.Market.InfoURL, cfg.Market.CacheTTL)
	prices := market.NewPriceClient(httpClient("naver", fetch.BrowserUserAgent), cfg.Market.PriceURL, cfg.Market.PriceMaxPages)

	return NewPipelineService(filings, info, prices, PipelineOptions{
		Labels:          labels,
		ExcludedSectors: cfg.Pipeline.ExcludedSectors,
		FetchWorkers:    cfg.Pipeline.FetchWorkers,
	}), nil
}
