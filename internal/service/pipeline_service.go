package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ndewijer/Disclosure-Ledger/internal/apperrors"
	"github.com/ndewijer/Disclosure-Ledger/internal/completer"
	"github.com/ndewijer/Disclosure-Ledger/internal/dart"
	"github.com/ndewijer/Disclosure-Ledger/internal/extract"
	"github.com/ndewijer/Disclosure-Ledger/internal/ledger"
	"github.com/ndewijer/Disclosure-Ledger/internal/logger"
	"github.com/ndewijer/Disclosure-Ledger/internal/market"
	"github.com/ndewijer/Disclosure-Ledger/internal/model"
	"github.com/ndewijer/Disclosure-Ledger/internal/normalize"
	"github.com/ndewijer/Disclosure-Ledger/internal/reconcile"
)

// RunRequest selects what one pipeline run processes.
type RunRequest struct {
	Date       time.Time
	LedgerPath string
	Categories []model.Category
	DryRun     bool // process everything but leave the ledger file untouched
}

// PipelineOptions holds the settings shared by every run.
type PipelineOptions struct {
	Labels          extract.LabelTable
	ExcludedSectors []string
	FetchWorkers    int
}

// PipelineService runs the daily ledger update: it lists the day's filings,
// turns them into records, appends the new ones and completes deferred fields.
type PipelineService struct {
	filings   dart.Source
	info      market.InfoSource
	completer *completer.Completer
	opts      PipelineOptions
}

// NewPipelineService creates a new PipelineService.
func NewPipelineService(
	filings dart.Source,
	info market.InfoSource,
	prices market.PriceSource,
	opts PipelineOptions,
) *PipelineService {
	if opts.Labels == nil {
		opts.Labels = extract.DefaultLabels()
	}
	opts.FetchWorkers = max(opts.FetchWorkers, 1)
	return &PipelineService{
		filings:   filings,
		info:      info,
		completer: completer.New(prices),
		opts:      opts,
	}
}

// category bundles what a run needs for one category.
type category struct {
	name       model.Category
	sheet      *ledger.Sheet
	normalizer normalize.Normalizer
	fields     extract.FieldSet
}

// Run processes req. Every sheet is resolved before anything is written, so a
// schema mismatch aborts the run with the ledger untouched. Per-filing and
// per-row failures are counted in the summary; listing, append and save
// failures are fatal and nothing is saved.
func (s *PipelineService) Run(ctx context.Context, req RunRequest) (model.RunSummary, error) {
	log := logger.WithContext(ctx)
	summary := model.RunSummary{Date: req.Date, DryRun: req.DryRun}

	wb, err := ledger.OpenWorkbook(req.LedgerPath)
	if err != nil {
		return summary, err
	}
	defer wb.Close()

	categories, err := s.resolve(wb, req.Categories)
	if err != nil {
		return summary, err
	}

	for _, c := range categories {
		cs, err := s.runCategory(logger.WithCategory(ctx, string(c.name)), req.Date, c)
		if err != nil {
			return summary, fmt.Errorf("%s: %w", c.name, err)
		}
		summary.Categories = append(summary.Categories, cs)
	}

	if req.DryRun {
		log.Info("dry run, ledger not saved", "path", wb.Path())
		return summary, nil
	}
	if err := wb.Save(); err != nil {
		return summary, err
	}

	totals := summary.Totals()
	log.Info("ledger updated",
		"path", wb.Path(),
		"considered", totals.Considered,
		"inserted", totals.Inserted,
		"skipped", totals.Skipped(),
		"completed", totals.Completed)
	return summary, nil
}

func (s *PipelineService) resolve(wb *ledger.Workbook, names []model.Category) ([]category, error) {
	if len(names) == 0 {
		names = model.Categories()
	}
	out := make([]category, 0, len(names))
	for _, name := range names {
		schema, err := ledger.SchemaFor(name)
		if err != nil {
			return nil, err
		}
		sheet, err := wb.Sheet(schema)
		if err != nil {
			return nil, err
		}
		n, err := normalize.ForCategory(name, normalize.Options{
			ExcludedSectors: s.opts.ExcludedSectors,
			Mergers:         sheet,
		})
		if err != nil {
			return nil, err
		}
		fields, ok := s.opts.Labels[name]
		if !ok {
			return nil, fmt.Errorf("%w: no labels for %q", apperrors.ErrUnknownCategory, name)
		}
		out = append(out, category{name: name, sheet: sheet, normalizer: n, fields: fields})
	}
	return out, nil
}

func (s *PipelineService) runCategory(ctx context.Context, date time.Time, c category) (model.CategorySummary, error) {
	log := logger.WithContext(ctx)
	cs := model.CategorySummary{Category: c.name}

	q, err := dart.QueryFor(c.name, date)
	if err != nil {
		return cs, err
	}
	filings, err := s.filings.ListFilings(ctx, q)
	if err != nil {
		return cs, err
	}
	cs.Considered = len(filings)

	candidates, err := s.prepareAll(ctx, c, q.Filter.Entry, filings)
	if err != nil {
		return cs, err
	}

	var batch []model.DisclosureRecord
	for i, cand := range candidates {
		switch {
		case cand.err == nil:
			batch = append(batch, cand.record)
		case errors.Is(cand.err, apperrors.ErrExcludedSector):
			cs.Excluded++
			log.Info("filing excluded", "filing_id", filings[i].ID, "reason", cand.err)
		default:
			cs.Failed++
			log.Warn("filing skipped", "filing_id", filings[i].ID, "issuer", filings[i].Issuer, "error", cand.err)
		}
	}

	out, err := reconcile.Reconcile(batch, c.sheet)
	if err != nil {
		return cs, err
	}
	for _, r := range out.Rejected {
		log.Warn("filing rejected", "error", r)
	}
	cs.Rejected = len(out.Rejected)
	cs.Duplicates = len(out.Duplicates)

	if err := c.sheet.Append(out.Rows); err != nil {
		return cs, err
	}
	cs.Inserted = len(out.Rows)

	res, err := s.completer.Complete(ctx, c.sheet)
	if err != nil {
		return cs, err
	}
	cs.Completed = res.Completed
	cs.CompletionFailures = res.Failures

	log.Info("category processed",
		"considered", cs.Considered,
		"inserted", cs.Inserted,
		"duplicates", cs.Duplicates,
		"rejected", cs.Rejected,
		"excluded", cs.Excluded,
		"failed", cs.Failed,
		"completed", cs.Completed,
		"pending", res.Pending)
	return cs, nil
}

type candidate struct {
	record model.DisclosureRecord
	err    error
}

// prepareAll fetches and normalises filings in parallel. Results keep the
// list order so sequence numbers do not depend on scheduling.
func (s *PipelineService) prepareAll(ctx context.Context, c category, rule dart.EntryRule, filings []model.Filing) ([]candidate, error) {
	out := make([]candidate, len(filings))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.FetchWorkers)
	for i, f := range filings {
		g.Go(func() error {
			rec, err := s.prepare(gctx, c, rule, f)
			out[i] = candidate{record: rec, err: err}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PipelineService) prepare(ctx context.Context, c category, rule dart.EntryRule, f model.Filing) (model.DisclosureRecord, error) {
	log := logger.WithContext(ctx)

	markup, err := s.filings.FetchDocument(ctx, f.ID, rule)
	if err != nil {
		return model.DisclosureRecord{}, err
	}
	doc, err := extract.NewDocument(markup)
	if err != nil {
		return model.DisclosureRecord{}, err
	}

	fields, malformed := extract.ExtractAll(doc, c.fields)
	for _, err := range malformed {
		log.Warn("field left empty", "filing_id", f.ID, "error", err)
	}

	var info *model.MarketInfo
	if f.StockCode != "" {
		mi, err := s.info.Lookup(ctx, f.StockCode)
		if err != nil {
			log.Warn("market info unavailable", "filing_id", f.ID, "instrument", f.StockCode, "error", err)
		} else {
			info = &mi
		}
	}

	return c.normalizer.Normalize(normalize.Input{Filing: f, Fields: fields, Market: info})
}
