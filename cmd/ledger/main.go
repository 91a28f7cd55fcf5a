// Command ledger runs one ledger update and prints its summary.
//
// Usage:
//
//	ledger [-date YYYYMMDD] [-ledger path.xlsx] [-categories contract,merger] [-dry-run] [-json]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/ndewijer/Disclosure-Ledger/internal/config"
	"github.com/ndewijer/Disclosure-Ledger/internal/logger"
	"github.com/ndewijer/Disclosure-Ledger/internal/model"
	"github.com/ndewijer/Disclosure-Ledger/internal/service"
	"github.com/ndewijer/Disclosure-Ledger/internal/validation"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, stdout io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return 1
	}
	logger.Init(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	fs := flag.NewFlagSet("ledger", flag.ContinueOnError)
	dateFlag := fs.String("date", "", "filing date as YYYYMMDD (default: today in RUN_TIMEZONE)")
	ledgerFlag := fs.String("ledger", cfg.Ledger.Path, "workbook path")
	categoriesFlag := fs.String("categories", "", "comma separated categories (default: LEDGER_CATEGORIES)")
	dryRun := fs.Bool("dry-run", false, "process filings without saving the workbook")
	asJSON := fs.Bool("json", false, "print the summary as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	req, err := buildRequest(cfg, *dateFlag, *ledgerFlag, *categoriesFlag, *dryRun)
	if err != nil {
		slog.Error("invalid arguments", "error", err)
		return 2
	}

	pipeline, err := service.NewPipelineServiceFromConfig(cfg)
	if err != nil {
		slog.Error("failed to build pipeline", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := pipeline.Run(ctx, req)
	if printErr := printSummary(stdout, summary, *asJSON); printErr != nil {
		slog.Error("failed to print summary", "error", printErr)
	}
	if err != nil {
		slog.Error("run failed", "error", err)
		return 1
	}
	return 0
}

func buildRequest(cfg *config.Config, date, ledgerPath, categories string, dryRun bool) (service.RunRequest, error) {
	req := service.RunRequest{
		LedgerPath: ledgerPath,
		Categories: cfg.Ledger.Categories,
		DryRun:     dryRun,
	}

	y, m, d := time.Now().In(cfg.Schedule.Location).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	req.Date = today
	if date != "" {
		parsed, err := validation.ValidateDate(date, today)
		if err != nil {
			return req, err
		}
		req.Date = parsed
	}

	if categories != "" {
		parsed, err := model.ParseCategories(categories)
		if err != nil {
			return req, err
		}
		req.Categories = parsed
	}
	return req, nil
}

func printSummary(w io.Writer, s model.RunSummary, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "category\tconsidered\tinserted\tduplicates\trejected\texcluded\tfailed\tcompleted\t\n")
	for _, c := range append(s.Categories, total(s)) {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t\n",
			c.Category, c.Considered, c.Inserted, c.Duplicates, c.Rejected, c.Excluded, c.Failed, c.Completed)
	}
	if s.DryRun {
		fmt.Fprintf(tw, "dry run: ledger not saved\t\t\t\t\t\t\t\t\n")
	}
	return tw.Flush()
}

func total(s model.RunSummary) model.CategorySummary {
	t := s.Totals()
	t.Category = "total"
	return t
}
