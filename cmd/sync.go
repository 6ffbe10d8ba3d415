package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/crossref-sync/internal/input"
	"github.com/sells-group/crossref-sync/internal/model"
	"github.com/sells-group/crossref-sync/internal/pipeline"
	"github.com/sells-group/crossref-sync/internal/report"
)

var (
	syncInput       string
	syncDOICol      string
	syncIDCol       string
	syncSheet       string
	syncLimit       int
	syncConcurrency int
	syncDryRun      bool
	syncOutput      string
	syncOutDir      string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile every row of an input sheet",
	Long: `Reads DOI and record id columns from a CSV or XLSX file and, for each row,
fetches the repository record, resolves the DOI against CrossRef, and sends
the license, embargo and e-pub changes the record needs.

Failures are appended to get_errors.txt, put_errors.txt and
crossref_errors.txt in the output directory; exit_report.txt is rewritten
at the end of every run.

Examples:
  # Preview the changes for the first 20 rows
  crossref-sync sync --input dois.csv --limit 20 --dry-run

  # Full run, four records at a time, with a JSON outcome file
  crossref-sync sync --input dois.xlsx --concurrency 4 --output results.json`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		applySyncFlags(cmd)
		if err := cfg.Validate("sync"); err != nil {
			return err
		}

		rows, err := input.Load(ctx, syncInput, input.Options{
			DOIColumn: cfg.Input.DOIColumn,
			IDColumn:  cfg.Input.IDColumn,
			Sheet:     cfg.Input.Sheet,
		})
		if err != nil {
			return eris.Wrap(err, "sync: load input")
		}
		if syncLimit > 0 && syncLimit < len(rows) {
			rows = rows[:syncLimit]
		}
		zap.L().Info("sync: loaded input", zap.String("path", syncInput), zap.Int("rows", len(rows)))

		reporter, err := report.New(cfg.Output.Dir)
		if err != nil {
			return err
		}
		defer reporter.Close() //nolint:errcheck

		st, err := initStore(ctx, cfg)
		if err != nil {
			return eris.Wrap(err, "sync: init store")
		}
		opts := []pipeline.Option{
			pipeline.WithDryRun(cfg.Sync.DryRun),
			pipeline.WithConcurrency(cfg.Sync.Concurrency),
			pipeline.WithRecorder(reporter),
		}
		if st != nil {
			defer st.Close() //nolint:errcheck
			opts = append(opts, pipeline.WithStore(st, syncInput))
		}

		p := pipeline.New(newPureClient(cfg), newResolver(cfg, nil), newEngine(cfg), opts...)
		summary, outcomes, runErr := p.Run(ctx, rows)

		if err := reporter.WriteErrorTotals(*summary); err != nil {
			zap.L().Error("sync: write error totals", zap.Error(err))
		}
		if err := reporter.WriteExitReport(*summary); err != nil {
			zap.L().Error("sync: write exit report", zap.Error(err))
		}
		if syncOutput != "" {
			if err := report.WriteOutcomes(syncOutput, outcomes); err != nil {
				zap.L().Error("sync: write outcomes", zap.Error(err))
			} else {
				zap.L().Info("sync: outcomes written", zap.String("path", syncOutput))
			}
		}

		printSummary(os.Stderr, summary, cfg.Sync.DryRun)
		return runErr
	},
}

// applySyncFlags lets explicitly set flags override configuration.
func applySyncFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("doi-col") {
		cfg.Input.DOIColumn = syncDOICol
	}
	if flags.Changed("id-col") {
		cfg.Input.IDColumn = syncIDCol
	}
	if flags.Changed("sheet") {
		cfg.Input.Sheet = syncSheet
	}
	if flags.Changed("concurrency") {
		cfg.Sync.Concurrency = syncConcurrency
	}
	if flags.Changed("dry-run") {
		cfg.Sync.DryRun = syncDryRun
	}
	if flags.Changed("out-dir") {
		cfg.Output.Dir = syncOutDir
	}
}

// printSummary writes the end-of-run counters for the operator.
func printSummary(w io.Writer, s *model.Summary, dryRun bool) {
	if dryRun {
		_, _ = fmt.Fprintln(w, "Dry run: no records were changed.")
	}
	_, _ = fmt.Fprint(w, report.FormatExitReport(*s, time.Now()))
}

func init() {
	syncCmd.Flags().StringVar(&syncInput, "input", "", "path to the CSV or XLSX input file (required)")
	syncCmd.Flags().StringVar(&syncDOICol, "doi-col", "DOI", "name of the DOI column")
	syncCmd.Flags().StringVar(&syncIDCol, "id-col", "UUID", "name of the record id column")
	syncCmd.Flags().StringVar(&syncSheet, "sheet", "", "XLSX sheet name (default: first sheet)")
	syncCmd.Flags().IntVar(&syncLimit, "limit", 0, "max rows to process (0 = all)")
	syncCmd.Flags().IntVar(&syncConcurrency, "concurrency", 1, "records processed at once")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "compute changes without updating records")
	syncCmd.Flags().StringVar(&syncOutput, "output", "", "write per-row outcomes as JSON to this file")
	syncCmd.Flags().StringVar(&syncOutDir, "out-dir", ".", "directory for error logs and the exit report")
	_ = syncCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(syncCmd)
}
