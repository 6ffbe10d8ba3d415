package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/crossref-sync/internal/model"
	"github.com/sells-group/crossref-sync/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect sync run history",
	Long:  "Commands for listing runs, viewing their summaries, and exporting failed rows for a re-run.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sync runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := requireStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		inputPath, _ := cmd.Flags().GetString("input")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Input:  inputPath,
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := requireStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		withOutcomes, _ := cmd.Flags().GetBool("outcomes")
		if !withOutcomes {
			return writeJSON(os.Stdout, run)
		}

		outcomes, err := st.ListOutcomes(ctx, run.ID, store.OutcomeFilter{Limit: run.Total})
		if err != nil {
			return eris.Wrap(err, "runs show: outcomes")
		}
		return writeJSON(os.Stdout, struct {
			*model.Run
			Outcomes []model.RecordOutcome `json:"outcomes"`
		}{run, outcomes})
	},
}

// -- runs failed --

var runsFailedCmd = &cobra.Command{
	Use:   "failed <run-id>",
	Short: "Export a run's failed rows as CSV for a re-run",
	Long:  "Prints the rows whose fetch or update failed as a DOI,UUID CSV that sync accepts as input.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := requireStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs failed")
		}
		outcomes, err := st.ListOutcomes(ctx, run.ID, store.OutcomeFilter{FailedOnly: true, Limit: run.Total})
		if err != nil {
			return eris.Wrap(err, "runs failed: outcomes")
		}
		return writeFailedCSV(os.Stdout, outcomes, cfg.Input.DOIColumn, cfg.Input.IDColumn)
	},
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status (running, complete, failed)")
	runsListCmd.Flags().String("input", "", "filter by input file path")
	runsListCmd.Flags().Int("limit", 50, "max number of runs to display")

	runsShowCmd.Flags().Bool("outcomes", false, "include every row outcome")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsFailedCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tINPUT\tSTATUS\tROWS\tUPDATED\tFAILED\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t-----\t------\t----\t-------\t------\t-------\t--------")

	for _, r := range runs {
		dur := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()

		inputPath := r.Input
		if len(inputPath) > 30 {
			inputPath = "..." + inputPath[len(inputPath)-27:]
		}
		if r.DryRun {
			inputPath += " (dry run)"
		}

		updated, failed := "-", "-"
		if r.Summary != nil {
			n := r.Summary.Updated
			if r.DryRun {
				n = r.Summary.WouldUpdate
			}
			updated = fmt.Sprint(n)
			failed = fmt.Sprint(r.Summary.FetchErrors + r.Summary.UpdateErrors)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			inputPath,
			r.Status,
			r.Total,
			updated,
			failed,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// writeFailedCSV writes failed outcomes as a two-column input sheet.
func writeFailedCSV(out io.Writer, outcomes []model.RecordOutcome, doiCol, idCol string) error {
	w := csv.NewWriter(out)
	if err := w.Write([]string{doiCol, idCol}); err != nil {
		return eris.Wrap(err, "write failed rows")
	}
	for _, o := range outcomes {
		if err := w.Write([]string{o.DOI, o.RecordID}); err != nil {
			return eris.Wrap(err, "write failed rows")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "write failed rows")
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
