package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/crossref-sync/internal/input"
	"github.com/sells-group/crossref-sync/internal/model"
	"github.com/sells-group/crossref-sync/internal/reconcile"
	"github.com/sells-group/crossref-sync/internal/resolver"
	"github.com/sells-group/crossref-sync/pkg/pure"
)

var (
	reconcileDOI   string
	reconcileID    string
	reconcileApply bool
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Show (and optionally send) the update for one record",
	Long: `Fetches one repository record, resolves its DOI and prints the decision:
which changes are needed and the exact update payload. The update is only
sent with --apply.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("sync"); err != nil {
			return err
		}

		client := newPureClient(cfg)
		rec, err := client.Get(ctx, reconcileID)
		if pure.IsNotFound(err) {
			return eris.Errorf("reconcile: record %s not found at %s", reconcileID, client.RecordURL(reconcileID))
		}
		if err != nil {
			return eris.Wrap(err, "reconcile: fetch record")
		}

		res := newResolver(cfg, nil).Resolve(ctx, input.NormalizeDOI(reconcileDOI))
		d := newEngine(cfg).Reconcile(res.Result, rec)

		view := decisionView(res, d)
		if reconcileApply && d.Changed() {
			if err := client.Update(ctx, reconcileID, d.Payload); err != nil {
				return eris.Wrap(err, "reconcile: update record")
			}
			view.Applied = true
			zap.L().Info("reconcile: record updated", zap.String("record_id", reconcileID))
		}
		return writeJSON(os.Stdout, view)
	},
}

// decisionJSON is the printable form of a reconcile.Decision.
type decisionJSON struct {
	Resolution     resolutionJSON     `json:"resolution"`
	Changed        bool               `json:"changed"`
	LicenseClass   model.LicenseClass `json:"license_class,omitempty"`
	LicenseChanged bool               `json:"license_changed"`
	EpubChanged    bool               `json:"epub_changed"`
	EpubDiscarded  bool               `json:"epub_discarded,omitempty"`
	Skips          []model.SkipReason `json:"skips,omitempty"`
	Payload        json.RawMessage    `json:"payload,omitempty"`
	Applied        bool               `json:"applied"`
}

func decisionView(res resolver.Resolution, d reconcile.Decision) decisionJSON {
	out := decisionJSON{
		Resolution:     resolutionView(res),
		Changed:        d.Changed(),
		LicenseClass:   d.LicenseClass,
		LicenseChanged: d.LicenseChanged,
		EpubChanged:    d.EpubChanged,
		EpubDiscarded:  d.EpubDiscarded,
		Skips:          d.Skips,
	}
	if d.Changed() {
		if payload, err := json.Marshal(d.Payload); err == nil {
			out.Payload = payload
		}
	}
	return out
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileDOI, "doi", "", "DOI of the work (required)")
	reconcileCmd.Flags().StringVar(&reconcileID, "id", "", "repository record id (required)")
	reconcileCmd.Flags().BoolVar(&reconcileApply, "apply", false, "send the update")
	_ = reconcileCmd.MarkFlagRequired("doi")
	_ = reconcileCmd.MarkFlagRequired("id")
	rootCmd.AddCommand(reconcileCmd)
}
