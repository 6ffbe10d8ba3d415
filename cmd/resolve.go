package main

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/crossref-sync/internal/input"
	"github.com/sells-group/crossref-sync/internal/model"
	"github.com/sells-group/crossref-sync/internal/resolver"
)

var (
	resolveDOI  string
	resolveAsOf string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Look one DOI up in CrossRef and print what would be written",
	Long: `Checks the DOI's registration agency, reads its CrossRef work record and
prints the extracted license, embargo end and e-pub date as JSON. Nothing is
read from or written to the repository.

Use --as-of to decide embargoes against a date other than today.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("resolve"); err != nil {
			return err
		}

		now, err := parseAsOf(resolveAsOf)
		if err != nil {
			return err
		}

		res := newResolver(cfg, now).Resolve(cmd.Context(), input.NormalizeDOI(resolveDOI))
		return writeJSON(os.Stdout, resolutionView(res))
	},
}

// resolutionJSON is the printable form of a resolver.Resolution.
type resolutionJSON struct {
	DOI     string               `json:"doi"`
	Status  model.ResolveStatus  `json:"status"`
	Agency  string               `json:"agency,omitempty"`
	Result  model.CrossRefResult `json:"result"`
	Access  model.AccessState    `json:"access,omitempty"`
	Failure *model.Failure       `json:"failure,omitempty"`
	Skips   []model.SkipReason   `json:"skips,omitempty"`
}

func resolutionView(res resolver.Resolution) resolutionJSON {
	out := resolutionJSON{
		DOI:     res.DOI,
		Status:  res.Status,
		Agency:  res.Agency,
		Result:  res.Result,
		Failure: res.Failure,
		Skips:   res.Skips,
	}
	if res.Result.HasLicense() {
		out.Access = res.Result.Access()
	}
	return out
}

// parseAsOf turns a full date flag into a fixed clock. Empty means now.
func parseAsOf(s string) (func() time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := model.ParsePartialDate(s)
	if err != nil {
		return nil, eris.Wrapf(err, "invalid --as-of %q (want YYYY-MM-DD)", s)
	}
	if d.Precision != model.PrecisionDay {
		return nil, eris.Errorf("invalid --as-of %q: a full date is required (YYYY-MM-DD)", s)
	}
	t := d.Time()
	return func() time.Time { return t }, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	resolveCmd.Flags().StringVar(&resolveDOI, "doi", "", "DOI to resolve, with or without a doi.org prefix (required)")
	resolveCmd.Flags().StringVar(&resolveAsOf, "as-of", "", "resolution date for embargo decisions (YYYY-MM-DD)")
	_ = resolveCmd.MarkFlagRequired("doi")
	rootCmd.AddCommand(resolveCmd)
}
