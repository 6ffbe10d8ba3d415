package main

import (
	"io"
	"net/url"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/crossref-sync/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long:  "Prints the configuration after config.yaml, .env and CROSSREF_SYNC_* variables are applied. Secrets are redacted.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return writeConfigYAML(os.Stdout, cfg)
	},
}

const redacted = "<redacted>"

// writeConfigYAML writes c as YAML with credentials masked.
func writeConfigYAML(w io.Writer, c *config.Config) error {
	shown := *c
	if shown.Pure.APIKey != "" {
		shown.Pure.APIKey = redacted
	}
	if shown.Store.Driver == "postgres" && shown.Store.DatabaseURL != "" {
		shown.Store.DatabaseURL = redactURL(shown.Store.DatabaseURL)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(shown); err != nil {
		return eris.Wrap(err, "config show: encode")
	}
	return eris.Wrap(enc.Close(), "config show: flush")
}

// redactURL masks the password of a connection URL. Strings that do not
// parse as URLs are masked entirely.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return redacted
	}
	return u.Redacted()
}

func init() {
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
