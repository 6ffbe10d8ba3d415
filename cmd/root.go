package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/crossref-sync/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "crossref-sync",
	Short: "Reconcile repository research outputs with CrossRef",
	Long:  "Reads DOIs and record ids from a spreadsheet, looks each DOI up in CrossRef, and writes open-access licenses, embargo periods and e-pub ahead of print dates back to the Pure research repository.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
