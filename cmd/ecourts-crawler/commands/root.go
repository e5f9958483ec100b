// Package commands implements the ecourts-crawler CLI.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/ecourts-crawler/internal/config"
	"github.com/jmylchreest/ecourts-crawler/internal/logging"
	"github.com/jmylchreest/ecourts-crawler/internal/store"
	"github.com/jmylchreest/ecourts-crawler/internal/version"
)

var (
	cfg    *config.Config
	logger *slog.Logger

	dbFlag      string
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:           "ecourts-crawler",
	Short:         "ecourts-crawler harvests court jurisdictions and case-status search results from the eCourts portal.",
	Version:       version.Get().Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.Load()
		if dbFlag != "" {
			cfg.DatabaseURL = dbFlag
		}
		logger = logging.Setup(cfg.LogLevel, verboseFlag)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "Database path or libsql URL (overrides DATABASE_URL).")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging.")
}

// ExecuteContext runs the CLI and returns the process exit code.
func ExecuteContext(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func openStore(ctx context.Context) (*store.Store, error) {
	st, err := store.Open(ctx, cfg.DatabaseURL, cfg.DatabaseAuthToken, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return st, nil
}
