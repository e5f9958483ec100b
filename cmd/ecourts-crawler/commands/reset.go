package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/ecourts-crawler/internal/browser"
	"github.com/jmylchreest/ecourts-crawler/internal/store"
)

var resetForce bool

var resetCmd = &cobra.Command{
	Use:   "reset [table...] --force",
	Short: "Drop and recreate tables (all tables when none are named).",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetForce {
			return errors.New("refusing to drop tables without --force")
		}
		for _, name := range args {
			if _, ok := store.Columns(name); !ok {
				return fmt.Errorf("%w: %s", store.ErrUnknownTable, name)
			}
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		c := newController(st, browser.NewLauncher(cfg, logger), passFlags{})
		if err := c.Reset(cmd.Context(), args...); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "tables reset")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetForce, "force", false, "Confirm dropping the tables.")
	rootCmd.AddCommand(resetCmd)
}
