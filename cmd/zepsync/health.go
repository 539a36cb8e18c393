package zepsync

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the graph backend is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, true, false)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithTimeout(commandContext(cmd, ""), 10*time.Second)
		defer cancel()
		if err := a.store.Ping(ctx); err != nil {
			return fmt.Errorf("%s backend is unreachable: %w", a.cfg.Store.Backend, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s backend is healthy\n", a.cfg.Store.Backend)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
