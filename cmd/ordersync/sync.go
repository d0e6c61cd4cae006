package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"order-sync/internal/ordersync"
	"order-sync/internal/service/syncrun"
)

var syncFlags struct {
	table    string
	parallel bool
	dryRun   bool
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync and print the per-table counters",
	RunE:  runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncFlags.table, "table", "", "sync only this derived table")
	syncCmd.Flags().BoolVar(&syncFlags.parallel, "parallel", false, "sync tables concurrently")
	syncCmd.Flags().BoolVar(&syncFlags.dryRun, "dry-run", false, "print what would change without writing")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Sync.Timeout)
	defer cancel()

	out := cmd.OutOrStdout()

	if syncFlags.dryRun {
		plan, err := a.engine.Plan(ctx)
		if err != nil {
			return err
		}
		return renderPlan(out, plan)
	}

	opts := syncrun.Options{Parallel: syncFlags.parallel || a.cfg.Sync.Parallel}
	if syncFlags.table != "" {
		if _, ok := a.registry.Lookup(syncFlags.table); !ok {
			return fmt.Errorf("%q: %w", syncFlags.table, ordersync.ErrUnknownTable)
		}
		opts.Tables = []string{syncFlags.table}
	}

	rep := a.runner.Run(ctx, opts)
	if err := renderReport(out, rep); err != nil {
		return err
	}

	if rep.Errors > 0 {
		return fmt.Errorf("sync %s: %d table(s) failed, see log", rep.RunID, rep.Errors)
	}
	return nil
}
