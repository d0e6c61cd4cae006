package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"order-sync/internal/service/importer"
	"order-sync/internal/service/syncrun"
)

var importNoSync bool

var importCmd = &cobra.Command{
	Use:   "import <file.xlsx>",
	Short: "Load an .xlsx export into original_orders, then sync",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	importCmd.Flags().BoolVar(&importNoSync, "no-sync", false, "only load original_orders")
	rootCmd.AddCommand(importCmd)
}

type workbookImporter interface {
	Import(ctx context.Context, name string, r io.Reader) (importer.Result, error)
}

type syncRunner interface {
	Run(ctx context.Context, opts syncrun.Options) syncrun.Report
}

func runImport(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.Sync.Timeout)
	defer cancel()

	var runner syncRunner = a.runner
	if importNoSync {
		runner = nil
	}

	return importAndSync(ctx, cmd.OutOrStdout(), importer.New(a.storage, a.log), runner,
		filepath.Base(args[0]), f, syncrun.Options{Parallel: a.cfg.Sync.Parallel})
}

// importAndSync imports one workbook and, when runner is set and every row
// was accepted, syncs all derived tables.
func importAndSync(ctx context.Context, out io.Writer, imp workbookImporter, runner syncRunner, name string, r io.Reader, opts syncrun.Options) error {
	res, err := imp.Import(ctx, name, r)
	if err != nil {
		return err
	}
	if err := renderImport(out, res); err != nil {
		return err
	}

	if res.Errors > 0 {
		return fmt.Errorf("import %s: %d row(s) rejected, sync skipped", name, res.Errors)
	}
	if runner == nil {
		return nil
	}

	rep := runner.Run(ctx, opts)
	if err := renderReport(out, rep); err != nil {
		return err
	}
	if rep.Errors > 0 {
		return fmt.Errorf("sync %s: %d table(s) failed, see log", rep.RunID, rep.Errors)
	}
	return nil
}
