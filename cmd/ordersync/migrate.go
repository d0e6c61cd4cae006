package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"order-sync/internal/storage"
	"order-sync/internal/storage/schema"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update original_orders and every derived table",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	gdb, err := schema.Gorm(a.storage.DB(), a.storage.Dialect())
	if err != nil {
		return err
	}

	tables := a.registry.Tables()
	if err := schema.Migrate(gdb, tables...); err != nil {
		return err
	}

	a.log.Info("schema migrated", slog.Any("derived", tables))

	for _, table := range append([]string{storage.TableOriginalOrders}, tables...) {
		n, err := a.storage.CountRows(cmd.Context(), table)
		if err != nil {
			return err
		}
		a.log.Info("table ready", slog.String("table", table), slog.Int64("rows", n))
	}
	return nil
}
