package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"order-sync/internal/storage/schema"
)

// unroutedType is seeded alongside the registered categories so that some
// rows stay in original_orders only.
const unroutedType = "其他"

var seedFlags struct {
	orders int
	batch  int
	seed   int64
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill original_orders with synthetic orders for local testing",
	RunE:  runSeed,
}

func init() {
	seedCmd.Flags().IntVar(&seedFlags.orders, "orders", 1000, "target row count of original_orders")
	seedCmd.Flags().IntVar(&seedFlags.batch, "batch", 500, "rows per insert")
	seedCmd.Flags().Int64Var(&seedFlags.seed, "seed", 42, "random seed")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	gdb, err := schema.Gorm(a.storage.DB(), a.storage.Dialect())
	if err != nil {
		return err
	}

	var types []string
	for _, p := range a.registry.Projections() {
		types = append(types, p.Categories...)
	}
	types = append(types, unroutedType)

	n, err := schema.Seed(cmd.Context(), gdb, schema.SeedConfig{
		Orders:     seedFlags.orders,
		BatchSize:  seedFlags.batch,
		OrderTypes: types,
		Seed:       seedFlags.seed,
	})
	if err != nil {
		return err
	}

	a.log.Info("original orders seeded", slog.Int("created", n), slog.Int("target", seedFlags.orders))
	return nil
}
