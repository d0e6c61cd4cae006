package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"order-sync/internal/config"
	"order-sync/internal/ordersync"
	"order-sync/internal/service/syncrun"
	"order-sync/internal/storage/sqldb"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "ordersync",
	Short: "Keeps sample_orders and bulk_orders in step with original_orders",
	Long: `ordersync reconciles the per-type derived order tables against
original_orders. It can run once, on a schedule, or behind an HTTP API.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $CONFIG_PATH or ./config/local.yaml)")
}

// app is the wiring shared by every subcommand.
type app struct {
	cfg      *config.Config
	log      *slog.Logger
	storage  *sqldb.Storage
	registry *ordersync.Registry
	engine   *ordersync.Engine
	runner   *syncrun.Runner

	closeLog func() error
}

func newApp() (*app, error) {
	cfg, err := config.Load(config.Path(configPath))
	if err != nil {
		return nil, err
	}

	log, closeLog := setupLogger(cfg.Env, cfg.Log.ErrorFile, os.Stdout)

	st, err := sqldb.Open(cfg.Database)
	if err != nil {
		log.Error("failed to open db", slog.String("error", err.Error()))
		_ = closeLog()
		return nil, err
	}

	reg, err := ordersync.NewRegistry(ordersync.DefaultProjections()...)
	if err != nil {
		_ = st.Close()
		_ = closeLog()
		return nil, fmt.Errorf("projections: %w", err)
	}

	engine := ordersync.New(ordersync.Own(st), st.Dialect(), reg,
		ordersync.WithLogger(log),
		ordersync.WithTxOptions(cfg.Sync.TxOptions()),
	)

	return &app{
		cfg:      cfg,
		log:      log,
		storage:  st,
		registry: reg,
		engine:   engine,
		runner:   syncrun.NewRunner(engine, log),
		closeLog: closeLog,
	}, nil
}

func (a *app) Close() {
	if err := a.storage.Close(); err != nil {
		a.log.Warn("failed to close db", slog.String("error", err.Error()))
	}
	_ = a.closeLog()
}
