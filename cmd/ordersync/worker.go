package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-co-op/gocron/v2"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"order-sync/internal/service/syncrun"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the sync on a fixed interval",
	Long: `Run a full sync every sync.interval until interrupted. A run that is
still going when the next tick arrives delays that tick instead of
overlapping it.`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler, err := gocron.NewScheduler(gocron.WithLogger(a.log))
	if err != nil {
		return err
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(a.cfg.Sync.Interval),
		gocron.NewTask(func() {
			runCtx, cancel := context.WithTimeout(ctx, a.cfg.Sync.Timeout)
			defer cancel()

			rep := a.runner.Run(runCtx, syncrun.Options{Parallel: a.cfg.Sync.Parallel})
			if rep.Errors > 0 {
				a.log.Warn("scheduled sync finished with errors",
					slog.String("run_id", rep.RunID),
					slog.Int("errors", rep.Errors),
				)
			}
		}),
		gocron.WithName("ordersync"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("worker started",
			slog.Duration("interval", a.cfg.Sync.Interval),
			slog.Bool("parallel", a.cfg.Sync.Parallel),
		)
		scheduler.Start()

		<-ctx.Done()
		a.log.Info("stopping scheduler")
		return scheduler.Shutdown()
	})

	if err := g.Wait(); err != nil {
		a.log.Error("worker stopped", slog.String("error", err.Error()))
		return err
	}

	a.log.Info("worker stopped")
	return nil
}
