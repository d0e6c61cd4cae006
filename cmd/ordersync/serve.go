package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"order-sync/internal/service/importer"
	"order-sync/internal/service/report"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := services{
		storage:  a.storage,
		planner:  a.engine,
		runner:   a.runner,
		importer: importer.New(a.storage, a.log),
		report:   report.New(a.storage, a.registry.Tables()),
		tables:   a.registry.Tables(),
	}

	srv := &http.Server{
		Addr:         a.cfg.Address,
		Handler:      routes(*a.cfg, a.log, svc),
		ReadTimeout:  a.cfg.HTTPServer.Timeout,
		WriteTimeout: a.cfg.HTTPServer.Timeout + a.cfg.Sync.Timeout,
		IdleTimeout:  a.cfg.HTTPServer.IdleTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("server started", slog.String("address", a.cfg.Address), slog.String("env", a.cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		a.log.Error("server stopped", slog.String("error", err.Error()))
		return err
	}

	a.log.Info("server stopped")
	return nil
}
