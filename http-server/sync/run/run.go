package run

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"order-sync/internal/service/syncrun"
)

type Runner interface {
	Run(ctx context.Context, opts syncrun.Options) syncrun.Report
}

type Response struct {
	Status string         `json:"status"`
	Error  string         `json:"error,omitempty"`
	Report syncrun.Report `json:"report"`
}

// SyncAll runs every projection: POST /api/admin/sync?parallel=true
//
// Table failures are reported in the body with status "partial"; the
// response code stays 200.
func SyncAll(log *slog.Logger, runner Runner, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.sync.SyncAll"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		parallel := false
		if raw := r.URL.Query().Get("parallel"); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, Response{Status: "error", Error: "parallel must be a boolean"})
				return
			}
			parallel = v
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		rep := runner.Run(ctx, syncrun.Options{Parallel: parallel})
		log.Info("sync requested", slog.String("run_id", rep.RunID), slog.Int("errors", rep.Errors))

		render.JSON(w, r, Response{Status: status(rep), Report: rep})
	}
}

// SyncTable runs one projection: POST /api/admin/sync/{table}
func SyncTable(log *slog.Logger, runner Runner, tables []string, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.sync.SyncTable"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		table := chi.URLParam(r, "table")
		if !slices.Contains(tables, table) {
			log.Warn("unknown table", slog.String("table", table))
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, Response{Status: "error", Error: "unknown table"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		rep := runner.Run(ctx, syncrun.Options{Tables: []string{table}})
		log.Info("sync requested", slog.String("run_id", rep.RunID), slog.String("table", table), slog.Int("errors", rep.Errors))

		render.JSON(w, r, Response{Status: status(rep), Report: rep})
	}
}

func status(rep syncrun.Report) string {
	if rep.Errors > 0 {
		return "partial"
	}
	return "ok"
}
