package generate_excel

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"order-sync/internal/service/report"
	"order-sync/internal/storage"
)

type Exporter interface {
	Export(ctx context.Context, table string) ([]byte, error)
}

// GenerateReportExcel streams a derived table as .xlsx: GET /api/report/excel?table=
func GenerateReportExcel(log *slog.Logger, gen Exporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handler.report.GenerateReportExcel"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		table := r.URL.Query().Get("table")
		if table == "" {
			http.Error(w, "Missing required query parameter 'table'", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		excelBytes, err := gen.Export(ctx, table)
		if errors.Is(err, storage.ErrUnknownTable) {
			http.Error(w, "unknown table", http.StatusNotFound)
			return
		}
		if err != nil {
			log.Error("failed to generate excel", slog.String("table", table), slog.String("error", err.Error()))
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", "attachment; filename="+report.FileName(table, time.Now()))
		if _, err := w.Write(excelBytes); err != nil {
			log.Warn("failed to write excel", slog.String("error", err.Error()))
		}
	}
}
