package excel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"order-sync/internal/service/importer"
	"order-sync/internal/service/syncrun"
)

const maxUploadSize = 32 << 20

type Importer interface {
	Import(ctx context.Context, name string, r io.Reader) (importer.Result, error)
}

type Runner interface {
	Run(ctx context.Context, opts syncrun.Options) syncrun.Report
}

type Response struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	Import importer.Result `json:"import"`
	Sync   *syncrun.Report `json:"sync,omitempty"`
}

// ImportExcel loads an uploaded .xlsx into original_orders and then syncs
// every derived table. Rows rejected by the import skip the sync: POST /api/admin/import/excel (multipart field "file").
func ImportExcel(log *slog.Logger, imp Importer, runner Runner, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.import.ImportExcel"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		file, header, err := r.FormFile("file")
		if err != nil {
			log.Warn("no file in upload", slog.String("error", err.Error()))
			fail(w, r, http.StatusBadRequest, "multipart field 'file' is required")
			return
		}
		defer file.Close()

		if !strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
			fail(w, r, http.StatusBadRequest, "only .xlsx files are supported")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		res, err := imp.Import(ctx, header.Filename, file)
		if err != nil {
			if errors.Is(err, importer.ErrMissingOrderID) ||
				errors.Is(err, importer.ErrInvalidWorkbook) ||
				errors.Is(err, importer.ErrEmptyWorkbook) {
				log.Warn("rejected workbook", slog.String("file", header.Filename), slog.String("error", err.Error()))
				fail(w, r, http.StatusBadRequest, err.Error())
				return
			}

			log.Error("import failed", slog.String("file", header.Filename), slog.String("error", err.Error()))
			fail(w, r, http.StatusInternalServerError, "Internal server error")
			return
		}

		if res.Errors > 0 {
			log.Warn("import had row errors, sync skipped",
				slog.String("file", header.Filename),
				slog.Int("errors", res.Errors),
			)
			render.JSON(w, r, Response{
				Status: "error",
				Error:  fmt.Sprintf("import completed with %d errors, sync skipped", res.Errors),
				Import: res,
			})
			return
		}

		rep := runner.Run(ctx, syncrun.Options{})

		status := "ok"
		if rep.Errors > 0 {
			status = "partial"
		}

		render.JSON(w, r, Response{Status: status, Import: res, Sync: &rep})
	}
}

func fail(w http.ResponseWriter, r *http.Request, code int, msg string) {
	render.Status(r, code)
	render.JSON(w, r, Response{Status: "error", Error: msg})
}
