package plan

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"order-sync/internal/ordersync"
)

type Planner interface {
	Plan(ctx context.Context) (map[string]ordersync.PlanStats, error)
}

type Response struct {
	Status string                         `json:"status"`
	Error  string                         `json:"error,omitempty"`
	Plan   map[string]ordersync.PlanStats `json:"plan,omitempty"`
}

// Plan reports what a sync would change without writing: GET /api/admin/sync/plan
func Plan(log *slog.Logger, planner Planner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.sync.Plan"

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		plan, err := planner.Plan(ctx)
		if err != nil {
			log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			).Error("failed to plan sync", slog.String("error", err.Error()))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, Response{Status: "error", Error: "Internal server error"})
			return
		}

		render.JSON(w, r, Response{Status: "ok", Plan: plan})
	}
}
