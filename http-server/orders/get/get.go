package get

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"order-sync/internal/storage"
)

const maxLimit = 1000

type DerivedOrders interface {
	ListDerived(ctx context.Context, table string, limit, offset int) ([]*storage.DerivedOrder, error)
	GetDerived(ctx context.Context, table, orderID string) (*storage.DerivedOrder, error)
}

type ResponseList struct {
	Table  string                  `json:"table"`
	Limit  int                     `json:"limit"`
	Offset int                     `json:"offset"`
	Orders []*storage.DerivedOrder `json:"orders"`
}

type ResponseError struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

func errorJSON(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, ResponseError{Status: "error", Error: msg})
}

// ListOrders returns a page of one derived table: GET /api/orders/{table}?limit=&offset=
func ListOrders(log *slog.Logger, orders DerivedOrders, tables []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.orders.ListOrders"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		table := chi.URLParam(r, "table")
		if !slices.Contains(tables, table) {
			errorJSON(w, r, http.StatusNotFound, "unknown table")
			return
		}

		limit, err := queryInt(r, "limit", 100)
		if err != nil || limit < 1 || limit > maxLimit {
			errorJSON(w, r, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		offset, err := queryInt(r, "offset", 0)
		if err != nil || offset < 0 {
			errorJSON(w, r, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		list, err := orders.ListDerived(ctx, table, limit, offset)
		if err != nil {
			log.Error("failed to list orders", slog.String("table", table), slog.String("error", err.Error()))
			errorJSON(w, r, http.StatusInternalServerError, "Internal server error")
			return
		}

		render.JSON(w, r, ResponseList{Table: table, Limit: limit, Offset: offset, Orders: list})
	}
}

// GetOrder returns one row: GET /api/orders/{table}/{orderID}
func GetOrder(log *slog.Logger, orders DerivedOrders, tables []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.orders.GetOrder"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		table := chi.URLParam(r, "table")
		if !slices.Contains(tables, table) {
			errorJSON(w, r, http.StatusNotFound, "unknown table")
			return
		}
		orderID := chi.URLParam(r, "orderID")

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		order, err := orders.GetDerived(ctx, table, orderID)
		if errors.Is(err, storage.ErrNotFound) {
			log.Warn("order not found", slog.String("table", table), slog.String("order_id", orderID))
			errorJSON(w, r, http.StatusNotFound, "order not found")
			return
		}
		if err != nil {
			log.Error("failed to get order", slog.String("table", table), slog.String("error", err.Error()))
			errorJSON(w, r, http.StatusInternalServerError, "Internal server error")
			return
		}

		render.JSON(w, r, order)
	}
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
