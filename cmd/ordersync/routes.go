package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"order-sync/http-server/data-import/excel"
	generate_excel "order-sync/http-server/generate-report/generate-excel"
	"order-sync/http-server/health"
	getorders "order-sync/http-server/orders/get"
	"order-sync/http-server/sync/plan"
	"order-sync/http-server/sync/run"
	"order-sync/internal/config"
	"order-sync/internal/middleware/auth"
	"order-sync/internal/service/importer"
	"order-sync/internal/service/report"
	"order-sync/internal/service/syncrun"
	"order-sync/internal/storage/sqldb"
)

type services struct {
	storage  *sqldb.Storage
	planner  plan.Planner
	runner   *syncrun.Runner
	importer *importer.Importer
	report   *report.Service
	tables   []string
}

func routes(cfg config.Config, log *slog.Logger, svc services) *chi.Mux {
	router := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	router.Use(corsHandler.Handler)
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", health.Health(log, svc.storage))

	router.Get("/api/orders/{table}", getorders.ListOrders(log, svc.storage, svc.tables))
	router.Get("/api/orders/{table}/{orderID}", getorders.GetOrder(log, svc.storage, svc.tables))

	router.Get("/api/report/excel", generate_excel.GenerateReportExcel(log, svc.report))

	adminRouter := chi.NewRouter()
	adminRouter.Use(auth.BasicAuth(cfg.AdminLogin, cfg.AdminPass))

	adminRouter.Post("/sync", run.SyncAll(log, svc.runner, cfg.Sync.Timeout))
	adminRouter.Get("/sync/plan", plan.Plan(log, svc.planner))
	adminRouter.Post("/sync/{table}", run.SyncTable(log, svc.runner, svc.tables, cfg.Sync.Timeout))
	adminRouter.Post("/import/excel", excel.ImportExcel(log, svc.importer, svc.runner, cfg.Sync.Timeout))

	router.Mount("/api/admin", adminRouter)

	return router
}
