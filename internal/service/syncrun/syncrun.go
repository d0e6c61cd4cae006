package syncrun

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"order-sync/internal/ordersync"
)

type Engine interface {
	SyncTable(ctx context.Context, table string) (ordersync.Stats, error)
	Tables() []string
	OwnsSessions() bool
}

type Options struct {
	// Tables to sync; empty means every registered table.
	Tables   []string
	Parallel bool
}

// Report summarises one run over one or more derived tables.
type Report struct {
	RunID     string                     `json:"run_id"`
	StartedAt time.Time                  `json:"started_at"`
	Duration  time.Duration              `json:"duration"`
	Parallel  bool                       `json:"parallel"`
	Results   map[string]ordersync.Stats `json:"results"`
	Errors    int                        `json:"errors"`
}

func (r Report) Inserted() int64 {
	var n int64
	for _, st := range r.Results {
		n += st.Inserted
	}
	return n
}

func (r Report) Updated() int64 {
	var n int64
	for _, st := range r.Results {
		n += st.Updated
	}
	return n
}

type Runner struct {
	engine Engine
	log    *slog.Logger
}

func NewRunner(engine Engine, log *slog.Logger) *Runner {
	return &Runner{engine: engine, log: log}
}

// Run syncs the requested tables. Each table is its own transaction, so the
// report can mix successes and failures. Parallel is ignored unless the
// engine opens a session per call.
func (r *Runner) Run(ctx context.Context, opts Options) Report {
	const op = "service.syncrun.Run"

	tables := opts.Tables
	if len(tables) == 0 {
		tables = r.engine.Tables()
	}

	rep := Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Parallel:  opts.Parallel && r.engine.OwnsSessions() && len(tables) > 1,
		Results:   make(map[string]ordersync.Stats, len(tables)),
	}

	log := r.log.With(
		slog.String("op", op),
		slog.String("run_id", rep.RunID),
	)

	if opts.Parallel && !rep.Parallel && len(tables) > 1 {
		log.Warn("parallel run requested on a borrowed session, running sequentially")
	}

	var mu sync.Mutex
	record := func(table string, st ordersync.Stats) {
		mu.Lock()
		defer mu.Unlock()
		rep.Results[table] = st
		rep.Errors += st.Errors
	}

	if rep.Parallel {
		g, gCtx := errgroup.WithContext(ctx)
		for _, table := range tables {
			table := table
			g.Go(func() error {
				record(table, r.syncTable(gCtx, log, table))
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, table := range tables {
			record(table, r.syncTable(ctx, log, table))
		}
	}

	rep.Duration = time.Since(rep.StartedAt)

	log.Info("sync run finished",
		slog.Any("tables", tables),
		slog.Int64("inserted", rep.Inserted()),
		slog.Int64("updated", rep.Updated()),
		slog.Int("errors", rep.Errors),
		slog.Bool("parallel", rep.Parallel),
		slog.Duration("took", rep.Duration),
	)

	return rep
}

func (r *Runner) syncTable(ctx context.Context, log *slog.Logger, table string) ordersync.Stats {
	st, err := r.engine.SyncTable(ctx, table)
	if err != nil {
		kind := "database"
		if errors.Is(err, ordersync.ErrUnknownTable) {
			kind = "unknown_table"
		}
		log.Error("table skipped",
			slog.String("table", table),
			slog.String("error", err.Error()),
			slog.String("error_kind", kind),
		)
		return ordersync.Stats{Errors: 1}
	}
	return st
}
