package ordersync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"order-sync/internal/storage"
	"order-sync/internal/storage/dialect"
)

const (
	phaseSession = "session"
	phaseBegin   = "begin"
	phaseUpdate  = "update"
	phaseInsert  = "insert"
	phaseCommit  = "commit"
)

// Stats are the counters of one sync call.
type Stats struct {
	Inserted int64 `json:"inserted"`
	Updated  int64 `json:"updated"`
	Errors   int   `json:"errors"`
}

// Engine reconciles derived order tables against original_orders.
//
// Every sync call runs an update phase and an insert phase in a single
// transaction. Failures are rolled back, logged and reported as Errors=1;
// they are never returned to the caller.
type Engine struct {
	src     Source
	dialect dialect.Dialect
	reg     *Registry
	log     *slog.Logger
	now     func() time.Time
	txOpts  *sql.TxOptions
}

type Option func(*Engine)

func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithClock sets the clock used for updated_at in the update phase.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithTxOptions passes the caller's isolation level to every transaction.
func WithTxOptions(opts *sql.TxOptions) Option {
	return func(e *Engine) {
		e.txOpts = opts
	}
}

func New(src Source, d dialect.Dialect, reg *Registry, opts ...Option) *Engine {
	e := &Engine{
		src:     src,
		dialect: d,
		reg:     reg,
		log:     slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Registry() *Registry {
	return e.reg
}

// Tables lists the registered derived tables in sync order.
func (e *Engine) Tables() []string {
	return e.reg.Tables()
}

// OwnsSessions reports whether each call runs on its own session, which makes
// calls for different tables safe to run concurrently.
func (e *Engine) OwnsSessions() bool {
	return e.src.Owned()
}

// SyncCategory runs the two-phase reconciliation for one projection.
func (e *Engine) SyncCategory(ctx context.Context, p Projection) Stats {
	const op = "ordersync.SyncCategory"

	log := e.log.With(
		slog.String("op", op),
		slog.String("table", p.Table),
	)

	if err := validate(p); err != nil {
		log.Error("sync rejected", slog.String("error", err.Error()))
		return Stats{Errors: 1}
	}

	log.Debug("sync started", slog.Any("categories", p.Categories))
	start := time.Now()

	stats, phase, err := e.syncCategory(ctx, p)
	if err != nil {
		log.Error("sync failed, changes rolled back",
			slog.String("phase", phase),
			slog.String("error", err.Error()),
			slog.String("error_kind", string(dialect.Classify(err))),
		)
		return Stats{Errors: 1}
	}

	log.Info("sync finished",
		slog.Int64("inserted", stats.Inserted),
		slog.Int64("updated", stats.Updated),
		slog.Duration("took", time.Since(start)),
	)
	return stats
}

func (e *Engine) syncCategory(ctx context.Context, p Projection) (Stats, string, error) {
	sess, release, err := e.src.acquire(ctx)
	if err != nil {
		return Stats{}, phaseSession, fmt.Errorf("acquire session: %w", err)
	}
	defer func() {
		if err := release(); err != nil {
			e.log.Warn("failed to close session", slog.String("table", p.Table), slog.String("error", err.Error()))
		}
	}()

	tx, err := sess.Begin(ctx, e.txOpts)
	if err != nil {
		return Stats{}, phaseBegin, fmt.Errorf("begin transaction: %w", err)
	}

	upd := updateStmt(e.dialect, p)
	updated, err := e.exec(ctx, tx, upd, e.now().UTC())
	if err != nil {
		e.rollback(tx, p.Table)
		return Stats{}, phaseUpdate, fmt.Errorf("update existing rows: %w", err)
	}

	inserted, err := e.exec(ctx, tx, insertStmt(p))
	if err != nil {
		e.rollback(tx, p.Table)
		return Stats{}, phaseInsert, fmt.Errorf("insert missing rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		e.rollback(tx, p.Table)
		return Stats{}, phaseCommit, fmt.Errorf("commit: %w", err)
	}

	return Stats{Inserted: inserted, Updated: updated}, "", nil
}

// exec runs st with lead bound before the statement's own arguments and
// returns the affected row count.
func (e *Engine) exec(ctx context.Context, tx Tx, st statement, lead ...any) (int64, error) {
	args := append(lead, st.args...)
	res, err := tx.ExecContext(ctx, e.dialect.Rebind(st.query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (e *Engine) rollback(tx Tx, table string) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		e.log.Error("rollback failed", slog.String("table", table), slog.String("error", err.Error()))
	}
}

// SyncTable syncs the registered projection for table.
func (e *Engine) SyncTable(ctx context.Context, table string) (Stats, error) {
	p, ok := e.reg.Lookup(table)
	if !ok {
		return Stats{}, fmt.Errorf("ordersync.SyncTable: %q: %w", table, ErrUnknownTable)
	}
	return e.SyncCategory(ctx, p), nil
}

// SyncSample syncs sample-type orders into sample_orders.
func (e *Engine) SyncSample(ctx context.Context) Stats {
	return e.syncRegistered(ctx, storage.TableSampleOrders)
}

// SyncBulk syncs bulk-type orders into bulk_orders.
func (e *Engine) SyncBulk(ctx context.Context) Stats {
	return e.syncRegistered(ctx, storage.TableBulkOrders)
}

func (e *Engine) syncRegistered(ctx context.Context, table string) Stats {
	st, err := e.SyncTable(ctx, table)
	if err != nil {
		e.log.Error("sync skipped", slog.String("table", table), slog.String("error", err.Error()))
		return Stats{Errors: 1}
	}
	return st
}

// SyncAll syncs every registered projection in order. Each table is its own
// transaction, so one failure does not affect the others.
func (e *Engine) SyncAll(ctx context.Context) map[string]Stats {
	out := make(map[string]Stats, len(e.reg.projections))
	for _, p := range e.reg.Projections() {
		out[p.Table] = e.SyncCategory(ctx, p)
	}
	return out
}
