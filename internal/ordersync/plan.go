package ordersync

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// PlanStats is what a sync call would do right now.
type PlanStats struct {
	WouldInsert int64 `json:"would_insert"`
	WouldUpdate int64 `json:"would_update"`
}

// Plan counts, per registered projection, the rows a sync would insert and
// update. It writes nothing: the counts run in a read-only transaction that
// is always rolled back.
func (e *Engine) Plan(ctx context.Context) (map[string]PlanStats, error) {
	const op = "ordersync.Plan"

	sess, release, err := e.src.acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: acquire session: %w", op, err)
	}
	defer func() {
		if err := release(); err != nil {
			e.log.Warn("failed to close session", slog.String("op", op), slog.String("error", err.Error()))
		}
	}()

	opts := &sql.TxOptions{ReadOnly: true}
	if e.txOpts != nil {
		opts.Isolation = e.txOpts.Isolation
	}

	tx, err := sess.Begin(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: begin transaction: %w", op, err)
	}
	defer tx.Rollback()

	out := make(map[string]PlanStats, len(e.reg.projections))
	for _, p := range e.reg.Projections() {
		var ps PlanStats

		if err := e.count(ctx, tx, countMissingStmt(p), &ps.WouldInsert); err != nil {
			return nil, fmt.Errorf("%s: %s: count missing: %w", op, p.Table, err)
		}
		if err := e.count(ctx, tx, countStaleStmt(p), &ps.WouldUpdate); err != nil {
			return nil, fmt.Errorf("%s: %s: count stale: %w", op, p.Table, err)
		}

		out[p.Table] = ps
	}

	return out, nil
}

func (e *Engine) count(ctx context.Context, tx Tx, st statement, dst *int64) error {
	return tx.QueryRowContext(ctx, e.dialect.Rebind(st.query), st.args...).Scan(dst)
}
