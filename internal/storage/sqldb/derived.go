package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"order-sync/internal/storage"
	"order-sync/internal/storage/dialect"
)

const defaultListLimit = 100

func selectDerived(table string) string {
	return "SELECT order_id, " + strings.Join(storage.OrderColumns, ", ") + ", created_at, updated_at FROM " + table
}

func scanDerived(row interface{ Scan(...any) error }) (*storage.DerivedOrder, error) {
	var o storage.DerivedOrder

	dest := append([]any{&o.OrderID}, o.OrderFields.Dest()...)
	dest = append(dest, &o.CreatedAt, &o.UpdatedAt)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &o, nil
}

// ListDerived returns a page of a derived table ordered by order_id.
func (s *Storage) ListDerived(ctx context.Context, table string, limit, offset int) ([]*storage.DerivedOrder, error) {
	const op = "storage.sqldb.ListDerived"

	if !dialect.ValidIdent(table) {
		return nil, fmt.Errorf("%s: %q: %w", op, table, storage.ErrUnknownTable)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	stmt := selectDerived(table) + " ORDER BY order_id LIMIT ? OFFSET ?"

	rows, err := s.db.QueryContext(ctx, s.dialect.Rebind(stmt), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: query %s: %w", op, table, err)
	}
	defer rows.Close()

	orders := make([]*storage.DerivedOrder, 0, limit)
	for rows.Next() {
		o, err := scanDerived(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return orders, nil
}

func (s *Storage) GetDerived(ctx context.Context, table, orderID string) (*storage.DerivedOrder, error) {
	const op = "storage.sqldb.GetDerived"

	if !dialect.ValidIdent(table) {
		return nil, fmt.Errorf("%s: %q: %w", op, table, storage.ErrUnknownTable)
	}

	stmt := selectDerived(table) + " WHERE order_id = ?"

	o, err := scanDerived(s.db.QueryRowContext(ctx, s.dialect.Rebind(stmt), orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %s/%s: %w", op, table, orderID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return o, nil
}

// CountRows counts the rows of original_orders or a derived table.
func (s *Storage) CountRows(ctx context.Context, table string) (int64, error) {
	const op = "storage.sqldb.CountRows"

	if !dialect.ValidIdent(table) {
		return 0, fmt.Errorf("%s: %q: %w", op, table, storage.ErrUnknownTable)
	}

	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %s: %w", op, table, err)
	}

	return n, nil
}
