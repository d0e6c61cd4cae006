package sqldb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"order-sync/internal/storage"
	"order-sync/internal/storage/dialect"
)

var ErrEmptyOrderID = errors.New("order id is empty")

// UpsertStats counts the source rows written by one import.
type UpsertStats struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

var (
	updateOriginalStmt = "UPDATE " + storage.TableOriginalOrders + " SET " +
		strings.Join(storage.OrderColumns, " = ?, ") + " = ?, updated_at = ? WHERE order_id = ?"

	insertOriginalStmt = "INSERT INTO " + storage.TableOriginalOrders +
		" (order_id, " + strings.Join(storage.OrderColumns, ", ") + ", created_at, updated_at) VALUES " +
		dialect.In(len(storage.OrderColumns)+3)
)

// UpsertOriginalOrders writes orders into original_orders in one transaction.
// An existing row is overwritten and gets a fresh updated_at; a new row gets
// created_at and updated_at set to now.
func (s *Storage) UpsertOriginalOrders(ctx context.Context, orders []storage.OriginalOrder) (UpsertStats, error) {
	const op = "storage.sqldb.UpsertOriginalOrders"

	var stats UpsertStats
	if len(orders) == 0 {
		return stats, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("%s: begin: %w", op, err)
	}
	defer tx.Rollback()

	update := s.dialect.Rebind(updateOriginalStmt)
	insert := s.dialect.Rebind(insertOriginalStmt)
	now := time.Now().UTC()

	for i := range orders {
		o := &orders[i]
		if o.OrderID == "" {
			return UpsertStats{}, fmt.Errorf("%s: row %d: %w", op, i, ErrEmptyOrderID)
		}

		values := o.OrderFields.Values()

		args := append(append([]any{}, values...), now, o.OrderID)
		res, err := tx.ExecContext(ctx, update, args...)
		if err != nil {
			return UpsertStats{}, fmt.Errorf("%s: update %s: %w", op, o.OrderID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return UpsertStats{}, fmt.Errorf("%s: %w", op, err)
		}
		if n > 0 {
			stats.Updated++
			continue
		}

		args = append(append([]any{o.OrderID}, values...), now, now)
		if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
			return UpsertStats{}, fmt.Errorf("%s: insert %s: %w", op, o.OrderID, err)
		}
		stats.Inserted++
	}

	if err := tx.Commit(); err != nil {
		return UpsertStats{}, fmt.Errorf("%s: commit: %w", op, err)
	}

	return stats, nil
}
