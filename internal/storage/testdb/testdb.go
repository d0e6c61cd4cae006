// Package testdb opens migrated in-memory SQLite databases for tests.
package testdb

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"order-sync/internal/storage"
	"order-sync/internal/storage/dialect"
	"order-sync/internal/storage/schema"
)

// Open returns a fresh database with original_orders and the given derived
// tables. The pool is pinned to one connection so the in-memory database
// outlives individual queries.
func Open(t testing.TB, derived ...string) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	gdb, err := schema.Gorm(db, dialect.SQLite)
	require.NoError(t, err)
	require.NoError(t, schema.Migrate(gdb, derived...))

	return db
}

// Original is the subset of an original order most tests care about.
type Original struct {
	ID        string
	OrderType string
	Amount    string
	UpdatedAt time.Time
}

func InsertOriginal(t testing.TB, db *sql.DB, o Original) {
	t.Helper()

	var orderType any
	if o.OrderType != "" {
		orderType = o.OrderType
	}
	var amount any
	if o.Amount != "" {
		amount = o.Amount
	}

	_, err := db.Exec(
		"INSERT INTO "+storage.TableOriginalOrders+" (order_id, order_type, amount, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		o.ID, orderType, amount, o.UpdatedAt.UTC(), o.UpdatedAt.UTC(),
	)
	require.NoError(t, err)
}

// UpdateOriginal sets amount and updated_at of an existing original order.
func UpdateOriginal(t testing.TB, db *sql.DB, id, amount string, updatedAt time.Time) {
	t.Helper()

	res, err := db.Exec(
		"UPDATE "+storage.TableOriginalOrders+" SET amount = ?, updated_at = ? WHERE order_id = ?",
		amount, updatedAt.UTC(), id,
	)
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
}

func Count(t testing.TB, db *sql.DB, table string) int {
	t.Helper()

	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}
