package sqldb

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-sync/internal/storage"
	"order-sync/internal/storage/dialect"
	"order-sync/internal/storage/testdb"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	db := testdb.Open(t, storage.TableSampleOrders, storage.TableBulkOrders)
	return New(db, dialect.SQLite)
}

func strPtr(s string) *string { return &s }

func TestUpsertOriginalOrders(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	first := []storage.OriginalOrder{
		{OrderID: "1001", OrderFields: storage.OrderFields{OrderType: strPtr("打样单"), Amount: decimal.NewNullDecimal(decimal.NewFromInt(500))}},
		{OrderID: "1002", OrderFields: storage.OrderFields{OrderType: strPtr("新订单"), CustomerName: strPtr("Li")}},
	}

	st, err := s.UpsertOriginalOrders(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, UpsertStats{Inserted: 2}, st)

	var created, updated time.Time
	require.NoError(t, s.DB().QueryRow("SELECT created_at, updated_at FROM original_orders WHERE order_id = '1001'").Scan(&created, &updated))
	assert.Equal(t, created, updated)

	second := []storage.OriginalOrder{
		{OrderID: "1001", OrderFields: storage.OrderFields{OrderType: strPtr("打样单"), Amount: decimal.NewNullDecimal(decimal.NewFromInt(750))}},
		{OrderID: "1003", OrderFields: storage.OrderFields{OrderType: strPtr("续订单")}},
	}

	st, err = s.UpsertOriginalOrders(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, UpsertStats{Inserted: 1, Updated: 1}, st)

	n, err := s.CountRows(ctx, storage.TableOriginalOrders)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	var amount decimal.NullDecimal
	var after time.Time
	require.NoError(t, s.DB().QueryRow("SELECT amount, updated_at FROM original_orders WHERE order_id = '1001'").Scan(&amount, &after))
	assert.Equal(t, "750", amount.Decimal.String())
	assert.False(t, after.Before(updated))
}

func TestUpsertOriginalOrders_EmptyIDRollsBack(t *testing.T) {
	s := newTestStorage(t)

	_, err := s.UpsertOriginalOrders(context.Background(), []storage.OriginalOrder{
		{OrderID: "1"},
		{OrderID: ""},
	})
	assert.ErrorIs(t, err, ErrEmptyOrderID)

	n, err := s.CountRows(context.Background(), storage.TableOriginalOrders)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDerivedReads(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	ts := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	for _, id := range []string{"B", "A", "C"} {
		_, err := s.DB().Exec(
			"INSERT INTO sample_orders (order_id, customer_name, quantity, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
			id, "customer "+id, 3, ts, ts,
		)
		require.NoError(t, err)
	}

	page, err := s.ListDerived(ctx, storage.TableSampleOrders, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "A", page[0].OrderID)
	assert.Equal(t, "B", page[1].OrderID)

	page, err = s.ListDerived(ctx, storage.TableSampleOrders, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "C", page[0].OrderID)

	o, err := s.GetDerived(ctx, storage.TableSampleOrders, "B")
	require.NoError(t, err)
	require.NotNil(t, o.CustomerName)
	assert.Equal(t, "customer B", *o.CustomerName)
	require.NotNil(t, o.Quantity)
	assert.Equal(t, 3, *o.Quantity)
	assert.Nil(t, o.OrderType)
	assert.False(t, o.Amount.Valid)
	require.NotNil(t, o.UpdatedAt)
	assert.True(t, ts.Equal(*o.UpdatedAt))

	_, err = s.GetDerived(ctx, storage.TableSampleOrders, "Z")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.GetDerived(ctx, "sample_orders WHERE 1=1", "A")
	assert.ErrorIs(t, err, storage.ErrUnknownTable)

	_, err = s.ListDerived(ctx, "x;drop", 1, 0)
	assert.ErrorIs(t, err, storage.ErrUnknownTable)
}

func TestSession_ReturnsConnectionOnClose(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	sess, err := s.Session(ctx)
	require.NoError(t, err)

	tx, err := sess.Begin(ctx, nil)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	require.NoError(t, sess.Close())

	// the pool holds a single connection, so this blocks if it leaked
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, s.Ping(ctx))
}
