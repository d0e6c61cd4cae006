package ordersync

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"order-sync/internal/storage"
	"order-sync/internal/storage/dialect"
	"order-sync/internal/storage/testdb"
)

var (
	t1        = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)
	t2        = time.Date(2024, 2, 10, 9, 0, 0, 0, time.UTC)
	syncClock = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// connProvider hands out pooled connections and counts how many were closed.
type connProvider struct {
	db     *sql.DB
	opened atomic.Int32
	closed atomic.Int32
}

func (p *connProvider) Session(ctx context.Context) (Session, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	p.opened.Add(1)
	return &countingSession{Session: NewConnSession(conn), closed: &p.closed}, nil
}

type countingSession struct {
	Session
	closed *atomic.Int32
}

func (s *countingSession) Close() error {
	s.closed.Add(1)
	return s.Session.Close()
}

type mockSession struct {
	mock.Mock
}

func (m *mockSession) Begin(ctx context.Context, opts *sql.TxOptions) (Tx, error) {
	args := m.Called(ctx, opts)
	tx, _ := args.Get(0).(Tx)
	return tx, args.Error(1)
}

func (m *mockSession) Close() error {
	return m.Called().Error(0)
}

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Session(ctx context.Context) (Session, error) {
	args := m.Called(ctx)
	s, _ := args.Get(0).(Session)
	return s, args.Error(1)
}

func newTestEngine(t *testing.T, db *sql.DB) (*Engine, *connProvider) {
	t.Helper()

	p := &connProvider{db: db}
	e := New(Own(p), dialect.SQLite, MustDefaultRegistry(),
		WithLogger(discardLogger()),
		WithClock(func() time.Time { return syncClock }),
	)
	return e, p
}

func sampleProjection(t *testing.T, e *Engine) Projection {
	t.Helper()
	p, ok := e.Registry().Lookup(storage.TableSampleOrders)
	require.True(t, ok)
	return p
}

func derivedAmount(t *testing.T, db *sql.DB, table, id string) string {
	t.Helper()
	var amount decimal.NullDecimal
	require.NoError(t, db.QueryRow("SELECT amount FROM "+table+" WHERE order_id = ?", id).Scan(&amount))
	require.True(t, amount.Valid)
	return amount.Decimal.String()
}

func derivedUpdatedAt(t *testing.T, db *sql.DB, table, id string) time.Time {
	t.Helper()
	var ts time.Time
	require.NoError(t, db.QueryRow("SELECT updated_at FROM "+table+" WHERE order_id = ?", id).Scan(&ts))
	return ts.UTC()
}

func TestSyncCategory_InsertThenUpdate(t *testing.T) {
	db := testdb.Open(t, storage.TableSampleOrders, storage.TableBulkOrders)
	e, _ := newTestEngine(t, db)
	ctx := context.Background()
	p := sampleProjection(t, e)

	testdb.InsertOriginal(t, db, testdb.Original{ID: "1001", OrderType: CategoryPrototype, Amount: "500", UpdatedAt: t1})

	st := e.SyncCategory(ctx, p)
	assert.Equal(t, Stats{Inserted: 1}, st)
	assert.Equal(t, "500", derivedAmount(t, db, storage.TableSampleOrders, "1001"))
	assert.Equal(t, t1, derivedUpdatedAt(t, db, storage.TableSampleOrders, "1001"))

	testdb.UpdateOriginal(t, db, "1001", "750", t2)

	st = e.SyncCategory(ctx, p)
	assert.Equal(t, Stats{Updated: 1}, st)
	assert.Equal(t, "750", derivedAmount(t, db, storage.TableSampleOrders, "1001"))
	assert.Equal(t, syncClock, derivedUpdatedAt(t, db, storage.TableSampleOrders, "1001"))
	assert.Equal(t, 1, testdb.Count(t, db, storage.TableSampleOrders))
}

func TestSyncCategory_Idempotent(t *testing.T) {
	db := testdb.Open(t, storage.TableSampleOrders, storage.TableBulkOrders)
	e, _ := newTestEngine(t, db)
	ctx := context.Background()
	p := sampleProjection(t, e)

	testdb.InsertOriginal(t, db, testdb.Original{ID: "A1", OrderType: CategorySampleView, Amount: "10", UpdatedAt: t1})
	testdb.InsertOriginal(t, db, testdb.Original{ID: "A2", OrderType: CategoryPrototype, Amount: "20", UpdatedAt: t1})

	assert.Equal(t, Stats{Inserted: 2}, e.SyncCategory(ctx, p))
	assert.Equal(t, Stats{}, e.SyncCategory(ctx, p))
	assert.Equal(t, Stats{}, e.SyncCategory(ctx, p))
	assert.Equal(t, 2, testdb.Count(t, db, storage.TableSampleOrders))
}

func TestSyncCategory_UpdateGating(t *testing.T) {
	db := testdb.Open(t, storage.TableSampleOrders, storage.TableBulkOrders)
	e, _ := newTestEngine(t, db)
	ctx := context.Background()
	p := sampleProjection(t, e)

	testdb.InsertOriginal(t, db, testdb.Original{ID: "EQ", OrderType: CategoryPrototype, Amount: "1", UpdatedAt: t2})
	testdb.InsertOriginal(t, db, testdb.Original{ID: "OLD", OrderType: CategoryPrototype, Amount: "2", UpdatedAt: t1})
	testdb.InsertOriginal(t, db, testdb.Original{ID: "NULL", OrderType: CategoryPrototype, Amount: "3", UpdatedAt: t1})

	insert := "INSERT INTO sample_orders (order_id, amount, created_at, updated_at) VALUES (?, ?, ?, ?)"
	_, err := db.Exec(insert, "EQ", "100", t2, t2)
	require.NoError(t, err)
	_, err = db.Exec(insert, "OLD", "200", t2, t2)
	require.NoError(t, err)
	_, err = db.Exec(insert, "NULL", "300", t2, nil)
	require.NoError(t, err)

	st := e.SyncCategory(ctx, p)
	assert.Equal(t, Stats{Updated: 1}, st)

	assert.Equal(t, "100", derivedAmount(t, db, storage.TableSampleOrders, "EQ"))
	assert.Equal(t, "200", derivedAmount(t, db, storage.TableSampleOrders, "OLD"))
	assert.Equal(t, "3", derivedAmount(t, db, storage.TableSampleOrders, "NULL"))
	assert.Equal(t, syncClock, derivedUpdatedAt(t, db, storage.TableSampleOrders, "NULL"))
}

func TestSyncAll_RoutesByCategory(t *testing.T) {
	db := testdb.Open(t, storage.TableSampleOrders, storage.TableBulkOrders)
	e, _ := newTestEngine(t, db)

	testdb.InsertOriginal(t, db, testdb.Original{ID: "S1", OrderType: CategorySampleView, Amount: "1", UpdatedAt: t1})
	testdb.InsertOriginal(t, db, testdb.Original{ID: "B1", OrderType: CategoryNewOrder, Amount: "2", UpdatedAt: t1})
	testdb.InsertOriginal(t, db, testdb.Original{ID: "B2", OrderType: CategoryRevisedRenewal, Amount: "3", UpdatedAt: t1})
	testdb.InsertOriginal(t, db, testdb.Original{ID: "X1", OrderType: "其他", Amount: "4", UpdatedAt: t1})
	testdb.InsertOriginal(t, db, testdb.Original{ID: "X2", Amount: "5", UpdatedAt: t1})

	res := e.SyncAll(context.Background())

	assert.Equal(t, map[string]Stats{
		storage.TableSampleOrders: {Inserted: 1},
		storage.TableBulkOrders:   {Inserted: 2},
	}, res)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sample_orders s JOIN bulk_orders b ON s.order_id = b.order_id`).Scan(&n))
	assert.Zero(t, n)

	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sample_orders WHERE order_id IN ('X1', 'X2')`).Scan(&n))
	assert.Zero(t, n)
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM bulk_orders WHERE order_id IN ('X1', 'X2')`).Scan(&n))
	assert.Zero(t, n)
}

func TestSyncCategory_OrderTypeChangeKeepsOldRow(t *testing.T) {
	db := testdb.Open(t, storage.TableSampleOrders, storage.TableBulkOrders)
	e, _ := newTestEngine(t, db)
	ctx := context.Background()

	testdb.InsertOriginal(t, db, testdb.Original{ID: "M1", OrderType: CategoryPrototype, Amount: "1", UpdatedAt: t1})
	assert.Equal(t, Stats{Inserted: 1}, e.SyncSample(ctx))

	_, err := db.Exec("UPDATE original_orders SET order_type = ?, updated_at = ? WHERE order_id = ?", CategoryNewOrder, t2, "M1")
	require.NoError(t, err)

	assert.Equal(t, Stats{}, e.SyncSample(ctx))
	assert.Equal(t, Stats{Inserted: 1}, e.SyncBulk(ctx))
	assert.Equal(t, 1, testdb.Count(t, db, storage.TableSampleOrders))
	assert.Equal(t, 1, testdb.Count(t, db, storage.TableBulkOrders))
}

func TestSyncCategory_RollsBackOnInsertFailure(t *testing.T) {
	db := testdb.Open(t, storage.TableSampleOrders, storage.TableBulkOrders)
	e, p := newTestEngine(t, db)
	ctx := context.Background()
	proj := sampleProjection(t, e)

	testdb.InsertOriginal(t, db, testdb.Original{ID: "OK", OrderType: CategoryPrototype, Amount: "10", UpdatedAt: t1})
	require.Equal(t, Stats{Inserted: 1}, e.SyncCategory(ctx, proj))

	testdb.UpdateOriginal(t, db, "OK", "99", t2)
	testdb.InsertOriginal(t, db, testdb.Original{ID: "BAD", OrderType: CategoryPrototype, Amount: "1", UpdatedAt: t2})

	_, err := db.Exec(`CREATE TRIGGER reject_bad BEFORE INSERT ON sample_orders
		WHEN NEW.order_id = 'BAD'
		BEGIN SELECT RAISE(ABORT, 'rejected'); END`)
	require.NoError(t, err)

	st := e.SyncCategory(ctx, proj)
	assert.Equal(t, Stats{Errors: 1}, st)

	assert.Equal(t, "10", derivedAmount(t, db, storage.TableSampleOrders, "OK"))
	assert.Equal(t, t1, derivedUpdatedAt(t, db, storage.TableSampleOrders, "OK"))
	assert.Equal(t, 1, testdb.Count(t, db, storage.TableSampleOrders))
	assert.Equal(t, p.opened.Load(), p.closed.Load())
}

func TestSyncCategory_FailureIsolatedPerTable(t *testing.T) {
	db := testdb.Open(t, storage.TableSampleOrders, storage.TableBulkOrders)
	e, _ := newTestEngine(t, db)

	testdb.InsertOriginal(t, db, testdb.Original{ID: "BAD", OrderType: CategoryPrototype, Amount: "1", UpdatedAt: t1})
	testdb.InsertOriginal(t, db, testdb.Original{ID: "B1", OrderType: CategoryRenewal, Amount: "1", UpdatedAt: t1})

	_, err := db.Exec(`CREATE TRIGGER reject_bad BEFORE INSERT ON sample_orders
		BEGIN SELECT RAISE(ABORT, 'rejected'); END`)
	require.NoError(t, err)

	res := e.SyncAll(context.Background())
	assert.Equal(t, Stats{Errors: 1}, res[storage.TableSampleOrders])
	assert.Equal(t, Stats{Inserted: 1}, res[storage.TableBulkOrders])
}

func TestSyncCategory_MissingTableReportsError(t *testing.T) {
	db := testdb.Open(t, storage.TableSampleOrders)
	e, p := newTestEngine(t, db)

	testdb.InsertOriginal(t, db, testdb.Original{ID: "B1", OrderType: CategoryRenewal, Amount: "1", UpdatedAt: t1})

	assert.Equal(t, Stats{Errors: 1}, e.SyncBulk(context.Background()))
	assert.Equal(t, int32(1), p.closed.Load())
}

func TestSyncCategory_InvalidProjection(t *testing.T) {
	db := testdb.Open(t, storage.TableSampleOrders)
	e, p := newTestEngine(t, db)

	st := e.SyncCategory(context.Background(), Projection{Table: "sample_orders; DROP TABLE x", Categories: []string{"a"}, Columns: []string{"amount"}})
	assert.Equal(t, Stats{Errors: 1}, st)
	assert.Zero(t, p.opened.Load())
}

func TestSyncCategory_CanceledContext(t *testing.T) {
	db := testdb.Open(t, storage.TableSampleOrders, storage.TableBulkOrders)
	e, p := newTestEngine(t, db)

	testdb.InsertOriginal(t, db, testdb.Original{ID: "1", OrderType: CategoryPrototype, Amount: "1", UpdatedAt: t1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, Stats{Errors: 1}, e.SyncSample(ctx))
	assert.Equal(t, 0, testdb.Count(t, db, storage.TableSampleOrders))
	assert.Equal(t, p.opened.Load(), p.closed.Load())
}

func TestSyncCategory_OwnedSessionClosedOnSuccess(t *testing.T) {
	db := testdb.Open(t, storage.TableSampleOrders, storage.TableBulkOrders)
	e, p := newTestEngine(t, db)

	e.SyncAll(context.Background())

	assert.Equal(t, int32(2), p.opened.Load())
	assert.Equal(t, int32(2), p.closed.Load())
}

func TestSyncCategory_OwnedSessionClosedOnFailure(t *testing.T) {
	sess := new(mockSession)
	sess.On("Begin", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))
	sess.On("Close").Return(nil).Once()

	prov := new(mockProvider)
	prov.On("Session", mock.Anything).Return(sess, nil).Once()

	e := New(Own(prov), dialect.SQLite, MustDefaultRegistry(), WithLogger(discardLogger()))

	assert.Equal(t, Stats{Errors: 1}, e.SyncSample(context.Background()))
	sess.AssertExpectations(t)
	prov.AssertExpectations(t)
}

func TestSyncCategory_ProviderFailure(t *testing.T) {
	prov := new(mockProvider)
	prov.On("Session", mock.Anything).Return(nil, errors.New("pool exhausted"))

	e := New(Own(prov), dialect.SQLite, MustDefaultRegistry(), WithLogger(discardLogger()))

	assert.Equal(t, Stats{Errors: 1}, e.SyncBulk(context.Background()))
}

func TestSyncCategory_BorrowedSessionNeverClosed(t *testing.T) {
	sess := new(mockSession)
	sess.On("Begin", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

	e := New(Borrow(sess), dialect.SQLite, MustDefaultRegistry(), WithLogger(discardLogger()))

	assert.Equal(t, Stats{Errors: 1}, e.SyncSample(context.Background()))
	sess.AssertNotCalled(t, "Close")
}

func TestSyncCategory_BorrowedSessionSuccess(t *testing.T) {
	db := testdb.Open(t, storage.TableSampleOrders, storage.TableBulkOrders)
	testdb.InsertOriginal(t, db, testdb.Original{ID: "1", OrderType: CategoryRenewal, Amount: "1", UpdatedAt: t1})

	e := New(Borrow(NewDBSession(db)), dialect.SQLite, MustDefaultRegistry(), WithLogger(discardLogger()))

	assert.Equal(t, Stats{Inserted: 1}, e.SyncBulk(context.Background()))
	assert.False(t, e.OwnsSessions())
	// the borrowed pool is still usable
	require.NoError(t, db.Ping())
}

func TestSource_ZeroValue(t *testing.T) {
	e := New(Source{}, dialect.SQLite, MustDefaultRegistry(), WithLogger(discardLogger()))
	assert.Equal(t, Stats{Errors: 1}, e.SyncSample(context.Background()))

	_, err := e.Plan(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSyncTable_UnknownTable(t *testing.T) {
	e := New(Source{}, dialect.SQLite, MustDefaultRegistry(), WithLogger(discardLogger()))

	_, err := e.SyncTable(context.Background(), "orders")
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestPlan(t *testing.T) {
	db := testdb.Open(t, storage.TableSampleOrders, storage.TableBulkOrders)
	e, p := newTestEngine(t, db)
	ctx := context.Background()

	testdb.InsertOriginal(t, db, testdb.Original{ID: "S1", OrderType: CategoryPrototype, Amount: "1", UpdatedAt: t1})
	testdb.InsertOriginal(t, db, testdb.Original{ID: "S2", OrderType: CategoryPrototype, Amount: "1", UpdatedAt: t1})
	testdb.InsertOriginal(t, db, testdb.Original{ID: "B1", OrderType: CategoryPlainGarment, Amount: "1", UpdatedAt: t1})
	require.Equal(t, Stats{Inserted: 2}, e.SyncSample(ctx))

	testdb.UpdateOriginal(t, db, "S1", "2", t2)
	testdb.InsertOriginal(t, db, testdb.Original{ID: "S3", OrderType: CategorySampleView, Amount: "1", UpdatedAt: t1})

	plan, err := e.Plan(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]PlanStats{
		storage.TableSampleOrders: {WouldInsert: 1, WouldUpdate: 1},
		storage.TableBulkOrders:   {WouldInsert: 1},
	}, plan)

	// planning writes nothing
	assert.Equal(t, 2, testdb.Count(t, db, storage.TableSampleOrders))
	assert.Equal(t, 0, testdb.Count(t, db, storage.TableBulkOrders))
	assert.Equal(t, p.opened.Load(), p.closed.Load())

	res := e.SyncAll(ctx)
	assert.Equal(t, Stats{Inserted: 1, Updated: 1}, res[storage.TableSampleOrders])
	assert.Equal(t, Stats{Inserted: 1}, res[storage.TableBulkOrders])
}

type closeErrProvider struct {
	db *sql.DB
}

func (p *closeErrProvider) Session(ctx context.Context) (Session, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	return &closeErrSession{Session: NewConnSession(conn)}, nil
}

type closeErrSession struct {
	Session
}

func (s *closeErrSession) Close() error {
	_ = s.Session.Close()
	return errors.New("connection reset")
}

func TestPlan_LogsSessionCloseError(t *testing.T) {
	db := testdb.Open(t, storage.TableSampleOrders, storage.TableBulkOrders)
	testdb.InsertOriginal(t, db, testdb.Original{ID: "S1", OrderType: CategoryPrototype, Amount: "1", UpdatedAt: t1})

	var logs bytes.Buffer
	e := New(Own(&closeErrProvider{db: db}), dialect.SQLite, MustDefaultRegistry(),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
	)

	plan, err := e.Plan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PlanStats{WouldInsert: 1}, plan[storage.TableSampleOrders])
	assert.Contains(t, logs.String(), "failed to close session")
	assert.Contains(t, logs.String(), "connection reset")
}
