package ordersync

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"order-sync/internal/storage/dialect"
)

var tinyProjection = Projection{
	Table:      "sample_orders",
	Categories: []string{"a", "b"},
	Columns:    []string{"amount", "notes"},
}

func TestUpdateStmt(t *testing.T) {
	tests := []struct {
		name    string
		dialect dialect.Dialect
		want    string
	}{
		{
			name:    "mysql joins",
			dialect: dialect.MySQL,
			want: "UPDATE sample_orders d JOIN original_orders o ON d.order_id = o.order_id " +
				"SET d.amount = o.amount, d.notes = o.notes, d.updated_at = ? " +
				"WHERE o.order_type IN (?, ?) AND (o.updated_at > d.updated_at OR d.updated_at IS NULL)",
		},
		{
			name:    "sqlite update from",
			dialect: dialect.SQLite,
			want: "UPDATE sample_orders SET amount = o.amount, notes = o.notes, updated_at = ? " +
				"FROM original_orders o WHERE sample_orders.order_id = o.order_id AND o.order_type IN (?, ?) " +
				"AND (o.updated_at > sample_orders.updated_at OR sample_orders.updated_at IS NULL)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := updateStmt(tt.dialect, tinyProjection)
			assert.Equal(t, tt.want, st.query)
			assert.Equal(t, []any{"a", "b"}, st.args)
		})
	}
}

func TestUpdateStmt_PostgresBinds(t *testing.T) {
	st := updateStmt(dialect.Postgres, tinyProjection)
	q := dialect.Postgres.Rebind(st.query)

	assert.Contains(t, q, "updated_at = $1 FROM original_orders o")
	assert.Contains(t, q, "o.order_type IN ($2, $3)")
	assert.NotContains(t, q, "?")
}

func TestInsertStmt(t *testing.T) {
	st := insertStmt(tinyProjection)

	assert.Equal(t,
		"INSERT INTO sample_orders (order_id, amount, notes, created_at, updated_at) "+
			"SELECT o.order_id, o.amount, o.notes, o.created_at, o.updated_at FROM original_orders o "+
			"WHERE o.order_type IN (?, ?) AND NOT EXISTS (SELECT 1 FROM sample_orders d WHERE d.order_id = o.order_id)",
		st.query)
	assert.Equal(t, []any{"a", "b"}, st.args)
}

func TestCountStmts_SharePredicates(t *testing.T) {
	stale := countStaleStmt(tinyProjection).query
	missing := countMissingStmt(tinyProjection).query

	assert.True(t, strings.HasSuffix(stale, "(o.updated_at > d.updated_at OR d.updated_at IS NULL)"))
	ins := insertStmt(tinyProjection).query
	assert.True(t, strings.HasSuffix(missing, ins[strings.Index(ins, " WHERE "):]))
}
