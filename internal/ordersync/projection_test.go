package ordersync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-sync/internal/storage"
)

func TestDefaultRegistry(t *testing.T) {
	reg := MustDefaultRegistry()

	assert.Equal(t, []string{storage.TableSampleOrders, storage.TableBulkOrders}, reg.Tables())

	sample, ok := reg.Lookup(storage.TableSampleOrders)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{CategorySampleView, CategoryPrototype}, sample.Categories)
	assert.Equal(t, storage.OrderColumns, sample.Columns)

	bulk, ok := reg.Lookup(storage.TableBulkOrders)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{CategoryNewOrder, CategoryRenewal, CategoryPlainGarment, CategoryRevisedRenewal}, bulk.Categories)

	_, ok = reg.Lookup(storage.TableOriginalOrders)
	assert.False(t, ok)
}

func TestNewRegistry_Validation(t *testing.T) {
	cols := []string{"amount"}

	tests := []struct {
		name        string
		projections []Projection
		wantErr     error
	}{
		{
			name: "overlapping categories",
			projections: []Projection{
				{Table: "a_orders", Categories: []string{"x", "y"}, Columns: cols},
				{Table: "b_orders", Categories: []string{"y"}, Columns: cols},
			},
			wantErr: ErrOverlappingCategories,
		},
		{
			name: "duplicate table",
			projections: []Projection{
				{Table: "a_orders", Categories: []string{"x"}, Columns: cols},
				{Table: "a_orders", Categories: []string{"y"}, Columns: cols},
			},
			wantErr: ErrDuplicateTable,
		},
		{
			name:        "empty categories",
			projections: []Projection{{Table: "a_orders", Columns: cols}},
			wantErr:     ErrEmptyProjection,
		},
		{
			name:        "bad table name",
			projections: []Projection{{Table: "a-orders", Categories: []string{"x"}, Columns: cols}},
			wantErr:     ErrInvalidIdentifier,
		},
		{
			name:        "bad column name",
			projections: []Projection{{Table: "a_orders", Categories: []string{"x"}, Columns: []string{"amount; --"}}},
			wantErr:     ErrInvalidIdentifier,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.projections...)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRegistry_ReturnsCopies(t *testing.T) {
	reg := MustDefaultRegistry()

	p, _ := reg.Lookup(storage.TableSampleOrders)
	p.Categories[0] = "changed"

	again, _ := reg.Lookup(storage.TableSampleOrders)
	assert.Equal(t, CategorySampleView, again.Categories[0])
}
