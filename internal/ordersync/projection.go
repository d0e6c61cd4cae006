package ordersync

import (
	"errors"
	"fmt"

	"order-sync/internal/storage"
	"order-sync/internal/storage/dialect"
)

// Order type labels as they are entered in the source system.
const (
	CategorySampleView     = "纯衣看样"
	CategoryPrototype      = "打样单"
	CategoryNewOrder       = "新订单"
	CategoryRenewal        = "续订单"
	CategoryPlainGarment   = "纯衣单"
	CategoryRevisedRenewal = "改版续订"
)

var (
	ErrEmptyProjection       = errors.New("projection has no table or categories")
	ErrInvalidIdentifier     = errors.New("invalid sql identifier")
	ErrDuplicateTable        = errors.New("projection table declared twice")
	ErrOverlappingCategories = errors.New("category routed to more than one table")
	ErrUnknownTable          = storage.ErrUnknownTable
)

// Projection declares one derived table: where rows go, which order types
// route there, and which business columns are copied.
type Projection struct {
	Table      string
	Categories []string
	Columns    []string
}

// DefaultProjections returns the sample and bulk projections.
func DefaultProjections() []Projection {
	return []Projection{
		{
			Table:      storage.TableSampleOrders,
			Categories: []string{CategorySampleView, CategoryPrototype},
			Columns:    storage.OrderColumns,
		},
		{
			Table:      storage.TableBulkOrders,
			Categories: []string{CategoryNewOrder, CategoryRenewal, CategoryPlainGarment, CategoryRevisedRenewal},
			Columns:    storage.OrderColumns,
		},
	}
}

// Registry is a validated, ordered set of projections.
type Registry struct {
	projections []Projection
	byTable     map[string]int
}

// NewRegistry validates the projections once, at startup. Category sets must
// be pairwise disjoint so an order is projected into at most one table.
func NewRegistry(projections ...Projection) (*Registry, error) {
	const op = "ordersync.NewRegistry"

	reg := &Registry{byTable: make(map[string]int, len(projections))}
	owner := make(map[string]string)

	for i, p := range projections {
		if err := validate(p); err != nil {
			return nil, fmt.Errorf("%s: projection #%d: %w", op, i, err)
		}
		if _, ok := reg.byTable[p.Table]; ok {
			return nil, fmt.Errorf("%s: %s: %w", op, p.Table, ErrDuplicateTable)
		}
		for _, cat := range p.Categories {
			if prev, ok := owner[cat]; ok {
				return nil, fmt.Errorf("%s: %q in %s and %s: %w", op, cat, prev, p.Table, ErrOverlappingCategories)
			}
			owner[cat] = p.Table
		}

		reg.byTable[p.Table] = len(reg.projections)
		reg.projections = append(reg.projections, clone(p))
	}

	return reg, nil
}

// MustDefaultRegistry panics if the built-in projections are inconsistent.
func MustDefaultRegistry() *Registry {
	reg, err := NewRegistry(DefaultProjections()...)
	if err != nil {
		panic(err)
	}
	return reg
}

func (r *Registry) Projections() []Projection {
	out := make([]Projection, len(r.projections))
	for i, p := range r.projections {
		out[i] = clone(p)
	}
	return out
}

func (r *Registry) Tables() []string {
	out := make([]string, len(r.projections))
	for i, p := range r.projections {
		out[i] = p.Table
	}
	return out
}

func (r *Registry) Lookup(table string) (Projection, bool) {
	i, ok := r.byTable[table]
	if !ok {
		return Projection{}, false
	}
	return clone(r.projections[i]), true
}

// validate checks a single projection. Table and column names end up in SQL
// text, so only plain lower-case identifiers are accepted.
func validate(p Projection) error {
	if p.Table == "" || len(p.Categories) == 0 || len(p.Columns) == 0 {
		return ErrEmptyProjection
	}
	if !dialect.ValidIdent(p.Table) {
		return fmt.Errorf("table %q: %w", p.Table, ErrInvalidIdentifier)
	}
	for _, c := range p.Columns {
		if !dialect.ValidIdent(c) {
			return fmt.Errorf("%s column %q: %w", p.Table, c, ErrInvalidIdentifier)
		}
	}
	return nil
}

func clone(p Projection) Projection {
	return Projection{
		Table:      p.Table,
		Categories: append([]string(nil), p.Categories...),
		Columns:    append([]string(nil), p.Columns...),
	}
}
