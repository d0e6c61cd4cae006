package ordersync

import (
	"strings"

	"order-sync/internal/storage"
	"order-sync/internal/storage/dialect"
)

// statement is a query in ? bind syntax plus the arguments that follow the
// leading ones supplied at execution time.
type statement struct {
	query string
	args  []any
}

func categoryArgs(p Projection) []any {
	args := make([]any, len(p.Categories))
	for i, c := range p.Categories {
		args[i] = c
	}
	return args
}

// updateStmt overwrites stale derived rows from original_orders. The first
// bind argument is the new updated_at, followed by the category labels.
func updateStmt(d dialect.Dialect, p Projection) statement {
	var b strings.Builder

	target := p.Table
	if d.UpdateJoin() {
		target = "d"
		b.WriteString("UPDATE " + p.Table + " d JOIN " + storage.TableOriginalOrders + " o ON d.order_id = o.order_id SET ")
		for _, c := range p.Columns {
			b.WriteString("d." + c + " = o." + c + ", ")
		}
		b.WriteString("d.updated_at = ? WHERE ")
	} else {
		b.WriteString("UPDATE " + p.Table + " SET ")
		for _, c := range p.Columns {
			b.WriteString(c + " = o." + c + ", ")
		}
		b.WriteString("updated_at = ? FROM " + storage.TableOriginalOrders + " o WHERE " + p.Table + ".order_id = o.order_id AND ")
	}

	b.WriteString("o.order_type IN " + dialect.In(len(p.Categories)))
	b.WriteString(" AND (o.updated_at > " + target + ".updated_at OR " + target + ".updated_at IS NULL)")

	return statement{query: b.String(), args: categoryArgs(p)}
}

// insertStmt copies qualifying original orders that have no derived row yet,
// carrying the source audit timestamps over.
func insertStmt(p Projection) statement {
	cols := "order_id, " + strings.Join(p.Columns, ", ") + ", created_at, updated_at"
	src := "o.order_id, o." + strings.Join(p.Columns, ", o.") + ", o.created_at, o.updated_at"

	query := "INSERT INTO " + p.Table + " (" + cols + ") SELECT " + src +
		" FROM " + storage.TableOriginalOrders + " o" +
		" WHERE o.order_type IN " + dialect.In(len(p.Categories)) +
		" AND NOT EXISTS (SELECT 1 FROM " + p.Table + " d WHERE d.order_id = o.order_id)"

	return statement{query: query, args: categoryArgs(p)}
}

func countStaleStmt(p Projection) statement {
	query := "SELECT COUNT(*) FROM " + p.Table + " d JOIN " + storage.TableOriginalOrders + " o ON d.order_id = o.order_id" +
		" WHERE o.order_type IN " + dialect.In(len(p.Categories)) +
		" AND (o.updated_at > d.updated_at OR d.updated_at IS NULL)"
	return statement{query: query, args: categoryArgs(p)}
}

func countMissingStmt(p Projection) statement {
	query := "SELECT COUNT(*) FROM " + storage.TableOriginalOrders + " o" +
		" WHERE o.order_type IN " + dialect.In(len(p.Categories)) +
		" AND NOT EXISTS (SELECT 1 FROM " + p.Table + " d WHERE d.order_id = o.order_id)"
	return statement{query: query, args: categoryArgs(p)}
}
