package report

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"order-sync/internal/storage"
)

const (
	pageSize  = 1000
	sheetName = "orders"
)

var auditTitles = []string{"创建时间", "更新时间"}

type Store interface {
	ListDerived(ctx context.Context, table string, limit, offset int) ([]*storage.DerivedOrder, error)
}

type Service struct {
	store  Store
	tables []string
}

// New returns a report service that only exports the given derived tables.
func New(store Store, tables []string) *Service {
	return &Service{store: store, tables: slices.Clone(tables)}
}

// Export renders every row of a derived table into a single-sheet workbook.
func (s *Service) Export(ctx context.Context, table string) ([]byte, error) {
	const op = "service.report.Export"

	if !slices.Contains(s.tables, table) {
		return nil, fmt.Errorf("%s: %q: %w", op, table, storage.ErrUnknownTable)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:   &excelize.Font{Bold: true},
		Fill:   excelize.Fill{Type: "pattern", Color: []string{"E0E0E0"}, Pattern: 1},
		Border: []excelize.Border{{Type: "bottom", Color: "000000", Style: 2}},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: header style: %w", op, err)
	}

	header := make([]any, 0, len(storage.OrderColumns)+3)
	header = append(header, storage.ColumnTitles[storage.ColumnOrderID])
	for _, col := range storage.OrderColumns {
		header = append(header, storage.ColumnTitles[col])
	}
	for _, t := range auditTitles {
		header = append(header, t)
	}

	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("%s: header: %w", op, err)
	}
	lastCol, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(sheetName, "A1", lastCol, headerStyle); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rowNum := 2
	for offset := 0; ; offset += pageSize {
		orders, err := s.store.ListDerived(ctx, table, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("%s: fetch %s: %w", op, table, err)
		}

		for _, o := range orders {
			row := rowValues(o)
			cell, _ := excelize.CoordinatesToCellName(1, rowNum)
			if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
				return nil, fmt.Errorf("%s: row %d: %w", op, rowNum, err)
			}
			rowNum++
		}

		if len(orders) < pageSize {
			break
		}
	}

	f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
	})
	f.SetColWidth(sheetName, "A", "A", 18)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return buf.Bytes(), nil
}

// FileName is the attachment name for an export of table taken at now.
func FileName(table string, now time.Time) string {
	return fmt.Sprintf("%s_%s.xlsx", table, now.Format("2006-01-02_150405"))
}

func rowValues(o *storage.DerivedOrder) []any {
	values := o.OrderFields.Values()

	row := make([]any, 0, len(values)+3)
	row = append(row, o.OrderID)
	for _, v := range values {
		row = append(row, cellValue(v))
	}
	row = append(row, cellValue(o.CreatedAt), cellValue(o.UpdatedAt))
	return row
}

func cellValue(v any) any {
	switch x := v.(type) {
	case *string:
		if x != nil {
			return *x
		}
	case *int:
		if x != nil {
			return *x
		}
	case *time.Time:
		if x != nil {
			return x.UTC()
		}
	case decimal.NullDecimal:
		if x.Valid {
			return x.Decimal.InexactFloat64()
		}
	default:
		return v
	}
	return nil
}
