package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"order-sync/internal/storage"
	"order-sync/internal/storage/sqldb"
)

var (
	ErrMissingOrderID  = errors.New("order id column is missing")
	ErrEmptyWorkbook   = errors.New("workbook has no sheets")
	ErrInvalidWorkbook = errors.New("not an xlsx workbook")
)

// headerColumns maps sheet titles onto table columns.
var headerColumns = func() map[string]string {
	m := make(map[string]string, len(storage.ColumnTitles))
	for col, title := range storage.ColumnTitles {
		m[title] = col
	}
	return m
}()

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/1/2 15:04:05",
	"2006/1/2 15:04",
	"2006/1/2",
	time.RFC3339,
}

type Store interface {
	UpsertOriginalOrders(ctx context.Context, orders []storage.OriginalOrder) (sqldb.UpsertStats, error)
}

// Parsed is the content of one workbook.
type Parsed struct {
	Orders     []storage.OriginalOrder
	Rows       int
	MissingID  int
	Duplicates int
}

// Result reports one import.
type Result struct {
	File       string `json:"file,omitempty"`
	Rows       int    `json:"rows"`
	Inserted   int    `json:"inserted"`
	Updated    int    `json:"updated"`
	Duplicates int    `json:"duplicates"`
	Errors     int    `json:"errors"`
}

type Importer struct {
	store Store
	log   *slog.Logger
}

func New(store Store, log *slog.Logger) *Importer {
	return &Importer{store: store, log: log}
}

// Import parses an .xlsx workbook and upserts its orders into
// original_orders in one transaction.
func (i *Importer) Import(ctx context.Context, name string, r io.Reader) (Result, error) {
	const op = "service.importer.Import"

	log := i.log.With(slog.String("op", op), slog.String("file", name))

	parsed, err := Parse(r)
	if err != nil {
		return Result{File: name}, fmt.Errorf("%s: %w", op, err)
	}

	res := Result{
		File:       name,
		Rows:       parsed.Rows,
		Duplicates: parsed.Duplicates,
		Errors:     parsed.MissingID,
	}
	if parsed.MissingID > 0 {
		log.Warn("rows without order id skipped", slog.Int("count", parsed.MissingID))
	}
	if parsed.Duplicates > 0 {
		log.Warn("duplicate order ids, first row kept", slog.Int("count", parsed.Duplicates))
	}

	st, err := i.store.UpsertOriginalOrders(ctx, parsed.Orders)
	if err != nil {
		return res, fmt.Errorf("%s: %w", op, err)
	}
	res.Inserted = st.Inserted
	res.Updated = st.Updated

	log.Info("orders imported",
		slog.Int("rows", res.Rows),
		slog.Int("inserted", res.Inserted),
		slog.Int("updated", res.Updated),
		slog.Int("errors", res.Errors),
	)

	return res, nil
}

// Parse reads the first sheet of an .xlsx workbook. The first row is the
// header; unknown columns are ignored and unparsable values become NULL.
func Parse(r io.Reader) (Parsed, error) {
	const op = "service.importer.Parse"

	f, err := excelize.OpenReader(r)
	if err != nil {
		return Parsed{}, fmt.Errorf("%s: %w: %v", op, ErrInvalidWorkbook, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Parsed{}, fmt.Errorf("%s: %w", op, ErrEmptyWorkbook)
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return Parsed{}, fmt.Errorf("%s: read %s: %w", op, sheets[0], err)
	}
	if len(rows) == 0 {
		return Parsed{}, fmt.Errorf("%s: %w", op, ErrMissingOrderID)
	}

	columns := mapHeader(rows[0])
	idIdx := -1
	for idx, col := range columns {
		if col == storage.ColumnOrderID {
			idIdx = idx
			break
		}
	}
	if idIdx < 0 {
		return Parsed{}, fmt.Errorf("%s: %w", op, ErrMissingOrderID)
	}

	var p Parsed
	seen := make(map[string]struct{}, len(rows))

	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		p.Rows++

		id := normalizeID(cell(row, idIdx))
		if id == "" {
			p.MissingID++
			continue
		}
		if _, ok := seen[id]; ok {
			p.Duplicates++
			continue
		}
		seen[id] = struct{}{}

		o := storage.OriginalOrder{OrderID: id}
		dest := o.OrderFields.Dest()
		for idx, col := range columns {
			pos, ok := columnPos[col]
			if !ok {
				continue
			}
			setField(dest[pos], cell(row, idx))
		}

		p.Orders = append(p.Orders, o)
	}

	return p, nil
}

var columnPos = func() map[string]int {
	m := make(map[string]int, len(storage.OrderColumns))
	for i, c := range storage.OrderColumns {
		m[c] = i
	}
	return m
}()

func mapHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if col, ok := headerColumns[h]; ok {
			out[i] = col
			continue
		}
		h = strings.ToLower(h)
		if _, ok := columnPos[h]; ok || h == storage.ColumnOrderID {
			out[i] = h
		}
	}
	return out
}

// setField parses raw into one of the pointers returned by OrderFields.Dest.
func setField(dst any, raw string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return
	}

	switch d := dst.(type) {
	case **string:
		*d = &raw
	case *decimal.NullDecimal:
		if v, ok := parseDecimal(raw); ok {
			*d = decimal.NewNullDecimal(v.Round(2))
		}
	case **int:
		if v, ok := parseDecimal(raw); ok {
			if n, ok := toInt(v); ok {
				*d = &n
			}
		}
	case **time.Time:
		if t, ok := parseTime(raw); ok {
			*d = &t
		}
	}
}

func parseDecimal(raw string) (decimal.Decimal, bool) {
	raw = strings.NewReplacer(",", "", "¥", "", "￥", "").Replace(raw)
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return v, true
}

// toInt truncates v, rejecting values outside the int range.
func toInt(v decimal.Decimal) (int, bool) {
	v = v.Truncate(0)
	if v.LessThan(decimal.NewFromInt(math.MinInt)) || v.GreaterThan(decimal.NewFromInt(math.MaxInt)) {
		return 0, false
	}
	return int(v.IntPart()), true
}

// parseTime accepts Excel serial dates as well as the common text layouts.
func parseTime(raw string) (time.Time, bool) {
	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, false
		}
		return t.UTC(), true
	}

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// normalizeID turns numeric ids stored as "1001.0" back into "1001".
func normalizeID(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasSuffix(raw, ".0") {
		if _, err := strconv.ParseInt(strings.TrimSuffix(raw, ".0"), 10, 64); err == nil {
			return strings.TrimSuffix(raw, ".0")
		}
	}
	return raw
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
