package storage

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TableOriginalOrders = "original_orders"
	TableSampleOrders   = "sample_orders"
	TableBulkOrders     = "bulk_orders"
)

var (
	ErrNotFound     = errors.New("order not found")
	ErrUnknownTable = errors.New("unknown derived table")
)

// OrderColumns is the canonical, ordered list of business columns shared by
// original_orders and every derived table. Audit columns and order_id are not
// part of it.
var OrderColumns = []string{
	"role",
	"handler",
	"process",
	"amount",
	"picture_amount",
	"picture_price",
	"picture_cost",
	"color_cost",
	"work_cost",
	"cloth_price",
	"quantity",
	"cloth_cost",
	"cloth_pack_cost",
	"cloth_code",
	"color_amount",
	"customer_name",
	"phone",
	"shop",
	"express",
	"order_status",
	"order_created_date",
	"order_processed_date",
	"completion_date",
	"order_type",
	"notes",
}

const ColumnOrderID = "order_id"

// ColumnTitles are the sheet headers the business uses for each column.
var ColumnTitles = map[string]string{
	ColumnOrderID:          "订单ID",
	"role":                 "角色",
	"handler":              "处理人",
	"process":              "工艺",
	"amount":               "金额",
	"picture_amount":       "高清图数",
	"picture_price":        "印制报价",
	"picture_cost":         "高清图尺寸成本",
	"color_cost":           "高清图颜色成本",
	"work_cost":            "高清图工费成本",
	"cloth_price":          "衣服售价总额",
	"quantity":             "衣服总数",
	"cloth_cost":           "衣服成本",
	"cloth_pack_cost":      "叠衣服成本",
	"cloth_code":           "衣服款式",
	"color_amount":         "颜色总数",
	"customer_name":        "客户",
	"phone":                "电话",
	"shop":                 "渠道",
	"express":              "快递",
	"order_status":         "订单状态",
	"order_created_date":   "下单时间",
	"order_processed_date": "处理时间",
	"completion_date":      "完成时间",
	"order_type":           "订单分类",
	"notes":                "备注",
}

// OrderFields holds the business fields of an order. Every field is nullable.
type OrderFields struct {
	Role    *string             `gorm:"size:64" json:"role"`
	Handler *string             `gorm:"size:64" json:"handler"`
	Process *string             `gorm:"size:128" json:"process"`
	Amount  decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"amount"`

	PictureAmount *int                `json:"picture_amount"`
	PicturePrice  decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"picture_price"`
	PictureCost   decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"picture_cost"`
	ColorCost     decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"color_cost"`
	WorkCost      decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"work_cost"`

	ClothPrice    decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"cloth_price"`
	Quantity      *int                `json:"quantity"`
	ClothCost     decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"cloth_cost"`
	ClothPackCost decimal.NullDecimal `gorm:"type:decimal(12,2)" json:"cloth_pack_cost"`
	ClothCode     *string             `gorm:"size:128" json:"cloth_code"`
	ColorAmount   *int                `json:"color_amount"`

	CustomerName *string `gorm:"size:128;index" json:"customer_name"`
	Phone        *string `gorm:"size:32" json:"phone"`
	Shop         *string `gorm:"size:64" json:"shop"`
	Express      *string `gorm:"size:64" json:"express"`
	OrderStatus  *string `gorm:"size:32" json:"order_status"`

	OrderCreatedDate   *time.Time `json:"order_created_date"`
	OrderProcessedDate *time.Time `json:"order_processed_date"`
	CompletionDate     *time.Time `json:"completion_date"`
	OrderType          *string    `gorm:"size:32;index" json:"order_type"`

	Notes *string `gorm:"type:text" json:"notes"`
}

// Dest returns scan destinations in OrderColumns order.
func (f *OrderFields) Dest() []any {
	return []any{
		&f.Role, &f.Handler, &f.Process, &f.Amount,
		&f.PictureAmount, &f.PicturePrice, &f.PictureCost, &f.ColorCost, &f.WorkCost,
		&f.ClothPrice, &f.Quantity, &f.ClothCost, &f.ClothPackCost, &f.ClothCode, &f.ColorAmount,
		&f.CustomerName, &f.Phone, &f.Shop, &f.Express, &f.OrderStatus,
		&f.OrderCreatedDate, &f.OrderProcessedDate, &f.CompletionDate, &f.OrderType,
		&f.Notes,
	}
}

// Values returns bind arguments in OrderColumns order.
func (f *OrderFields) Values() []any {
	return []any{
		f.Role, f.Handler, f.Process, f.Amount,
		f.PictureAmount, f.PicturePrice, f.PictureCost, f.ColorCost, f.WorkCost,
		f.ClothPrice, f.Quantity, f.ClothCost, f.ClothPackCost, f.ClothCode, f.ColorAmount,
		f.CustomerName, f.Phone, f.Shop, f.Express, f.OrderStatus,
		f.OrderCreatedDate, f.OrderProcessedDate, f.CompletionDate, f.OrderType,
		f.Notes,
	}
}

// OriginalOrder is the canonical order row.
type OriginalOrder struct {
	OrderID     string `gorm:"primaryKey;size:64" json:"order_id"`
	OrderFields `gorm:"embedded"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `gorm:"index" json:"updated_at"`
}

func (OriginalOrder) TableName() string {
	return TableOriginalOrders
}

// DerivedOrder is a row of a type-specific projection table. The table name is
// chosen at query time, so the struct carries no TableName.
type DerivedOrder struct {
	OrderID     string `gorm:"primaryKey;size:64" json:"order_id"`
	OrderFields `gorm:"embedded"`
	CreatedAt   *time.Time `json:"created_at"`
	UpdatedAt   *time.Time `gorm:"index" json:"updated_at"`
}
