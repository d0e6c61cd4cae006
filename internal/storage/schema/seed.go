package schema

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"order-sync/internal/storage"
)

// SeedConfig controls how many synthetic original orders are stored.
type SeedConfig struct {
	Orders     int
	BatchSize  int
	OrderTypes []string
	Seed       int64
	// Now anchors the synthetic timestamps; zero means the current time.
	Now time.Time
}

// Seed tops original_orders up to cfg.Orders rows with deterministic
// synthetic data. Existing rows are kept.
func Seed(ctx context.Context, db *gorm.DB, cfg SeedConfig) (int, error) {
	const op = "storage.schema.Seed"

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if len(cfg.OrderTypes) == 0 {
		return 0, fmt.Errorf("%s: no order types to draw from", op)
	}
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}

	var existing int64
	if err := db.WithContext(ctx).Model(&storage.OriginalOrder{}).Count(&existing).Error; err != nil {
		return 0, fmt.Errorf("%s: count: %w", op, err)
	}
	if int(existing) >= cfg.Orders {
		return 0, nil
	}

	toCreate := cfg.Orders - int(existing)
	batch := make([]storage.OriginalOrder, 0, cfg.BatchSize)
	now := cfg.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC().Truncate(time.Second)
	rnd := rand.New(rand.NewSource(cfg.Seed))
	start := int(existing)

	for i := 0; i < toCreate; i++ {
		batch = append(batch, syntheticOrder(start+i, rnd, now, cfg.OrderTypes))

		if len(batch) == cfg.BatchSize || i == toCreate-1 {
			if err := db.WithContext(ctx).Create(&batch).Error; err != nil {
				return 0, fmt.Errorf("%s: insert batch: %w", op, err)
			}
			batch = batch[:0]
		}
	}

	return toCreate, nil
}

func syntheticOrder(idx int, rnd *rand.Rand, now time.Time, orderTypes []string) storage.OriginalOrder {
	created := now.Add(-time.Duration(rnd.Intn(180*24)) * time.Hour)
	processed := created.Add(time.Duration(rnd.Intn(48)) * time.Hour)

	var completed *time.Time
	if rnd.Float64() > 0.4 {
		c := processed.Add(time.Duration(rnd.Intn(96)) * time.Hour)
		completed = &c
	}

	quantity := 1 + rnd.Intn(200)
	pictures := 1 + rnd.Intn(6)
	colors := 1 + rnd.Intn(4)
	clothPrice := money(float64(quantity) * (25 + rnd.Float64()*40))
	picturePrice := money(float64(pictures) * (5 + rnd.Float64()*20))

	f := storage.OrderFields{
		Role:               ptr(randomChoice(roles, rnd)),
		Handler:            ptr(randomChoice(handlers, rnd)),
		Process:            ptr(randomChoice(processes, rnd)),
		Amount:             nullMoney(clothPrice.Add(picturePrice)),
		PictureAmount:      &pictures,
		PicturePrice:       nullMoney(picturePrice),
		PictureCost:        nullMoney(money(float64(pictures) * 2.5)),
		ColorCost:          nullMoney(money(float64(colors) * 1.2)),
		WorkCost:           nullMoney(money(float64(quantity) * 0.8)),
		ClothPrice:         nullMoney(clothPrice),
		Quantity:           &quantity,
		ClothCost:          nullMoney(money(float64(quantity) * 12)),
		ClothPackCost:      nullMoney(money(float64(quantity) * 0.5)),
		ClothCode:          ptr(fmt.Sprintf("T%03d", rnd.Intn(120))),
		ColorAmount:        &colors,
		CustomerName:       ptr(fmt.Sprintf("Customer %05d", rnd.Intn(5000))),
		Phone:              ptr(randomPhone(rnd)),
		Shop:               ptr(randomChoice(shops, rnd)),
		Express:            ptr(randomChoice(couriers, rnd)),
		OrderStatus:        ptr(randomChoice(statuses, rnd)),
		OrderCreatedDate:   &created,
		OrderProcessedDate: &processed,
		CompletionDate:     completed,
		OrderType:          ptr(randomChoice(orderTypes, rnd)),
	}

	return storage.OriginalOrder{
		OrderID:     fmt.Sprintf("SO%08d", idx+1),
		OrderFields: f,
		CreatedAt:   created,
		UpdatedAt:   processed,
	}
}

var (
	roles     = []string{"sales", "service", "design"}
	handlers  = []string{"Chen", "Li", "Wang", "Zhao"}
	processes = []string{"DTF", "screen", "embroidery", "sublimation"}
	shops     = []string{"taobao", "douyin", "pinduoduo", "offline"}
	couriers  = []string{"SF", "ZTO", "YTO", "JD"}
	statuses  = []string{"pending", "processing", "shipped", "completed"}
)

func randomChoice(items []string, rnd *rand.Rand) string {
	return items[rnd.Intn(len(items))]
}

func randomPhone(rnd *rand.Rand) string {
	prefixes := []string{"138", "139", "137", "188", "199"}
	return fmt.Sprintf("%s%08d", prefixes[rnd.Intn(len(prefixes))], rnd.Intn(100000000))
}

func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

func nullMoney(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func ptr[T any](v T) *T {
	return &v
}
