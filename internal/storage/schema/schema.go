package schema

import (
	"database/sql"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"order-sync/internal/storage"
	"order-sync/internal/storage/dialect"
)

// Gorm wraps an open *sql.DB so migrations and seeding share the pool used by
// the rest of the service.
func Gorm(db *sql.DB, d dialect.Dialect) (*gorm.DB, error) {
	const op = "storage.schema.Gorm"

	var dial gorm.Dialector
	switch d {
	case dialect.MySQL:
		dial = mysql.New(mysql.Config{Conn: db})
	case dialect.Postgres:
		dial = postgres.New(postgres.Config{Conn: db})
	case dialect.SQLite:
		dial = &sqlite.Dialector{Conn: db}
	default:
		return nil, fmt.Errorf("%s: unsupported dialect %q", op, d)
	}

	gdb, err := gorm.Open(dial, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return gdb, nil
}

// Migrate creates or extends original_orders and one table per derived
// projection. All derived tables share the DerivedOrder layout.
func Migrate(gdb *gorm.DB, derivedTables ...string) error {
	const op = "storage.schema.Migrate"

	if err := gdb.AutoMigrate(&storage.OriginalOrder{}); err != nil {
		return fmt.Errorf("%s: %s: %w", op, storage.TableOriginalOrders, err)
	}

	for _, table := range derivedTables {
		if !dialect.ValidIdent(table) {
			return fmt.Errorf("%s: invalid table name %q", op, table)
		}
		if err := gdb.Table(table).AutoMigrate(&storage.DerivedOrder{}); err != nil {
			return fmt.Errorf("%s: %s: %w", op, table, err)
		}
	}

	return nil
}
