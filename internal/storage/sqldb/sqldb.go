package sqldb

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"order-sync/internal/config"
	"order-sync/internal/ordersync"
	"order-sync/internal/storage/dialect"
)

type Storage struct {
	db      *sql.DB
	dialect dialect.Dialect
}

func Open(cfg config.Database) (*Storage, error) {
	const op = "storage.sqldb.Open"

	d, err := dialect.Parse(cfg.Driver)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := sql.Open(d.DriverName(), cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	return &Storage{db: db, dialect: d}, nil
}

// New wraps an already open pool.
func New(db *sql.DB, d dialect.Dialect) *Storage {
	return &Storage{db: db, dialect: d}
}

func (s *Storage) DB() *sql.DB {
	return s.db
}

func (s *Storage) Dialect() dialect.Dialect {
	return s.dialect
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// Session checks out a dedicated connection from the pool. Closing the
// session returns the connection.
func (s *Storage) Session(ctx context.Context) (ordersync.Session, error) {
	const op = "storage.sqldb.Session"

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return ordersync.NewConnSession(conn), nil
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
