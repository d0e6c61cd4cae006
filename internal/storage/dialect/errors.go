package dialect

import (
	"context"
	"database/sql/driver"
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
)

// ErrorKind is a coarse classification of a failed statement, used as a log
// attribute so operators can tell a data problem from an outage.
type ErrorKind string

const (
	KindConstraint   ErrorKind = "constraint_violation"
	KindConnectivity ErrorKind = "connectivity"
	KindCanceled     ErrorKind = "canceled"
	KindDatabase     ErrorKind = "database"
)

const (
	mysqlDuplicateEntry  = 1062
	mysqlNoReferencedRow = 1452
	mysqlCannotBeNull    = 1048
	mysqlServerGoneAway  = 2006
	mysqlLostConnection  = 2013
	pgIntegrityClassCode = "23"
)

// Classify inspects driver error types of every supported dialect.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) {
		return KindConnectivity
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDuplicateEntry, mysqlNoReferencedRow, mysqlCannotBeNull:
			return KindConstraint
		case mysqlServerGoneAway, mysqlLostConnection:
			return KindConnectivity
		}
		return KindDatabase
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if len(pgErr.Code) >= 2 && pgErr.Code[:2] == pgIntegrityClassCode {
			return KindConstraint
		}
		return KindDatabase
	}
	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return KindConnectivity
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		if liteErr.Code == sqlite3.ErrConstraint {
			return KindConstraint
		}
		return KindDatabase
	}

	return KindDatabase
}

// IsConstraintViolation reports whether err is a key or integrity violation.
func IsConstraintViolation(err error) bool {
	return Classify(err) == KindConstraint
}
