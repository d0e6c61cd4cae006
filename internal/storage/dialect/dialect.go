package dialect

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Dialect names the SQL flavour of a database/sql driver.
type Dialect string

const (
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Parse maps a configured driver name onto a Dialect.
func Parse(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "mysql":
		return MySQL, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return "", fmt.Errorf("dialect: unsupported driver %q", name)
}

// DriverName is the database/sql driver registered for the dialect.
func (d Dialect) DriverName() string {
	switch d {
	case Postgres:
		return "pgx"
	case SQLite:
		return "sqlite3"
	default:
		return "mysql"
	}
}

// UpdateJoin reports whether multi-table updates are written as
// UPDATE t JOIN s ON ... SET ... rather than UPDATE t SET ... FROM s WHERE ...
func (d Dialect) UpdateJoin() bool {
	return d == MySQL
}

// Rebind rewrites ? placeholders into the dialect's bind syntax. Queries in
// this module never contain literal question marks.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// In returns "(?, ?, ...)" for n values.
func In(n int) string {
	if n <= 0 {
		return "(NULL)"
	}
	return "(" + strings.TrimSuffix(strings.Repeat("?, ", n), ", ") + ")"
}

// ValidIdent reports whether s is safe to interpolate as a table or column name.
func ValidIdent(s string) bool {
	return identRe.MatchString(s)
}
