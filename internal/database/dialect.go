package database

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/safar/salon-engine/internal/config"
)

// Dialect captures the SQL differences between the supported substrates.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

func (d Dialect) String() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}

func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case config.DriverPostgres, config.DriverPgx:
		return Postgres, nil
	case config.DriverSQLite:
		return SQLite, nil
	}
	return Postgres, fmt.Errorf("unsupported driver %q", driver)
}

// Rebind rewrites ? placeholders into the dialect's form.
func (d Dialect) Rebind(query string) string {
	if d == SQLite {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// ForUpdate returns the row locking suffix. SQLite serializes writers on
// a single connection and has no row locks.
func (d Dialect) ForUpdate() string {
	if d == SQLite {
		return ""
	}
	return " FOR UPDATE"
}

// ForShare returns the shared row locking suffix.
func (d Dialect) ForShare() string {
	if d == SQLite {
		return ""
	}
	return " FOR SHARE"
}

func (d Dialect) WriteTxOptions() TxOptions {
	if d == SQLite {
		return TxOptions{}
	}
	return TxOptions{IsolationLevel: sql.LevelReadCommitted}
}

// ReadTxOptions gives multi-statement reads a single snapshot.
func (d Dialect) ReadTxOptions() TxOptions {
	if d == SQLite {
		return TxOptions{}
	}
	return TxOptions{IsolationLevel: sql.LevelRepeatableRead, ReadOnly: true}
}
