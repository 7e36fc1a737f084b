package database

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
	ErrorClassUniqueViolation
	ErrorClassForeignKeyViolation
	ErrorClassCheckViolation
	ErrorClassNotNullViolation
)

func (c ErrorClass) String() string {
	switch c {
	case ErrorClassTransient:
		return "transient"
	case ErrorClassDeadlock:
		return "deadlock"
	case ErrorClassSerialization:
		return "serialization"
	case ErrorClassUniqueViolation:
		return "unique_violation"
	case ErrorClassForeignKeyViolation:
		return "foreign_key_violation"
	case ErrorClassCheckViolation:
		return "check_violation"
	case ErrorClassNotNullViolation:
		return "not_null_violation"
	default:
		return "permanent"
	}
}

// ClassifyError maps driver errors from lib/pq, pgx and modernc sqlite onto
// one set of classes.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassPermanent
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return classifySQLState(string(pqErr.Code))
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifySQLState(pgErr.Code)
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return classifySQLite(liteErr.Code(), liteErr.Error())
	}

	return ErrorClassPermanent
}

func classifySQLState(code string) ErrorClass {
	switch code {
	case "40001":
		return ErrorClassSerialization
	case "40P01":
		return ErrorClassDeadlock
	case "55P03":
		return ErrorClassTransient
	case "23505":
		return ErrorClassUniqueViolation
	case "23503":
		return ErrorClassForeignKeyViolation
	case "23502":
		return ErrorClassNotNullViolation
	case "23514":
		return ErrorClassCheckViolation
	}
	return ErrorClassPermanent
}

func classifySQLite(code int, msg string) ErrorClass {
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return ErrorClassUniqueViolation
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return ErrorClassForeignKeyViolation
	case sqlite3.SQLITE_CONSTRAINT_CHECK:
		return ErrorClassCheckViolation
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		return ErrorClassNotNullViolation
	}

	switch code & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return ErrorClassTransient
	case sqlite3.SQLITE_CONSTRAINT:
		// Primary result code only; fall back to the message.
		switch {
		case strings.Contains(msg, "UNIQUE"):
			return ErrorClassUniqueViolation
		case strings.Contains(msg, "FOREIGN KEY"):
			return ErrorClassForeignKeyViolation
		case strings.Contains(msg, "CHECK"):
			return ErrorClassCheckViolation
		case strings.Contains(msg, "NOT NULL"):
			return ErrorClassNotNullViolation
		}
	}
	return ErrorClassPermanent
}

func IsRetryable(err error) bool {
	class := ClassifyError(err)
	return class == ErrorClassTransient ||
		class == ErrorClassDeadlock ||
		class == ErrorClassSerialization
}
