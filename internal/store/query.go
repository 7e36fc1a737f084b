package store

import (
	"strings"
	"time"
)

// Cond is a single column predicate. Conditions in a query are ANDed.
type Cond struct {
	column string
	op     string
	value  any
}

// Eq matches column = value. A nil value matches NULL.
func Eq(column string, value any) Cond {
	if value == nil {
		return IsNull(column)
	}
	return Cond{column: column, op: "=", value: normalize(value)}
}

func Ne(column string, value any) Cond  { return Cond{column: column, op: "<>", value: normalize(value)} }
func Lt(column string, value any) Cond  { return Cond{column: column, op: "<", value: normalize(value)} }
func Lte(column string, value any) Cond { return Cond{column: column, op: "<=", value: normalize(value)} }
func Gt(column string, value any) Cond  { return Cond{column: column, op: ">", value: normalize(value)} }
func Gte(column string, value any) Cond { return Cond{column: column, op: ">=", value: normalize(value)} }

func IsNull(column string) Cond  { return Cond{column: column, op: "IS NULL"} }
func NotNull(column string) Cond { return Cond{column: column, op: "IS NOT NULL"} }

func (c Cond) Column() string { return c.column }

func (c Cond) sql() (string, []any) {
	if c.op == "IS NULL" || c.op == "IS NOT NULL" {
		return c.column + " " + c.op, nil
	}
	return c.column + " " + c.op + " ?", []any{c.value}
}

// Timestamps are stored in UTC.
func normalize(value any) any {
	if t, ok := value.(time.Time); ok {
		return t.UTC()
	}
	return value
}

// Assign is one SET clause of a bulk update.
type Assign struct {
	Column string
	Value  any
}

// Query selects records of one kind. The zero value lists every active
// record ordered by id.
type Query[T any] struct {
	IncludeInactive bool
	Where           []Cond

	// Match filters rows in Go after the SQL predicates. Limit and Offset
	// are applied after Match.
	Match func(T) bool

	Limit  int
	Offset int

	// ForUpdate locks the selected rows until the batch ends.
	ForUpdate bool
}

func whereClause(conds []Cond) (string, []any) {
	if len(conds) == 0 {
		return "", nil
	}

	parts := make([]string, 0, len(conds))
	var args []any
	for _, c := range conds {
		clause, a := c.sql()
		parts = append(parts, clause)
		args = append(args, a...)
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}
