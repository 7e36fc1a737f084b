package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/safar/salon-engine/internal/apperr"
	"github.com/safar/salon-engine/internal/database"
	"github.com/safar/salon-engine/internal/models"
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// Schema maps one entity kind to its table. Columns excludes id and active;
// Values returns them in the same order. Scan reads id, Columns and active.
type Schema[T any] struct {
	Kind    models.Kind
	Table   string
	Columns []string
	ID      func(T) string
	Values  func(T) []any
	Scan    func(row rowScanner) (T, error)
}

func (s *Schema[T]) selectList() string {
	return "id, " + strings.Join(s.Columns, ", ") + ", active"
}

func (s *Schema[T]) hasColumn(name string) bool {
	if name == "id" || name == "active" {
		return true
	}
	for _, c := range s.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Records is the kind-independent part of an EntityStore.
type Records interface {
	Kind() models.Kind
	Exists(ctx context.Context, id string) (bool, error)
	LockActive(ctx context.Context, id string, exclusive bool) (bool, error)
	SoftDelete(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) error
	UpdateWhere(ctx context.Context, set []Assign, where ...Cond) (int64, error)
	DuplicateActive(ctx context.Context, id, column string) (bool, error)
}

// EntityStore reads and writes one entity kind through a querier, normally
// the transaction of a Session.
type EntityStore[T any] struct {
	q       Querier
	dialect database.Dialect
	schema  *Schema[T]
}

func NewEntityStore[T any](q Querier, dialect database.Dialect, schema *Schema[T]) *EntityStore[T] {
	return &EntityStore[T]{q: q, dialect: dialect, schema: schema}
}

func (s *EntityStore[T]) Kind() models.Kind {
	return s.schema.Kind
}

func (s *EntityStore[T]) List(ctx context.Context, q Query[T]) ([]T, error) {
	if q.Limit < 0 || q.Offset < 0 {
		return nil, apperr.Validation(string(s.schema.Kind), "", "limit and offset must not be negative")
	}

	conds := q.Where
	if !q.IncludeInactive {
		conds = append([]Cond{Eq("active", true)}, conds...)
	}
	for _, c := range conds {
		if !s.schema.hasColumn(c.column) {
			return nil, apperr.Validation(string(s.schema.Kind), "", "unknown filter column %q", c.column)
		}
	}

	where, args := whereClause(conds)
	query := "SELECT " + s.schema.selectList() + " FROM " + s.schema.Table + where + " ORDER BY id"

	// Paging moves to Go when a Match predicate drops rows.
	if q.Match == nil {
		if q.Limit > 0 {
			query += " LIMIT ?"
			args = append(args, q.Limit)
		}
		if q.Offset > 0 {
			if q.Limit <= 0 && s.dialect == database.SQLite {
				query += " LIMIT -1"
			}
			query += " OFFSET ?"
			args = append(args, q.Offset)
		}
	}
	if q.ForUpdate {
		query += s.dialect.ForUpdate()
	}

	rows, err := s.q.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, s.fail(err, "list", "")
	}
	defer rows.Close()

	var items []T
	for rows.Next() {
		item, err := s.schema.Scan(rows)
		if err != nil {
			return nil, s.fail(err, "scan", "")
		}
		if q.Match != nil && !q.Match(item) {
			continue
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail(err, "rows", "")
	}

	if q.Match != nil {
		items = window(items, q.Offset, q.Limit)
	}
	return items, nil
}

func window[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// Count returns the number of records matching the SQL part of q.
func (s *EntityStore[T]) Count(ctx context.Context, q Query[T]) (int64, error) {
	conds := q.Where
	if !q.IncludeInactive {
		conds = append([]Cond{Eq("active", true)}, conds...)
	}
	for _, c := range conds {
		if !s.schema.hasColumn(c.column) {
			return 0, apperr.Validation(string(s.schema.Kind), "", "unknown filter column %q", c.column)
		}
	}
	where, args := whereClause(conds)

	var total int64
	err := s.q.QueryRowContext(ctx, s.dialect.Rebind("SELECT COUNT(*) FROM "+s.schema.Table+where), args...).Scan(&total)
	if err != nil {
		return 0, s.fail(err, "count", "")
	}
	return total, nil
}

// GetByID returns the active record with the given id.
func (s *EntityStore[T]) GetByID(ctx context.Context, id string) (T, error) {
	return s.get(ctx, id, false, false)
}

// GetAny returns the record regardless of its active flag.
func (s *EntityStore[T]) GetAny(ctx context.Context, id string) (T, error) {
	return s.get(ctx, id, true, false)
}

// GetForUpdate returns the active record and locks it for the rest of the
// batch.
func (s *EntityStore[T]) GetForUpdate(ctx context.Context, id string) (T, error) {
	return s.get(ctx, id, false, true)
}

func (s *EntityStore[T]) get(ctx context.Context, id string, includeInactive, lock bool) (T, error) {
	query := "SELECT " + s.schema.selectList() + " FROM " + s.schema.Table + " WHERE id = ?"
	args := []any{id}
	if !includeInactive {
		query += " AND active = ?"
		args = append(args, true)
	}
	if lock {
		query += s.dialect.ForUpdate()
	}

	item, err := s.schema.Scan(s.q.QueryRowContext(ctx, s.dialect.Rebind(query), args...))
	if err != nil {
		var zero T
		if errors.Is(err, sql.ErrNoRows) {
			return zero, apperr.NotFound(string(s.schema.Kind), id, "")
		}
		return zero, s.fail(err, "get", id)
	}
	return item, nil
}

// Exists reports whether an active record with the id exists.
func (s *EntityStore[T]) Exists(ctx context.Context, id string) (bool, error) {
	return s.exists(ctx, id, false)
}

// LockActive reports whether an active record with the id exists and, on
// postgres, locks its row until the batch ends. A shared lock blocks
// concurrent deletes; an exclusive one also blocks other writers.
func (s *EntityStore[T]) LockActive(ctx context.Context, id string, exclusive bool) (bool, error) {
	query := "SELECT id FROM " + s.schema.Table + " WHERE id = ? AND active = ?"
	if exclusive {
		query += s.dialect.ForUpdate()
	} else {
		query += s.dialect.ForShare()
	}

	var got string
	err := s.q.QueryRowContext(ctx, s.dialect.Rebind(query), id, true).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, s.fail(err, "lock", id)
	}
	return true, nil
}

func (s *EntityStore[T]) exists(ctx context.Context, id string, includeInactive bool) (bool, error) {
	query := "SELECT COUNT(*) FROM " + s.schema.Table + " WHERE id = ?"
	args := []any{id}
	if !includeInactive {
		query += " AND active = ?"
		args = append(args, true)
	}

	var n int
	if err := s.q.QueryRowContext(ctx, s.dialect.Rebind(query), args...).Scan(&n); err != nil {
		return false, s.fail(err, "exists", id)
	}
	return n > 0, nil
}

// Insert writes a new active record. An existing record with the same id,
// active or not, is a conflict.
func (s *EntityStore[T]) Insert(ctx context.Context, item T) error {
	id := s.schema.ID(item)
	taken, err := s.exists(ctx, id, true)
	if err != nil {
		return err
	}
	if taken {
		return apperr.Conflict(string(s.schema.Kind), id, "already exists")
	}

	cols := s.schema.selectList()
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(s.schema.Columns)+2), ", ")
	args := append([]any{id}, s.schema.Values(item)...)
	args = append(args, true)

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", s.schema.Table, cols, marks)
	if _, err := s.q.ExecContext(ctx, s.dialect.Rebind(query), args...); err != nil {
		return s.fail(err, "insert", id)
	}
	return nil
}

// Update replaces every mutable column of an active record.
func (s *EntityStore[T]) Update(ctx context.Context, item T) error {
	id := s.schema.ID(item)

	sets := make([]string, len(s.schema.Columns))
	for i, c := range s.schema.Columns {
		sets[i] = c + " = ?"
	}
	args := append(s.schema.Values(item), id, true)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ? AND active = ?", s.schema.Table, strings.Join(sets, ", "))
	return s.execOne(ctx, "update", id, query, args...)
}

// SoftDelete deactivates an active record.
func (s *EntityStore[T]) SoftDelete(ctx context.Context, id string) error {
	query := "UPDATE " + s.schema.Table + " SET active = ? WHERE id = ? AND active = ?"
	return s.execOne(ctx, "soft delete", id, query, false, id, true)
}

// Restore reactivates an inactive record.
func (s *EntityStore[T]) Restore(ctx context.Context, id string) error {
	query := "UPDATE " + s.schema.Table + " SET active = ? WHERE id = ? AND active = ?"
	return s.execOne(ctx, "restore", id, query, true, id, false)
}

func (s *EntityStore[T]) execOne(ctx context.Context, op, id, query string, args ...any) error {
	result, err := s.q.ExecContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return s.fail(err, op, id)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return s.fail(err, op, id)
	}
	if rowsAffected == 0 {
		return apperr.NotFound(string(s.schema.Kind), id, "")
	}
	return nil
}

// UpdateWhere applies set to every record matching where, in any state.
func (s *EntityStore[T]) UpdateWhere(ctx context.Context, set []Assign, where ...Cond) (int64, error) {
	if len(set) == 0 {
		return 0, nil
	}

	sets := make([]string, len(set))
	args := make([]any, 0, len(set)+len(where))
	for i, a := range set {
		if !s.schema.hasColumn(a.Column) {
			return 0, apperr.Validation(string(s.schema.Kind), "", "unknown column %q", a.Column)
		}
		sets[i] = a.Column + " = ?"
		args = append(args, normalize(a.Value))
	}
	clause, whereArgs := whereClause(where)
	args = append(args, whereArgs...)

	result, err := s.q.ExecContext(ctx, s.dialect.Rebind("UPDATE "+s.schema.Table+" SET "+strings.Join(sets, ", ")+clause), args...)
	if err != nil {
		return 0, s.fail(err, "bulk update", "")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, s.fail(err, "bulk update", "")
	}
	return n, nil
}

// Increment adds delta to an integer column of an active record unless the
// result would drop below zero. It reports whether a row changed.
func (s *EntityStore[T]) Increment(ctx context.Context, id, column string, delta int) (bool, error) {
	if !s.schema.hasColumn(column) {
		return false, apperr.Validation(string(s.schema.Kind), id, "unknown column %q", column)
	}

	query := fmt.Sprintf(
		`UPDATE %s SET %s = %s + ? WHERE id = ? AND active = ? AND %s + ? >= 0`,
		s.schema.Table, column, column, column)

	result, err := s.q.ExecContext(ctx, s.dialect.Rebind(query), delta, id, true, delta)
	if err != nil {
		return false, s.fail(err, "increment", id)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, s.fail(err, "increment", id)
	}
	return rowsAffected > 0, nil
}

// ActiveWith reports whether an active record other than excludeID holds
// value in column.
func (s *EntityStore[T]) ActiveWith(ctx context.Context, column string, value any, excludeID string) (bool, error) {
	if !s.schema.hasColumn(column) {
		return false, apperr.Validation(string(s.schema.Kind), excludeID, "unknown column %q", column)
	}

	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ? AND active = ? AND id <> ?", s.schema.Table, column)

	var n int
	if err := s.q.QueryRowContext(ctx, s.dialect.Rebind(query), normalize(value), true, excludeID).Scan(&n); err != nil {
		return false, s.fail(err, "unique check", excludeID)
	}
	return n > 0, nil
}

// DuplicateActive reports whether another active record shares column with
// the record id. NULL never matches.
func (s *EntityStore[T]) DuplicateActive(ctx context.Context, id, column string) (bool, error) {
	if !s.schema.hasColumn(column) {
		return false, apperr.Validation(string(s.schema.Kind), id, "unknown column %q", column)
	}

	query := fmt.Sprintf(
		`SELECT COUNT(*) FROM %[1]s other
		 JOIN %[1]s self ON other.%[2]s = self.%[2]s
		 WHERE self.id = ? AND other.id <> self.id AND other.active = ?`,
		s.schema.Table, column)

	var n int
	if err := s.q.QueryRowContext(ctx, s.dialect.Rebind(query), id, true).Scan(&n); err != nil {
		return false, s.fail(err, "unique check", id)
	}
	return n > 0, nil
}

func (s *EntityStore[T]) fail(err error, op, id string) error {
	return MapError(err, s.schema.Kind, id, op)
}

// MapError converts a driver error into the engine taxonomy. Errors that
// already carry a kind pass through.
func MapError(err error, kind models.Kind, id, op string) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}

	switch database.ClassifyError(err) {
	case database.ErrorClassUniqueViolation:
		return apperr.Conflict(string(kind), id, "unique constraint violated").WithCause(err)
	case database.ErrorClassForeignKeyViolation:
		return apperr.NotFound(string(kind), id, "referenced record does not exist").WithCause(err)
	case database.ErrorClassCheckViolation, database.ErrorClassNotNullViolation:
		return apperr.Constraint(string(kind), id, "constraint violated").WithCause(err)
	}

	return apperr.Storage(err, fmt.Sprintf("%s %s", op, kind), database.IsRetryable(err))
}
