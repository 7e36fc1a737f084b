package store

import (
	"context"
	"database/sql"

	"github.com/safar/salon-engine/internal/database"
)

// Store opens atomic batches against the database.
type Store struct {
	db      *sql.DB
	dialect database.Dialect
}

func New(db *sql.DB, dialect database.Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

func (s *Store) Dialect() database.Dialect {
	return s.dialect
}

// Atomic runs fn in one transaction. Nothing fn wrote is visible unless it
// returns nil and the commit succeeds.
func (s *Store) Atomic(ctx context.Context, fn func(*Session) error) error {
	return s.run(ctx, s.dialect.WriteTxOptions(), true, fn)
}

// Read runs fn against a consistent snapshot. Writes made through the
// session are rolled back on postgres and must not be attempted.
func (s *Store) Read(ctx context.Context, fn func(*Session) error) error {
	return s.run(ctx, s.dialect.ReadTxOptions(), false, fn)
}

func (s *Store) run(ctx context.Context, opts database.TxOptions, writable bool, fn func(*Session) error) error {
	err := database.WithTransaction(ctx, s.db, opts, func(tx *sql.Tx) error {
		session := NewSession(tx, s.dialect)
		session.writable = writable
		return fn(session)
	})
	if err != nil {
		return MapError(err, "", "", "transaction")
	}
	return nil
}
