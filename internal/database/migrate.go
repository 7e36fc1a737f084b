package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

//go:embed migrations
var migrationFS embed.FS

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// MigrationFiles lists the embedded files for a dialect in execution order.
func MigrationFiles(dialect Dialect, direction Direction) ([]string, error) {
	dir := path.Join("migrations", dialect.String())
	entries, err := fs.ReadDir(migrationFS, dir)
	if err != nil {
		return nil, fmt.Errorf("read migration directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), fmt.Sprintf(".%s.sql", direction)) {
			files = append(files, path.Join(dir, entry.Name()))
		}
	}

	sort.Strings(files)
	if direction == Down {
		for i, j := 0, len(files)-1; i < j; i, j = i+1, j-1 {
			files[i], files[j] = files[j], files[i]
		}
	}

	return files, nil
}

// Migrate applies every embedded migration for the dialect in the given
// direction. Up migrations are idempotent.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect, direction Direction) (int, error) {
	if direction != Up && direction != Down {
		return 0, fmt.Errorf("direction must be %q or %q", Up, Down)
	}

	files, err := MigrationFiles(dialect, direction)
	if err != nil {
		return 0, err
	}

	for _, file := range files {
		content, err := migrationFS.ReadFile(file)
		if err != nil {
			return 0, fmt.Errorf("read migration file %s: %w", file, err)
		}

		err = WithTransaction(ctx, db, TxOptions{}, func(tx *sql.Tx) error {
			for _, stmt := range splitStatements(string(content)) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return 0, fmt.Errorf("execute migration %s: %w", path.Base(file), err)
		}
	}

	return len(files), nil
}

func splitStatements(script string) []string {
	var stmts []string
	for _, part := range strings.Split(script, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}
