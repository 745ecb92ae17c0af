package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrations embed.FS

func Open(connStr string) (*sql.DB, error) {
	dbConn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return dbConn, nil
}

// Migrate applies every schema file in order. Files are written to be
// re-runnable.
func Migrate(ctx context.Context, dbConn *sql.DB) error {
	files, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(files)

	for _, f := range files {
		stmt, err := migrations.ReadFile(f)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", f, err)
		}
		if _, err := dbConn.ExecContext(ctx, string(stmt)); err != nil {
			return fmt.Errorf("failed to apply %s: %w", f, err)
		}
	}
	return nil
}
