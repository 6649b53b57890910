// Package database opens the durable store backing the wine catalogue and
// brings its schema up to date with the embedded goose migrations.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"net/url"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" driver for database/sql

	"github.com/pkordes/wine-catalog/backend/migrations"
)

// sqlitePragmas are applied to every connection opened by OpenSQLite.
// WAL lets readers proceed while the single writer commits.
var sqlitePragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"foreign_keys(1)",
	"synchronous(NORMAL)",
}

// OpenSQLite opens the SQLite database at path and applies all pending
// migrations. Pass ":memory:" for a throwaway database.
//
// The pool is limited to one connection: SQLite serialises writers anyway,
// and an in-memory database only exists on the connection that created it.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	q := url.Values{}
	for _, p := range sqlitePragmas {
		q.Add("_pragma", p)
	}

	db, err := sql.Open("sqlite", path+"?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("database.OpenSQLite: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database.OpenSQLite: ping %s: %w", path, err)
	}

	if err := Migrate(ctx, goose.DialectSQLite3, db, migrations.SQLite()); err != nil {
		db.Close()
		return nil, fmt.Errorf("database.OpenSQLite: %w", err)
	}
	return db, nil
}

// OpenPostgres creates a pgxpool.Pool for databaseURL, verifies the server is
// reachable and applies all pending migrations.
func OpenPostgres(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	// New() does not open connections immediately; Ping does.
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("database.OpenPostgres: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database.OpenPostgres: ping: %w", err)
	}

	// goose needs database/sql; borrow a handle backed by the same pool.
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := Migrate(ctx, goose.DialectPostgres, db, migrations.Postgres()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database.OpenPostgres: %w", err)
	}
	return pool, nil
}

// Migrate applies every pending migration in fsys to db.
func Migrate(ctx context.Context, dialect goose.Dialect, db *sql.DB, fsys fs.FS) error {
	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return fmt.Errorf("create goose provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}
