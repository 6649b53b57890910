package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/pkordes/wine-catalog/backend/internal/domain"
)

// DBTX is the subset of database/sql used by the SQLite repo.
// Both *sql.DB and *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var wineColumns = []string{"id", "name", "alcohol_type", "origin_country", "producer"}

// sqliteWineRepo is the SQLite implementation of WineRepo.
// IDs are stored as canonical UUID text.
type sqliteWineRepo struct {
	db DBTX
	qb sq.StatementBuilderType
}

// NewSQLiteWineRepo constructs a WineRepo backed by a SQLite database opened
// through the modernc.org/sqlite driver.
func NewSQLiteWineRepo(db DBTX) WineRepo {
	return &sqliteWineRepo{
		db: db,
		qb: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}
}

// Insert adds a new wine row.
func (r *sqliteWineRepo) Insert(ctx context.Context, wine domain.Wine) error {
	query, args, err := r.qb.Insert("wines").
		Columns(wineColumns...).
		Values(wine.ID.String(), wine.Name, wine.AlcoholType, wine.OriginCountry, wine.Producer).
		ToSql()
	if err != nil {
		return fmt.Errorf("repo.SQLiteWineRepo.Insert: build: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("repo.SQLiteWineRepo.Insert: id %s: %w", wine.ID, domain.ErrConstraintViolation)
		}
		return fmt.Errorf("repo.SQLiteWineRepo.Insert: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of a wine.
func (r *sqliteWineRepo) Update(ctx context.Context, wine domain.Wine) error {
	query, args, err := r.qb.Update("wines").
		Set("name", wine.Name).
		Set("alcohol_type", wine.AlcoholType).
		Set("origin_country", wine.OriginCountry).
		Set("producer", wine.Producer).
		Set("updated_at", sq.Expr("strftime('%Y-%m-%dT%H:%M:%fZ', 'now')")).
		Where(sq.Eq{"id": wine.ID.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("repo.SQLiteWineRepo.Update: build: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("repo.SQLiteWineRepo.Update: %w", err)
	}
	return requireRow(res, "repo.SQLiteWineRepo.Update")
}

// Delete removes a wine by primary key.
func (r *sqliteWineRepo) Delete(ctx context.Context, id uuid.UUID) error {
	query, args, err := r.qb.Delete("wines").
		Where(sq.Eq{"id": id.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("repo.SQLiteWineRepo.Delete: build: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("repo.SQLiteWineRepo.Delete: %w", err)
	}
	return requireRow(res, "repo.SQLiteWineRepo.Delete")
}

// GetByID retrieves a wine by primary key.
func (r *sqliteWineRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Wine, error) {
	query, args, err := r.qb.Select(wineColumns...).
		From("wines").
		Where(sq.Eq{"id": id.String()}).
		ToSql()
	if err != nil {
		return domain.Wine{}, fmt.Errorf("repo.SQLiteWineRepo.GetByID: build: %w", err)
	}

	w, err := scanSQLiteWine(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return domain.Wine{}, fmt.Errorf("repo.SQLiteWineRepo.GetByID: %w", err)
	}
	return w, nil
}

// List returns all wines in rowid (insertion) order.
func (r *sqliteWineRepo) List(ctx context.Context) ([]domain.Wine, error) {
	query, args, err := r.qb.Select(wineColumns...).
		From("wines").
		OrderBy("rowid").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("repo.SQLiteWineRepo.List: build: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("repo.SQLiteWineRepo.List: %w", err)
	}
	defer rows.Close()

	wines := []domain.Wine{}
	for rows.Next() {
		w, err := scanSQLiteWine(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.SQLiteWineRepo.List: scan: %w", err)
		}
		wines = append(wines, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.SQLiteWineRepo.List: rows: %w", err)
	}
	return wines, nil
}

// scanSQLiteWine maps a single SQLite row into a domain.Wine.
// uuid.UUID implements sql.Scanner, so the text id parses during Scan.
func scanSQLiteWine(s scanner) (domain.Wine, error) {
	var w domain.Wine
	err := s.Scan(&w.ID, &w.Name, &w.AlcoholType, &w.OriginCountry, &w.Producer)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Wine{}, domain.ErrNotFound
		}
		return domain.Wine{}, err
	}
	return w, nil
}

func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	}
	return nil
}

// isConstraintError reports whether err is any SQLite constraint failure.
// Extended result codes keep the primary code in the low byte.
func isConstraintError(err error) bool {
	var se *sqlite.Error
	return errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}
