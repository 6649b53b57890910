// Package repo contains all database access logic for the wine catalogue.
// WineRepo has a Postgres implementation (this file) and a SQLite one
// (sqlite.go). No business logic lives here, only SQL and type mapping.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pkordes/wine-catalog/backend/internal/domain"
)

// pgUniqueViolation is the SQLSTATE Postgres reports for a duplicate key.
const pgUniqueViolation = "23505"

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test, and unit
// tests to pass a pgxmock pool.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// WineRepo defines the persistence operations for wine entries.
// The store depends on this interface, not on a concrete backend.
type WineRepo interface {
	// Insert adds a new row. Returns domain.ErrConstraintViolation if a row
	// with the same ID already exists.
	Insert(ctx context.Context, wine domain.Wine) error

	// Update overwrites the four text fields of the row matching wine.ID.
	// Returns domain.ErrNotFound if no such row exists.
	Update(ctx context.Context, wine domain.Wine) error

	// Delete removes the row with the given ID.
	// Returns domain.ErrNotFound if it does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// GetByID retrieves a single wine by its primary key.
	// Returns domain.ErrNotFound if no wine with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Wine, error)

	// List returns every wine in storage (insertion) order.
	// The result is never nil.
	List(ctx context.Context) ([]domain.Wine, error)
}

// pgWineRepo is the Postgres implementation of WineRepo.
type pgWineRepo struct {
	db db
}

// NewWineRepo constructs a Postgres-backed WineRepo.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewWineRepo(db db) WineRepo {
	return &pgWineRepo{db: db}
}

// Insert adds a new wine row.
func (r *pgWineRepo) Insert(ctx context.Context, wine domain.Wine) error {
	const q = `
		INSERT INTO wines (id, name, alcohol_type, origin_country, producer)
		VALUES (@id, @name, @alcohol_type, @origin_country, @producer)`

	_, err := r.db.Exec(ctx, q, wineArgs(wine))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("repo.WineRepo.Insert: id %s: %w", wine.ID, domain.ErrConstraintViolation)
		}
		return fmt.Errorf("repo.WineRepo.Insert: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of a wine.
func (r *pgWineRepo) Update(ctx context.Context, wine domain.Wine) error {
	const q = `
		UPDATE wines
		SET name           = @name,
		    alcohol_type   = @alcohol_type,
		    origin_country = @origin_country,
		    producer       = @producer,
		    updated_at     = now()
		WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, wineArgs(wine))
	if err != nil {
		return fmt.Errorf("repo.WineRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.WineRepo.Update: %w", domain.ErrNotFound)
	}
	return nil
}

// Delete removes a wine by primary key.
func (r *pgWineRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM wines WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id})
	if err != nil {
		return fmt.Errorf("repo.WineRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.WineRepo.Delete: %w", domain.ErrNotFound)
	}
	return nil
}

// GetByID retrieves a wine by primary key.
func (r *pgWineRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Wine, error) {
	const q = `
		SELECT id, name, alcohol_type, origin_country, producer
		FROM wines
		WHERE id = @id`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id})
	result, err := scanWine(row)
	if err != nil {
		return domain.Wine{}, fmt.Errorf("repo.WineRepo.GetByID: %w", err)
	}
	return result, nil
}

// List returns all wines, oldest first.
func (r *pgWineRepo) List(ctx context.Context) ([]domain.Wine, error) {
	const q = `
		SELECT id, name, alcohol_type, origin_country, producer
		FROM wines
		ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("repo.WineRepo.List: %w", err)
	}
	defer rows.Close()

	wines := []domain.Wine{}
	for rows.Next() {
		w, err := scanWine(rows)
		if err != nil {
			return nil, fmt.Errorf("repo.WineRepo.List: scan: %w", err)
		}
		wines = append(wines, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repo.WineRepo.List: rows: %w", err)
	}
	return wines, nil
}

func wineArgs(w domain.Wine) pgx.NamedArgs {
	return pgx.NamedArgs{
		"id":             w.ID,
		"name":           w.Name,
		"alcohol_type":   w.AlcoholType,
		"origin_country": w.OriginCountry,
		"producer":       w.Producer,
	}
}

// scanner is satisfied by pgx.Row, pgx.Rows, *sql.Row and *sql.Rows, so the
// scan helpers work for QueryRow and Query calls on both backends.
type scanner interface {
	Scan(dest ...any) error
}

// scanWine maps a single Postgres row into a domain.Wine.
func scanWine(s scanner) (domain.Wine, error) {
	var (
		w  domain.Wine
		id pgtype.UUID
	)
	err := s.Scan(&id, &w.Name, &w.AlcoholType, &w.OriginCountry, &w.Producer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Wine{}, domain.ErrNotFound
		}
		return domain.Wine{}, err
	}
	w.ID = uuid.UUID(id.Bytes)
	return w, nil
}
