// Package postgres provides the PostgreSQL-backed work area repository.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jobrunner/sweeper/internal/domain"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS work_areas (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	latlgs     TEXT NOT NULL,
	datum      TEXT NOT NULL,
	center_lng DOUBLE PRECISION NOT NULL,
	center_lat DOUBLE PRECISION NOT NULL,
	map_grade  INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

const selectColumns = `id, name, latlgs, datum, center_lng, center_lat, map_grade, created_at, updated_at`

// Options configures the connection pool.
type Options struct {
	MaxConns int32
}

// Repository implements the WorkAreaRepository port with pgx.
type Repository struct {
	pool *pgxpool.Pool
}

// Open connects to PostgreSQL and applies the schema.
func Open(ctx context.Context, dsn string, opts Options) (*Repository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, &domain.ConfigError{Field: "database.dsn", Message: fmt.Sprintf("parse dsn: %v", err)}
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, &domain.StorageError{Operation: "connect", Err: err}
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &domain.StorageError{Operation: "ping", Err: err}
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, &domain.StorageError{Operation: "migrate", Err: err}
	}

	return &Repository{pool: pool}, nil
}

// Create inserts a work area and sets its ID and timestamps.
func (r *Repository) Create(ctx context.Context, wa *domain.WorkArea) error {
	latlgs, err := domain.EncodeCoordinateSet(wa.Vertices)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	err = r.pool.QueryRow(ctx, `
		INSERT INTO work_areas (name, latlgs, datum, center_lng, center_lat, map_grade, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		RETURNING id
	`, wa.Name, latlgs, string(wa.Datum), wa.Center.Lng, wa.Center.Lat, wa.MapGrade, now).Scan(&wa.ID)
	if err != nil {
		return mapError("insert", wa.Name, err)
	}

	wa.CreatedAt = now
	wa.UpdatedAt = now
	return nil
}

// Update replaces the stored work area with the same ID.
func (r *Repository) Update(ctx context.Context, wa *domain.WorkArea) error {
	latlgs, err := domain.EncodeCoordinateSet(wa.Vertices)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	tag, err := r.pool.Exec(ctx, `
		UPDATE work_areas
		SET name = $1, latlgs = $2, datum = $3, center_lng = $4, center_lat = $5, map_grade = $6, updated_at = $7
		WHERE id = $8
	`, wa.Name, latlgs, string(wa.Datum), wa.Center.Lng, wa.Center.Lat, wa.MapGrade, now, wa.ID)
	if err != nil {
		return mapError("update", wa.Name, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrWorkAreaNotFound
	}

	wa.UpdatedAt = now
	return nil
}

// Get returns a work area by ID.
func (r *Repository) Get(ctx context.Context, id int64) (*domain.WorkArea, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM work_areas WHERE id = $1`, id)
	wa, err := scanWorkArea(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrWorkAreaNotFound
	}
	return wa, err
}

// List returns all work areas ordered by ID.
func (r *Repository) List(ctx context.Context) ([]domain.WorkArea, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+selectColumns+` FROM work_areas ORDER BY id`)
	if err != nil {
		return nil, &domain.StorageError{Operation: "list", Err: err}
	}
	defer rows.Close()

	areas := make([]domain.WorkArea, 0)
	for rows.Next() {
		wa, err := scanWorkArea(rows)
		if err != nil {
			return nil, err
		}
		areas = append(areas, *wa)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Operation: "list", Err: err}
	}
	return areas, nil
}

// Delete removes a work area.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM work_areas WHERE id = $1`, id)
	if err != nil {
		return &domain.StorageError{Operation: "delete", Key: fmt.Sprint(id), Err: err}
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrWorkAreaNotFound
	}
	return nil
}

// Ping checks that the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close releases pool resources.
func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func scanWorkArea(row pgx.Row) (*domain.WorkArea, error) {
	var (
		wa     domain.WorkArea
		latlgs string
		datum  string
	)
	err := row.Scan(&wa.ID, &wa.Name, &latlgs, &datum,
		&wa.Center.Lng, &wa.Center.Lat, &wa.MapGrade, &wa.CreatedAt, &wa.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, &domain.StorageError{Operation: "scan", Err: err}
	}

	vertices, err := domain.ParseCoordinateSet(latlgs)
	if err != nil {
		return nil, &domain.StorageError{Operation: "decode", Key: wa.Name, Err: fmt.Errorf("corrupt coordinate set: %v", err)}
	}
	wa.Vertices = vertices
	wa.Datum = domain.Datum(datum)

	return &wa, nil
}

func mapError(op, key string, err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%q: %w", key, domain.ErrWorkAreaExists)
	}
	return &domain.StorageError{Operation: op, Key: key, Err: err}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
