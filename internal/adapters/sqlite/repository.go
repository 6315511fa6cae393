// Package sqlite provides the SQLite-backed work area repository.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/jobrunner/sweeper/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS work_areas (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	latlgs     TEXT NOT NULL,
	datum      TEXT NOT NULL,
	center_lng REAL NOT NULL,
	center_lat REAL NOT NULL,
	map_grade  INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

const selectColumns = `id, name, latlgs, datum, center_lng, center_lat, map_grade, created_at, updated_at`

// Repository implements the WorkAreaRepository port on SQLite.
type Repository struct {
	db *sql.DB
}

// Open opens (and if needed creates) the SQLite database at dsn and applies the schema.
func Open(ctx context.Context, dsn string) (*Repository, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &domain.StorageError{Operation: "open", Key: dsn, Err: err}
	}
	// SQLite serializes writers; a single connection also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &domain.StorageError{Operation: "ping", Key: dsn, Err: err}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, &domain.StorageError{Operation: "migrate", Key: dsn, Err: err}
	}

	return &Repository{db: db}, nil
}

// Create inserts a work area and sets its ID and timestamps.
func (r *Repository) Create(ctx context.Context, wa *domain.WorkArea) error {
	latlgs, err := domain.EncodeCoordinateSet(wa.Vertices)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO work_areas (name, latlgs, datum, center_lng, center_lat, map_grade, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		wa.Name, latlgs, string(wa.Datum), wa.Center.Lng, wa.Center.Lat, wa.MapGrade, now, now)
	if err != nil {
		return mapError("insert", wa.Name, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return &domain.StorageError{Operation: "insert", Key: wa.Name, Err: err}
	}

	wa.ID = id
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
	res, err := r.db.ExecContext(ctx,
		`UPDATE work_areas
		 SET name = ?, latlgs = ?, datum = ?, center_lng = ?, center_lat = ?, map_grade = ?, updated_at = ?
		 WHERE id = ?`,
		wa.Name, latlgs, string(wa.Datum), wa.Center.Lng, wa.Center.Lat, wa.MapGrade, now, wa.ID)
	if err != nil {
		return mapError("update", wa.Name, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return &domain.StorageError{Operation: "update", Key: wa.Name, Err: err}
	}
	if n == 0 {
		return domain.ErrWorkAreaNotFound
	}

	wa.UpdatedAt = now
	return nil
}

// Get returns a work area by ID.
func (r *Repository) Get(ctx context.Context, id int64) (*domain.WorkArea, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM work_areas WHERE id = ?`, id)

	wa, err := scanWorkArea(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrWorkAreaNotFound
	}
	if err != nil {
		return nil, err
	}
	return wa, nil
}

// List returns all work areas ordered by ID.
func (r *Repository) List(ctx context.Context) ([]domain.WorkArea, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM work_areas ORDER BY id`)
	if err != nil {
		return nil, &domain.StorageError{Operation: "list", Err: err}
	}
	defer func() { _ = rows.Close() }()

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
	res, err := r.db.ExecContext(ctx, `DELETE FROM work_areas WHERE id = ?`, id)
	if err != nil {
		return &domain.StorageError{Operation: "delete", Key: fmt.Sprint(id), Err: err}
	}

	n, err := res.RowsAffected()
	if err != nil {
		return &domain.StorageError{Operation: "delete", Key: fmt.Sprint(id), Err: err}
	}
	if n == 0 {
		return domain.ErrWorkAreaNotFound
	}
	return nil
}

// Ping checks that the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database.
func (r *Repository) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanWorkArea(s scanner) (*domain.WorkArea, error) {
	var (
		wa     domain.WorkArea
		latlgs string
		datum  string
	)
	err := s.Scan(&wa.ID, &wa.Name, &latlgs, &datum,
		&wa.Center.Lng, &wa.Center.Lat, &wa.MapGrade, &wa.CreatedAt, &wa.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
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
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%q: %w", key, domain.ErrWorkAreaExists)
	}
	return &domain.StorageError{Operation: op, Key: key, Err: err}
}
