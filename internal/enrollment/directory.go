// Package enrollment resolves which enrolled ad-tech operates a registration
// URI. The directory lives in its own Postgres database, read through pgx,
// and is fronted by a Redis cache.
package enrollment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"registrar/internal/registration/fetcher"
	"registrar/internal/registration/ports"
)

const directorySchema = `
CREATE TABLE IF NOT EXISTS enrollments (
    registration_site TEXT PRIMARY KEY,
    enrollment_id     TEXT        NOT NULL,
    blocked           BOOLEAN     NOT NULL DEFAULT FALSE,
    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS enrollments_by_id ON enrollments (enrollment_id);`

var _ ports.EnrollmentLookup = (*DirectoryStore)(nil)

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// DirectoryStore maps registration sites to enrollment IDs.
type DirectoryStore struct {
	db querier
}

// Connect opens a pgx pool on dsn and pings it.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse enrollment dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping enrollment directory: %w", err)
	}
	return pool, nil
}

// NewDirectoryStore wraps a pool (or any pgx querier).
func NewDirectoryStore(db querier) *DirectoryStore {
	return &DirectoryStore{db: db}
}

// Migrate creates the enrollments table.
func (d *DirectoryStore) Migrate(ctx context.Context) error {
	if _, err := d.db.Exec(ctx, directorySchema); err != nil {
		return fmt.Errorf("apply enrollment schema: %w", err)
	}
	return nil
}

// Enroll records enrollmentID as the operator of the site of registrationURI.
func (d *DirectoryStore) Enroll(ctx context.Context, enrollmentID, registrationURI string) error {
	site, err := fetcher.Site(registrationURI)
	if err != nil {
		return fmt.Errorf("enroll %s: %w", enrollmentID, err)
	}
	_, err = d.db.Exec(ctx, `INSERT INTO enrollments (registration_site, enrollment_id)
		VALUES ($1, $2)
		ON CONFLICT (registration_site) DO UPDATE
		SET enrollment_id = EXCLUDED.enrollment_id, blocked = FALSE, updated_at = now()`,
		site, enrollmentID)
	if err != nil {
		return fmt.Errorf("enroll %s: %w", enrollmentID, err)
	}
	return nil
}

// Block keeps the site's row but stops it resolving.
func (d *DirectoryStore) Block(ctx context.Context, registrationURI string) error {
	site, err := fetcher.Site(registrationURI)
	if err != nil {
		return err
	}
	if _, err := d.db.Exec(ctx, `UPDATE enrollments SET blocked = TRUE, updated_at = now()
		WHERE registration_site = $1`, site); err != nil {
		return fmt.Errorf("block %s: %w", site, err)
	}
	return nil
}

// Resolve looks up the enrollment for the site of uri.
func (d *DirectoryStore) Resolve(ctx context.Context, uri string) (string, bool, error) {
	site, err := fetcher.Site(uri)
	if err != nil {
		return "", false, nil
	}
	var enrollmentID string
	err = d.db.QueryRow(ctx, `SELECT enrollment_id FROM enrollments
		WHERE registration_site = $1 AND NOT blocked`, site).Scan(&enrollmentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query enrollment for %s: %w", site, err)
	}
	return enrollmentID, true, nil
}
