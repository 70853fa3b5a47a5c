// Package postgres provides Postgres-backed persistence for the
// collaboration graph.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/malirobot/musiclinks/internal/store"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// Store writes graph rows into Postgres.
type Store struct {
	pool dbPool
}

// New connects a pool and returns a Store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool dbPool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// GetArtist loads an artist row by id.
func (s *Store) GetArtist(ctx context.Context, id string) (store.ArtistRecord, bool, error) {
	if id == "" {
		return store.ArtistRecord{}, false, fmt.Errorf("artist id is required")
	}
	const query = `
SELECT id, name, page_url, image_url, created_at
FROM artists
WHERE id = $1`
	var rec store.ArtistRecord
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&rec.ID, &rec.Name, &rec.PageURL, &rec.ImageURL, &rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ArtistRecord{}, false, nil
	}
	if err != nil {
		return store.ArtistRecord{}, false, fmt.Errorf("select artist: %w", err)
	}
	return rec, true, nil
}

// SaveArtist upserts an artist row.
func (s *Store) SaveArtist(ctx context.Context, artist store.ArtistRecord) error {
	if artist.ID == "" {
		return fmt.Errorf("artist id is required")
	}
	const query = `
INSERT INTO artists (id, name, page_url, image_url, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	page_url = EXCLUDED.page_url,
	image_url = EXCLUDED.image_url`
	createdAt := artist.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	if _, err := s.pool.Exec(ctx, query,
		artist.ID, artist.Name, artist.PageURL, artist.ImageURL, createdAt,
	); err != nil {
		return fmt.Errorf("upsert artist: %w", err)
	}
	return nil
}

// ReleaseExists reports whether a release row exists.
func (s *Store) ReleaseExists(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, fmt.Errorf("release id is required")
	}
	const query = `SELECT EXISTS (SELECT 1 FROM releases WHERE id = $1)`
	var exists bool
	if err := s.pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check release: %w", err)
	}
	return exists, nil
}

// SaveRelease upserts a release row.
func (s *Store) SaveRelease(ctx context.Context, release store.ReleaseRecord) error {
	if release.ID == "" {
		return fmt.Errorf("release id is required")
	}
	const query = `
INSERT INTO releases (id, title, year, kind, page_url)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	year = EXCLUDED.year,
	kind = EXCLUDED.kind,
	page_url = EXCLUDED.page_url`
	if _, err := s.pool.Exec(ctx, query,
		release.ID, release.Title, release.Year, release.Kind, release.PageURL,
	); err != nil {
		return fmt.Errorf("upsert release: %w", err)
	}
	return nil
}

// SaveEdge upserts an artist-release edge.
func (s *Store) SaveEdge(ctx context.Context, edge store.Edge) error {
	if edge.ArtistID == "" || edge.ReleaseID == "" {
		return fmt.Errorf("edge artist id and release id are required")
	}
	const query = `
INSERT INTO artist_releases (artist_id, release_id, role, credit_type)
VALUES ($1, $2, $3, $4)
ON CONFLICT (artist_id, release_id, role, credit_type) DO NOTHING`
	if _, err := s.pool.Exec(ctx, query,
		edge.ArtistID, edge.ReleaseID, edge.Role, edge.CreditType,
	); err != nil {
		return fmt.Errorf("upsert edge: %w", err)
	}
	return nil
}
