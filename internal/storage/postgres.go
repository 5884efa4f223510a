package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"assetgate/internal/models"
)

// PostgresConfig describes how the asset store initialises its Postgres
// connection pool.
type PostgresConfig struct {
	DSN                 string
	MaxConnections      int32
	MinConnections      int32
	MaxConnLifetime     time.Duration
	MaxConnIdleTime     time.Duration
	HealthCheckInterval time.Duration
	AcquireTimeout      time.Duration
	ApplicationName     string
}

// PostgresAssetStore persists asset metadata to a Postgres table, allowing
// multiple API replicas to share the catalogue.
type PostgresAssetStore struct {
	pool           *pgxpool.Pool
	acquireTimeout time.Duration
}

// NewPostgresAssetStore opens a Postgres-backed asset store and ensures the
// schema exists.
func NewPostgresAssetStore(ctx context.Context, cfg PostgresConfig) (*PostgresAssetStore, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres asset dsn required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres asset config: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = cfg.MaxConnections
	}
	if cfg.MinConnections > 0 {
		poolCfg.MinConns = cfg.MinConnections
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckInterval > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckInterval
	}
	if name := strings.TrimSpace(cfg.ApplicationName); name != "" {
		if poolCfg.ConnConfig.RuntimeParams == nil {
			poolCfg.ConnConfig.RuntimeParams = map[string]string{}
		}
		poolCfg.ConnConfig.RuntimeParams["application_name"] = name
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres asset pool: %w", err)
	}
	store := &PostgresAssetStore{pool: pool, acquireTimeout: cfg.AcquireTimeout}
	if err := store.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresAssetStore) ensureSchema(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS assets (
    id TEXT PRIMARY KEY,
    path TEXT NOT NULL,
    mime_type TEXT NOT NULL DEFAULT '',
    size_bytes BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`)
	if err != nil {
		return fmt.Errorf("ensure assets schema: %w", err)
	}
	return nil
}

func (s *PostgresAssetStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.acquireTimeout > 0 {
		return context.WithTimeout(ctx, s.acquireTimeout)
	}
	return ctx, func() {}
}

// FindAsset fetches the asset row for the provided identifier.
func (s *PostgresAssetStore) FindAsset(ctx context.Context, id string) (models.Asset, bool, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	row := s.pool.QueryRow(ctx, `
SELECT id, path, mime_type, size_bytes, created_at, updated_at
FROM assets
WHERE id = $1
`, id)
	var asset models.Asset
	if err := row.Scan(&asset.ID, &asset.Path, &asset.MimeType, &asset.SizeBytes, &asset.CreatedAt, &asset.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Asset{}, false, nil
		}
		return models.Asset{}, false, fmt.Errorf("find asset %s: %w", id, err)
	}
	return asset, true, nil
}

// CreateAsset stores or replaces the asset row.
func (s *PostgresAssetStore) CreateAsset(ctx context.Context, asset models.Asset) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	now := time.Now().UTC()
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = now
	}
	if asset.UpdatedAt.IsZero() {
		asset.UpdatedAt = now
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO assets (id, path, mime_type, size_bytes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (id) DO UPDATE SET
    path = EXCLUDED.path,
    mime_type = EXCLUDED.mime_type,
    size_bytes = EXCLUDED.size_bytes,
    updated_at = EXCLUDED.updated_at
`, asset.ID, asset.Path, asset.MimeType, asset.SizeBytes, asset.CreatedAt.UTC(), asset.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("create asset %s: %w", asset.ID, err)
	}
	return nil
}

// DeleteAsset removes the asset row.
func (s *PostgresAssetStore) DeleteAsset(ctx context.Context, id string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	if _, err := s.pool.Exec(ctx, `DELETE FROM assets WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete asset %s: %w", id, err)
	}
	return nil
}

// ListAssets returns all asset rows ordered by creation time.
func (s *PostgresAssetStore) ListAssets(ctx context.Context) ([]models.Asset, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	rows, err := s.pool.Query(ctx, `
SELECT id, path, mime_type, size_bytes, created_at, updated_at
FROM assets
ORDER BY created_at, id
`)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()
	var assets []models.Asset
	for rows.Next() {
		var asset models.Asset
		if err := rows.Scan(&asset.ID, &asset.Path, &asset.MimeType, &asset.SizeBytes, &asset.CreatedAt, &asset.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan asset row: %w", err)
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate asset rows: %w", err)
	}
	return assets, nil
}

// Ping verifies the Postgres connection.
func (s *PostgresAssetStore) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("postgres asset pool not configured")
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Close releases the Postgres connection pool resources.
func (s *PostgresAssetStore) Close(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		s.pool.Close()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
