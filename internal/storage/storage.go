// Package storage persists asset metadata. Two drivers are provided: an
// in-memory store for development and tests, and a Postgres store for
// multi-replica deployments. Blob bytes live on disk under the configured
// upload root; this package owns only the metadata rows and the upload path
// that creates both together.
package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"assetgate/internal/models"
)

// AssetStore defines the persistence contract for asset metadata.
type AssetStore interface {
	FindAsset(ctx context.Context, id string) (models.Asset, bool, error)
	CreateAsset(ctx context.Context, asset models.Asset) error
	DeleteAsset(ctx context.Context, id string) error
	ListAssets(ctx context.Context) ([]models.Asset, error)
}

// MemoryAssetStore keeps asset rows in-memory. It is safe for concurrent use
// and primarily intended for development or single-instance deployments.
type MemoryAssetStore struct {
	mu     sync.RWMutex
	assets map[string]models.Asset
}

// NewMemoryAssetStore constructs an in-memory store implementation.
func NewMemoryAssetStore() *MemoryAssetStore {
	return &MemoryAssetStore{assets: make(map[string]models.Asset)}
}

// FindAsset retrieves the asset row for the provided identifier.
func (s *MemoryAssetStore) FindAsset(_ context.Context, id string) (models.Asset, bool, error) {
	s.mu.RLock()
	asset, ok := s.assets[id]
	s.mu.RUnlock()
	return asset, ok, nil
}

// CreateAsset stores or replaces the asset row.
func (s *MemoryAssetStore) CreateAsset(_ context.Context, asset models.Asset) error {
	now := time.Now().UTC()
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = now
	}
	if asset.UpdatedAt.IsZero() {
		asset.UpdatedAt = now
	}
	s.mu.Lock()
	s.assets[asset.ID] = asset
	s.mu.Unlock()
	return nil
}

// DeleteAsset removes the asset row. Deleting an unknown id is not an error.
func (s *MemoryAssetStore) DeleteAsset(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.assets, id)
	s.mu.Unlock()
	return nil
}

// ListAssets returns all asset rows ordered by creation time.
func (s *MemoryAssetStore) ListAssets(context.Context) ([]models.Asset, error) {
	s.mu.RLock()
	assets := make([]models.Asset, 0, len(s.assets))
	for _, asset := range s.assets {
		assets = append(assets, asset)
	}
	s.mu.RUnlock()
	sort.Slice(assets, func(i, j int) bool {
		if assets[i].CreatedAt.Equal(assets[j].CreatedAt) {
			return assets[i].ID < assets[j].ID
		}
		return assets[i].CreatedAt.Before(assets[j].CreatedAt)
	})
	return assets, nil
}

// Ping always reports success for the in-memory asset store.
func (s *MemoryAssetStore) Ping(context.Context) error {
	return nil
}
