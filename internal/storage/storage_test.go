package storage

import (
	"context"
	"testing"
	"time"

	"assetgate/internal/models"
)

func TestMemoryAssetStoreLifecycle(t *testing.T) {
	store := NewMemoryAssetStore()
	asset := models.Asset{ID: "asset-1", Path: "uploads/items/a.png", MimeType: "image/png", SizeBytes: 9}
	if err := store.CreateAsset(context.Background(), asset); err != nil {
		t.Fatalf("CreateAsset returned error: %v", err)
	}

	got, ok, err := store.FindAsset(context.Background(), "asset-1")
	if err != nil {
		t.Fatalf("FindAsset returned error: %v", err)
	}
	if !ok {
		t.Fatal("expected asset to be present")
	}
	if got.Path != asset.Path || got.MimeType != asset.MimeType || got.SizeBytes != asset.SizeBytes {
		t.Fatalf("unexpected asset %+v", got)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be populated")
	}

	if err := store.DeleteAsset(context.Background(), "asset-1"); err != nil {
		t.Fatalf("DeleteAsset returned error: %v", err)
	}
	if _, ok, err := store.FindAsset(context.Background(), "asset-1"); err != nil || ok {
		t.Fatalf("expected asset to be gone, ok=%v err=%v", ok, err)
	}
	if err := store.DeleteAsset(context.Background(), "asset-1"); err != nil {
		t.Fatalf("DeleteAsset of unknown id returned error: %v", err)
	}
}

func TestMemoryAssetStoreListOrdering(t *testing.T) {
	store := NewMemoryAssetStore()
	base := time.Now().UTC()
	for i, id := range []string{"c", "a", "b"} {
		asset := models.Asset{ID: id, Path: id + ".png", CreatedAt: base.Add(time.Duration(-i) * time.Minute), UpdatedAt: base}
		if err := store.CreateAsset(context.Background(), asset); err != nil {
			t.Fatalf("CreateAsset returned error: %v", err)
		}
	}
	assets, err := store.ListAssets(context.Background())
	if err != nil {
		t.Fatalf("ListAssets returned error: %v", err)
	}
	if len(assets) != 3 {
		t.Fatalf("expected 3 assets, got %d", len(assets))
	}
	for i := 1; i < len(assets); i++ {
		if assets[i].CreatedAt.Before(assets[i-1].CreatedAt) {
			t.Fatalf("assets not ordered by creation time: %v", assets)
		}
	}
}
