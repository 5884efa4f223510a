package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Smallest valid PNG header bytes; enough for upload plumbing which does not
// decode image contents.
var pngPayload = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func TestSaveBase64CreatesAssetAndBlob(t *testing.T) {
	baseDir := t.TempDir()
	store := NewMemoryAssetStore()
	uploader := NewUploader(store, baseDir, 0)

	encoded := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngPayload)
	asset, err := uploader.SaveBase64(context.Background(), encoded, "image/png", "items")
	if err != nil {
		t.Fatalf("SaveBase64 returned error: %v", err)
	}
	if asset.ID == "" {
		t.Fatal("expected generated asset id")
	}
	if !strings.HasPrefix(asset.Path, "uploads/items/") || !strings.HasSuffix(asset.Path, ".png") {
		t.Fatalf("unexpected relative path %s", asset.Path)
	}
	if asset.MimeType != "image/png" {
		t.Fatalf("unexpected mime type %s", asset.MimeType)
	}
	if asset.SizeBytes != int64(len(pngPayload)) {
		t.Fatalf("unexpected size %d", asset.SizeBytes)
	}

	blob, err := os.ReadFile(filepath.Join(baseDir, filepath.FromSlash(asset.Path)))
	if err != nil {
		t.Fatalf("read blob: %v", err)
	}
	if !bytes.Equal(blob, pngPayload) {
		t.Fatal("blob contents do not match payload")
	}

	if _, ok, err := store.FindAsset(context.Background(), asset.ID); err != nil || !ok {
		t.Fatalf("expected asset row, ok=%v err=%v", ok, err)
	}
}

func TestSaveReaderInfersMimeFromFilename(t *testing.T) {
	uploader := NewUploader(NewMemoryAssetStore(), t.TempDir(), 0)
	asset, err := uploader.SaveReader(context.Background(), bytes.NewReader(pngPayload), "", "picture.PNG", "")
	if err != nil {
		t.Fatalf("SaveReader returned error: %v", err)
	}
	if asset.MimeType != "image/png" {
		t.Fatalf("expected inferred image/png, got %s", asset.MimeType)
	}
	if !strings.HasPrefix(asset.Path, "uploads/default/") {
		t.Fatalf("expected default category, got %s", asset.Path)
	}
}

func TestSaveRejectsUnsupportedMime(t *testing.T) {
	uploader := NewUploader(NewMemoryAssetStore(), t.TempDir(), 0)
	if _, err := uploader.SaveBase64(context.Background(), base64.StdEncoding.EncodeToString(pngPayload), "application/pdf", ""); err == nil {
		t.Fatal("expected error for unsupported mime type")
	}
	if _, err := uploader.SaveReader(context.Background(), bytes.NewReader(pngPayload), "", "document.pdf", ""); err == nil {
		t.Fatal("expected error for uninferable mime type")
	}
}

func TestSaveRejectsOversizedPayload(t *testing.T) {
	uploader := NewUploader(NewMemoryAssetStore(), t.TempDir(), 8)
	if _, err := uploader.SaveReader(context.Background(), bytes.NewReader(pngPayload), "image/png", "", "items"); err == nil {
		t.Fatal("expected error for oversized payload")
	}
}

func TestSaveRejectsInvalidCategory(t *testing.T) {
	uploader := NewUploader(NewMemoryAssetStore(), t.TempDir(), 0)
	for _, category := range []string{"../escape", "UPPER", "a b", "/abs"} {
		if _, err := uploader.SaveReader(context.Background(), bytes.NewReader(pngPayload), "image/png", "", category); err == nil {
			t.Fatalf("expected error for category %q", category)
		}
	}
}

func TestRemoveDeletesRowAndBlob(t *testing.T) {
	baseDir := t.TempDir()
	store := NewMemoryAssetStore()
	uploader := NewUploader(store, baseDir, 0)

	asset, err := uploader.SaveReader(context.Background(), bytes.NewReader(pngPayload), "image/png", "", "items")
	if err != nil {
		t.Fatalf("SaveReader returned error: %v", err)
	}
	if err := uploader.Remove(context.Background(), asset.ID); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if _, ok, err := store.FindAsset(context.Background(), asset.ID); err != nil || ok {
		t.Fatalf("expected row gone, ok=%v err=%v", ok, err)
	}
	if _, err := os.Stat(filepath.Join(baseDir, filepath.FromSlash(asset.Path))); !os.IsNotExist(err) {
		t.Fatalf("expected blob gone, err=%v", err)
	}
	if err := uploader.Remove(context.Background(), "unknown"); err != nil {
		t.Fatalf("Remove of unknown id returned error: %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"photo.png":               "photo.png",
		"../../etc/passwd":        "passwd",
		"dir\\evil.png":           "evil.png",
		"spaced name.png":         "spaced name.png",
		"ctrl\x00char.png":        "ctrlchar.png",
		"  trimmed.png  ":         "trimmed.png",
		"café.png":     "café.png",
		"/absolute/path/file.gif": "file.gif",
	}
	for input, want := range cases {
		if got := SanitizeFilename(input); got != want {
			t.Fatalf("SanitizeFilename(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestMimeTypeForFilename(t *testing.T) {
	if mimeType, ok := MimeTypeForFilename("a.jpeg"); !ok || mimeType != "image/jpeg" {
		t.Fatalf("unexpected result %s %v", mimeType, ok)
	}
	if _, ok := MimeTypeForFilename("archive.tar.gz"); ok {
		t.Fatal("expected no match for unsupported extension")
	}
	if !IsMimeTypeSupported("image/webp") {
		t.Fatal("expected image/webp to be supported")
	}
	if IsMimeTypeSupported("video/mp4") {
		t.Fatal("expected video/mp4 to be unsupported")
	}
}
