package storage

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"assetgate/internal/models"
)

// DefaultMaxUploadBytes bounds a single upload payload.
const DefaultMaxUploadBytes = 10 << 20

var mimeToExtensions = map[string][]string{
	"image/apng":    {".apng", ".png"},
	"image/avif":    {".avif"},
	"image/gif":     {".gif"},
	"image/jpeg":    {".jpg", ".jpeg", ".jfif", ".pjpeg", ".pjp"},
	"image/png":     {".png"},
	"image/svg+xml": {".svg"},
	"image/webp":    {".webp"},
}

var extensionToMime = map[string]string{
	".apng":  "image/apng",
	".avif":  "image/avif",
	".gif":   "image/gif",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".jfif":  "image/jpeg",
	".pjpeg": "image/jpeg",
	".pjp":   "image/jpeg",
	".png":   "image/png",
	".svg":   "image/svg+xml",
	".webp":  "image/webp",
}

var dataURIPrefix = regexp.MustCompile(`^data:.*?;base64,`)

var categoryPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// Uploader writes asset payloads below the blob root and records the matching
// metadata row. Blob write and row insert are ordered so a store failure never
// leaves a row pointing at a missing file; an orphaned blob is tolerable.
type Uploader struct {
	store    AssetStore
	baseDir  string
	maxBytes int64
}

// NewUploader constructs an Uploader rooted at baseDir.
func NewUploader(store AssetStore, baseDir string, maxBytes int64) *Uploader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &Uploader{store: store, baseDir: baseDir, maxBytes: maxBytes}
}

// SupportedMimeTypes lists the accepted image MIME types.
func SupportedMimeTypes() []string {
	types := make([]string, 0, len(mimeToExtensions))
	for mimeType := range mimeToExtensions {
		types = append(types, mimeType)
	}
	return types
}

// IsMimeTypeSupported reports whether the MIME type is accepted for upload.
func IsMimeTypeSupported(mimeType string) bool {
	_, ok := mimeToExtensions[strings.ToLower(strings.TrimSpace(mimeType))]
	return ok
}

// MimeTypeForFilename infers a supported MIME type from a filename extension.
func MimeTypeForFilename(name string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(SanitizeFilename(name)))
	mimeType, ok := extensionToMime[ext]
	return mimeType, ok
}

// SanitizeFilename normalises a client-supplied filename to NFC and strips
// path separators and control characters, keeping only the final path element.
func SanitizeFilename(name string) string {
	name = norm.NFC.String(name)
	name = strings.ReplaceAll(name, "\\", "/")
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	var builder strings.Builder
	for _, r := range name {
		if unicode.IsControl(r) {
			continue
		}
		builder.WriteRune(r)
	}
	return strings.TrimSpace(builder.String())
}

// SaveBase64 decodes a base64 payload (optionally carrying a data-URI prefix)
// and stores it under the provided category.
func (u *Uploader) SaveBase64(ctx context.Context, encoded, mimeType, category string) (models.Asset, error) {
	encoded = dataURIPrefix.ReplaceAllString(strings.TrimSpace(encoded), "")
	payload, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return models.Asset{}, fmt.Errorf("decode base64 payload: %w", err)
	}
	return u.save(ctx, payload, mimeType, category)
}

// SaveReader stores a streamed payload (e.g. a multipart file part) under the
// provided category. When mimeType is empty it is inferred from originalName.
func (u *Uploader) SaveReader(ctx context.Context, r io.Reader, mimeType, originalName, category string) (models.Asset, error) {
	if mimeType = strings.TrimSpace(mimeType); mimeType == "" || mimeType == "application/octet-stream" {
		inferred, ok := MimeTypeForFilename(originalName)
		if !ok {
			return models.Asset{}, fmt.Errorf("unable to determine mime type for %q", SanitizeFilename(originalName))
		}
		mimeType = inferred
	}
	payload, err := io.ReadAll(io.LimitReader(r, u.maxBytes+1))
	if err != nil {
		return models.Asset{}, fmt.Errorf("read upload payload: %w", err)
	}
	return u.save(ctx, payload, mimeType, category)
}

func (u *Uploader) save(ctx context.Context, payload []byte, mimeType, category string) (models.Asset, error) {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	extensions, ok := mimeToExtensions[mimeType]
	if !ok {
		return models.Asset{}, fmt.Errorf("unsupported mime type %q", mimeType)
	}
	if len(payload) == 0 {
		return models.Asset{}, fmt.Errorf("upload payload is empty")
	}
	if int64(len(payload)) > u.maxBytes {
		return models.Asset{}, fmt.Errorf("upload exceeds %d bytes", u.maxBytes)
	}
	category = strings.TrimSpace(category)
	if category == "" {
		category = "default"
	}
	if !categoryPattern.MatchString(category) {
		return models.Asset{}, fmt.Errorf("invalid category %q", category)
	}

	name, err := randomFilename()
	if err != nil {
		return models.Asset{}, err
	}
	relPath := filepath.ToSlash(filepath.Join("uploads", category, name+extensions[0]))
	absPath := filepath.Join(u.baseDir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return models.Asset{}, fmt.Errorf("create upload directory: %w", err)
	}
	if err := os.WriteFile(absPath, payload, 0o644); err != nil {
		return models.Asset{}, fmt.Errorf("write upload payload: %w", err)
	}

	now := time.Now().UTC()
	asset := models.Asset{
		ID:        uuid.NewString(),
		Path:      relPath,
		MimeType:  mimeType,
		SizeBytes: int64(len(payload)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.store.CreateAsset(ctx, asset); err != nil {
		_ = os.Remove(absPath)
		return models.Asset{}, err
	}
	return asset, nil
}

// Remove deletes the metadata row and best-effort removes the blob. The row
// goes first so a partially failed removal cannot leave a servable record
// pointing at a deleted file.
func (u *Uploader) Remove(ctx context.Context, id string) error {
	asset, ok, err := u.store.FindAsset(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := u.store.DeleteAsset(ctx, id); err != nil {
		return err
	}
	if asset.Path != "" && filepath.IsLocal(filepath.FromSlash(asset.Path)) {
		_ = os.Remove(filepath.Join(u.baseDir, filepath.FromSlash(asset.Path)))
	}
	return nil
}

func randomFilename() (string, error) {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generate filename: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
