// Package assets implements the secure asset delivery core: minting short-lived
// opaque access tokens for stored assets and redeeming them into streamable
// file handles. Durable state lives entirely in the injected token and metadata
// stores, so brokers are safe to share across goroutines and replicas.
package assets

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"assetgate/internal/models"
)

// SecurePathPrefix is the URL prefix under which issued tokens are served.
const SecurePathPrefix = "/assets/secure/"

// DefaultTokenTTL bounds token validity when the caller does not request one.
const DefaultTokenTTL = 5 * time.Minute

var (
	// ErrTokenInvalid covers both unknown and expired tokens. The two cases are
	// deliberately indistinguishable so callers cannot probe token validity.
	ErrTokenInvalid = errors.New("invalid or expired token")
	// ErrAssetNotFound indicates the referenced asset does not exist.
	ErrAssetNotFound = errors.New("asset not found")
	// ErrAssetFileMissing indicates the metadata row exists but the blob is
	// gone from disk.
	ErrAssetFileMissing = errors.New("asset file not found")
)

// AssetFinder is the read-only slice of the metadata store the broker needs.
type AssetFinder interface {
	FindAsset(ctx context.Context, id string) (models.Asset, bool, error)
}

// Content carries everything the delivery layer needs to stream an asset back
// to a client: the resolved physical path and accurate response headers.
type Content struct {
	AssetID   string
	Path      string
	MimeType  string
	SizeBytes int64
}

// BrokerOption configures a Broker instance.
type BrokerOption func(*Broker)

// WithTokenStore injects a custom TokenStore implementation.
func WithTokenStore(store TokenStore) BrokerOption {
	return func(b *Broker) {
		b.store = store
	}
}

// WithTokenLength sets the random byte length used for newly minted tokens.
func WithTokenLength(length int) BrokerOption {
	return func(b *Broker) {
		if length > 0 {
			b.tokenLength = length
		}
	}
}

// WithDefaultTTL overrides the TTL applied when Issue receives a non-positive one.
func WithDefaultTTL(ttl time.Duration) BrokerOption {
	return func(b *Broker) {
		if ttl > 0 {
			b.defaultTTL = ttl
		}
	}
}

// WithClock substitutes the wall-clock source, primarily for tests.
func WithClock(clock func() time.Time) BrokerOption {
	return func(b *Broker) {
		if clock != nil {
			b.clock = clock
		}
	}
}

// Broker coordinates token issuance and redemption against a backing token
// store and the asset metadata store.
type Broker struct {
	assets       AssetFinder
	store        TokenStore
	baseDir      string
	defaultTTL   time.Duration
	tokenLength  int
	clock        func() time.Time
	tokenFactory func(int) (string, error)
}

// NewBroker constructs a Broker serving blobs rooted at baseDir. The broker
// defaults to a 5-minute TTL, 32-byte tokens, and an in-memory token store for
// local development when no store is supplied.
func NewBroker(finder AssetFinder, baseDir string, opts ...BrokerOption) *Broker {
	broker := &Broker{
		assets:       finder,
		baseDir:      baseDir,
		defaultTTL:   DefaultTokenTTL,
		tokenLength:  32,
		clock:        time.Now,
		tokenFactory: generateToken,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(broker)
		}
	}
	if broker.store == nil {
		broker.store = NewMemoryTokenStore()
	}
	return broker
}

// Issue mints a fresh access token for the asset and records it with the
// provided TTL. Every call produces an independent token; multiple outstanding
// tokens for the same asset expire individually. The returned path embeds the
// token and carries no asset identity.
func (b *Broker) Issue(ctx context.Context, assetID string, ttl time.Duration) (string, time.Time, error) {
	assetID = strings.TrimSpace(assetID)
	if assetID == "" {
		return "", time.Time{}, ErrAssetNotFound
	}
	if _, ok, err := b.assets.FindAsset(ctx, assetID); err != nil {
		return "", time.Time{}, fmt.Errorf("look up asset %s: %w", assetID, err)
	} else if !ok {
		return "", time.Time{}, ErrAssetNotFound
	}
	if ttl <= 0 {
		ttl = b.defaultTTL
	}
	token, err := b.tokenFactory(b.tokenLength)
	if err != nil {
		return "", time.Time{}, err
	}
	expiresAt := b.clock().Add(ttl)
	record := TokenRecord{AssetID: assetID, ExpiresAt: expiresAt.UnixMilli()}
	if err := b.store.Save(ctx, token, record, ttl); err != nil {
		return "", time.Time{}, err
	}
	return SecurePathPrefix + token, expiresAt, nil
}

// Resolve redeems a token into a streamable content handle. The lookup is
// read-only: a token stays valid for repeated reads until its TTL elapses.
func (b *Broker) Resolve(ctx context.Context, token string) (Content, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Content{}, ErrTokenInvalid
	}
	record, ok, err := b.store.Get(ctx, token)
	if err != nil {
		return Content{}, err
	}
	if !ok {
		return Content{}, ErrTokenInvalid
	}
	// The store's eviction timing is advisory; the recorded deadline decides.
	if b.clock().UnixMilli() > record.ExpiresAt {
		return Content{}, ErrTokenInvalid
	}
	asset, ok, err := b.assets.FindAsset(ctx, record.AssetID)
	if err != nil {
		return Content{}, fmt.Errorf("look up asset %s: %w", record.AssetID, err)
	}
	if !ok {
		// The asset may have been deleted after issuance; a legitimate race.
		return Content{}, ErrAssetNotFound
	}
	if asset.Path == "" || !filepath.IsLocal(filepath.FromSlash(asset.Path)) {
		return Content{}, ErrAssetFileMissing
	}
	path := filepath.Join(b.baseDir, filepath.FromSlash(asset.Path))
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Content{}, ErrAssetFileMissing
		}
		return Content{}, fmt.Errorf("stat asset file: %w", err)
	}
	if info.IsDir() {
		return Content{}, ErrAssetFileMissing
	}
	mimeType := asset.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	size := asset.SizeBytes
	if size <= 0 {
		size = info.Size()
	}
	return Content{AssetID: asset.ID, Path: path, MimeType: mimeType, SizeBytes: size}, nil
}

// Revoke deletes the token record ahead of its natural expiry. Unknown tokens
// revoke successfully.
func (b *Broker) Revoke(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	return b.store.Delete(ctx, token)
}

// Ping verifies the underlying token store is reachable when it exposes a ping
// method.
func (b *Broker) Ping(ctx context.Context) error {
	if b == nil || b.store == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if pinger, ok := b.store.(interface{ Ping(context.Context) error }); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

func generateToken(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}
