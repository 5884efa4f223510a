package assets

import (
	"context"
	"time"
)

// TokenRecord is the value persisted for an outstanding access token. ExpiresAt
// is an absolute epoch-millisecond deadline; it is re-checked at resolve time
// instead of trusting the backing store's eviction timing.
type TokenRecord struct {
	AssetID   string `json:"assetId"`
	ExpiresAt int64  `json:"expiresAt"`
}

// TokenStore defines the persistence contract for access-token records. Save
// must arrange for the entry to become unreadable at or after the provided TTL;
// the broker treats eviction timing as advisory and enforces the deadline
// itself.
type TokenStore interface {
	Save(ctx context.Context, token string, record TokenRecord, ttl time.Duration) error
	Get(ctx context.Context, token string) (TokenRecord, bool, error)
	Delete(ctx context.Context, token string) error
}
