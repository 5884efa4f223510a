package assets

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const defaultTokenKeyPrefix = "asset_token:"

// RedisTLSConfig controls TLS behaviour for Redis connections.
type RedisTLSConfig struct {
	CAFile             string
	CertFile           string
	KeyFile            string
	ServerName         string
	InsecureSkipVerify bool
}

// RedisTokenStoreConfig configures the Redis-backed token store.
type RedisTokenStoreConfig struct {
	Addr         string
	Addrs        []string
	Username     string
	Password     string
	DB           int
	KeyPrefix    string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MasterName   string
	TLS          RedisTLSConfig
}

// NewRedisTokenStore initialises a token store backed by Redis string keys with
// per-key TTL. The caller is responsible for ensuring the Redis instance is
// reachable.
func NewRedisTokenStore(cfg RedisTokenStoreConfig) (*RedisTokenStore, error) {
	addrs := make([]string, 0, len(cfg.Addrs)+1)
	for _, addr := range cfg.Addrs {
		if trimmed := strings.TrimSpace(addr); trimmed != "" {
			addrs = append(addrs, trimmed)
		}
	}
	if addr := strings.TrimSpace(cfg.Addr); addr != "" {
		addrs = append(addrs, addr)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("redis addr is required")
	}
	prefix := strings.TrimSpace(cfg.KeyPrefix)
	if prefix == "" {
		prefix = defaultTokenKeyPrefix
	}
	tlsConfig, err := buildTLSConfig(cfg.TLS)
	if err != nil {
		return nil, err
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:        addrs,
		MasterName:   strings.TrimSpace(cfg.MasterName),
		Username:     strings.TrimSpace(cfg.Username),
		Password:     cfg.Password,
		DB:           cfg.DB,
		TLSConfig:    tlsConfig,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MaxRetries:   2,
	})
	return &RedisTokenStore{client: client, prefix: prefix}, nil
}

// RedisTokenStore persists token records as JSON values under prefixed Redis
// keys, letting the server's TTL eviction reclaim expired entries.
type RedisTokenStore struct {
	client redis.UniversalClient
	prefix string
}

func (s *RedisTokenStore) key(token string) string {
	return s.prefix + token
}

// Save writes the record with the provided TTL.
func (s *RedisTokenStore) Save(ctx context.Context, token string, record TokenRecord, ttl time.Duration) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode token record: %w", err)
	}
	if err := s.client.Set(ctx, s.key(token), payload, ttl).Err(); err != nil {
		return fmt.Errorf("store token record: %w", err)
	}
	return nil
}

// Get fetches and decodes the record for the provided token. A missing key is
// reported as absent, not as an error.
func (s *RedisTokenStore) Get(ctx context.Context, token string) (TokenRecord, bool, error) {
	payload, err := s.client.Get(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return TokenRecord{}, false, nil
		}
		return TokenRecord{}, false, fmt.Errorf("read token record: %w", err)
	}
	var record TokenRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return TokenRecord{}, false, fmt.Errorf("decode token record: %w", err)
	}
	if record.AssetID == "" || record.ExpiresAt <= 0 {
		return TokenRecord{}, false, fmt.Errorf("token record is malformed")
	}
	return record, true, nil
}

// Delete removes the token key.
func (s *RedisTokenStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("delete token record: %w", err)
	}
	return nil
}

// Ping verifies the Redis connection.
func (s *RedisTokenStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying Redis client.
func (s *RedisTokenStore) Close() error {
	return s.client.Close()
}

func buildTLSConfig(cfg RedisTLSConfig) (*tls.Config, error) {
	if cfg.CAFile == "" && cfg.CertFile == "" && cfg.KeyFile == "" && !cfg.InsecureSkipVerify {
		return nil, nil
	}
	tlsCfg := &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}
	if cfg.ServerName != "" {
		tlsCfg.ServerName = cfg.ServerName
	}
	if cfg.CAFile != "" {
		caPath := filepath.Clean(cfg.CAFile)
		pemData, err := os.ReadFile(caPath)
		if err != nil {
			return nil, fmt.Errorf("read redis tls ca: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pemData) {
			return nil, fmt.Errorf("redis tls ca is invalid")
		}
		tlsCfg.RootCAs = pool
	}
	if cfg.CertFile != "" || cfg.KeyFile != "" {
		certPath := filepath.Clean(cfg.CertFile)
		keyPath := filepath.Clean(cfg.KeyFile)
		cert, err := tls.LoadX509KeyPair(certPath, keyPath)
		if err != nil {
			return nil, fmt.Errorf("load redis tls certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return tlsCfg, nil
}
