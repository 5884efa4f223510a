package api

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	apiKeyHeader         = "X-API-Key"
	apiKeyHashIterations = 120000
	apiKeyHashKeyLength  = 32
	apiKeyHashSaltLength = 16
)

var errAPIKeyRequired = errors.New("api key is missing")
var errAPIKeyInvalid = errors.New("invalid api key")

// APIKeyGuard authorises requests carrying a configured API key. Keys are held
// as pbkdf2 digests so a leaked configuration store does not expose the
// plaintext credentials.
type APIKeyGuard struct {
	hashes []string
}

// NewAPIKeyGuard builds a guard from a mix of plaintext keys and pre-hashed
// entries (recognised by their pbkdf2$ prefix). Plaintext keys are hashed
// immediately and the originals discarded.
func NewAPIKeyGuard(keys []string) (*APIKeyGuard, error) {
	guard := &APIKeyGuard{}
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if strings.HasPrefix(key, "pbkdf2$") {
			if err := checkAPIKeyHashFormat(key); err != nil {
				return nil, err
			}
			guard.hashes = append(guard.hashes, key)
			continue
		}
		hashed, err := HashAPIKey(key)
		if err != nil {
			return nil, err
		}
		guard.hashes = append(guard.hashes, hashed)
	}
	if len(guard.hashes) == 0 {
		return nil, fmt.Errorf("at least one api key is required")
	}
	return guard, nil
}

// Authorize validates the API key header on the request.
func (g *APIKeyGuard) Authorize(r *http.Request) error {
	if g == nil || len(g.hashes) == 0 {
		return errAPIKeyInvalid
	}
	candidate := strings.TrimSpace(r.Header.Get(apiKeyHeader))
	if candidate == "" {
		return errAPIKeyRequired
	}
	for _, hash := range g.hashes {
		if verifyAPIKey(hash, candidate) == nil {
			return nil
		}
	}
	return errAPIKeyInvalid
}

// requireAPIKey guards a handler, writing a 401 JSON error when the key is
// missing or wrong.
func (h *Handler) requireAPIKey(w http.ResponseWriter, r *http.Request) bool {
	if h.Guard == nil {
		writeError(w, http.StatusUnauthorized, errAPIKeyInvalid)
		return false
	}
	if err := h.Guard.Authorize(r); err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return false
	}
	return true
}

// HashAPIKey derives the storable digest for a plaintext API key.
func HashAPIKey(key string) (string, error) {
	salt := make([]byte, apiKeyHashSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	derived := pbkdf2.Key([]byte(key), salt, apiKeyHashIterations, apiKeyHashKeyLength, sha256.New)
	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedKey := base64.RawStdEncoding.EncodeToString(derived)
	return fmt.Sprintf("pbkdf2$sha256$%d$%s$%s", apiKeyHashIterations, encodedSalt, encodedKey), nil
}

func checkAPIKeyHashFormat(encodedHash string) error {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 5 || parts[0] != "pbkdf2" || parts[1] != "sha256" {
		return fmt.Errorf("invalid api key hash format")
	}
	if iterations, err := strconv.Atoi(parts[2]); err != nil || iterations <= 0 {
		return fmt.Errorf("invalid api key hash iteration count")
	}
	if _, err := base64.RawStdEncoding.DecodeString(parts[3]); err != nil {
		return fmt.Errorf("invalid api key hash salt: %w", err)
	}
	if _, err := base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return fmt.Errorf("invalid api key hash digest: %w", err)
	}
	return nil
}

func verifyAPIKey(encodedHash, candidate string) error {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 5 || parts[0] != "pbkdf2" || parts[1] != "sha256" {
		return fmt.Errorf("invalid api key hash format")
	}
	iterations, err := strconv.Atoi(parts[2])
	if err != nil || iterations <= 0 {
		return fmt.Errorf("invalid api key hash iteration count")
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return fmt.Errorf("decode api key salt: %w", err)
	}
	storedKey, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("decode api key digest: %w", err)
	}
	derived := pbkdf2.Key([]byte(candidate), salt, iterations, len(storedKey), sha256.New)
	if len(derived) != len(storedKey) || subtle.ConstantTimeCompare(derived, storedKey) != 1 {
		return errAPIKeyInvalid
	}
	return nil
}
