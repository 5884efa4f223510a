// Package api implements the HTTP handlers for the asset delivery service:
// secure token-based serving, temp-URL issuance, metadata reads, and uploads.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"assetgate/internal/assets"
	"assetgate/internal/storage"
)

// Handler bundles the collaborators the HTTP surface needs.
type Handler struct {
	Store    storage.AssetStore
	Uploader *storage.Uploader
	Tokens   *assets.Broker
	Guard    *APIKeyGuard
	Logger   *slog.Logger
}

// NewHandler constructs a Handler. The guard may be nil, in which case the
// protected endpoints reject every request.
func NewHandler(store storage.AssetStore, uploader *storage.Uploader, tokens *assets.Broker, guard *APIKeyGuard, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Store: store, Uploader: uploader, Tokens: tokens, Guard: guard, Logger: logger}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeBrokerError maps the token core's error taxonomy onto HTTP statuses.
// Absent and expired tokens share one 403 so callers cannot probe validity.
func writeBrokerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, assets.ErrTokenInvalid):
		writeError(w, http.StatusForbidden, assets.ErrTokenInvalid)
	case errors.Is(err, assets.ErrAssetNotFound):
		writeError(w, http.StatusNotFound, assets.ErrAssetNotFound)
	case errors.Is(err, assets.ErrAssetFileMissing):
		writeError(w, http.StatusNotFound, assets.ErrAssetFileMissing)
	default:
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func decodeJSON(r *http.Request, dest interface{}) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allow string) {
	w.Header().Set("Allow", allow)
	writeError(w, http.StatusMethodNotAllowed, errors.New("method "+r.Method+" not allowed"))
}
