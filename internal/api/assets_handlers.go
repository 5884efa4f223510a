package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"assetgate/internal/models"
	"assetgate/internal/observability/logging"
	"assetgate/internal/storage"
)

type assetResponse struct {
	ID        string `json:"id"`
	MimeType  string `json:"mimeType"`
	SizeBytes int64  `json:"sizeBytes"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type tempURLRequest struct {
	TTLSeconds int64 `json:"ttlSeconds"`
}

type tempURLResponse struct {
	TempURL   string `json:"tempUrl"`
	ExpiresAt string `json:"expiresAt"`
}

type createAssetRequest struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
	Category string `json:"category"`
}

func newAssetResponse(asset models.Asset) assetResponse {
	return assetResponse{
		ID:        asset.ID,
		MimeType:  asset.MimeType,
		SizeBytes: asset.SizeBytes,
		CreatedAt: asset.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt: asset.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func pathSegment(r *http.Request, prefix string) (string, bool) {
	rest := strings.TrimPrefix(r.URL.Path, prefix)
	if rest == "" || rest == r.URL.Path || strings.Contains(rest, "/") {
		return "", false
	}
	return rest, true
}

// SecureAsset serves `GET /assets/secure/{token}`. The response defeats caches
// and renders inline so the short-lived URL cannot outlive its token.
func (h *Handler) SecureAsset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, r, "GET, HEAD")
		return
	}
	token, ok := pathSegment(r, "/assets/secure/")
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}
	content, err := h.Tokens.Resolve(r.Context(), token)
	if err != nil {
		writeBrokerError(w, err)
		return
	}
	logger := logging.WithContext(logging.ContextWithAssetID(r.Context(), content.AssetID), h.Logger)

	file, err := os.Open(content.Path)
	if err != nil {
		writeBrokerError(w, fmt.Errorf("open asset file: %w", err))
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", content.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(content.SizeBytes, 10))
	w.Header().Set("Content-Disposition", "inline")
	w.Header().Set("Cache-Control", "private, no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if r.Method == http.MethodHead {
		w.WriteHeader(http.StatusOK)
		return
	}
	if _, err := io.Copy(w, file); err != nil {
		// Headers are gone; the most we can do is log the broken stream.
		logger.Warn("asset stream interrupted", "error", err)
	}
}

// AssetMetadata serves `GET /assets/metadata/{assetId}` without touching the
// blob. The physical path is deliberately absent from the response.
func (h *Handler) AssetMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}
	if !h.requireAPIKey(w, r) {
		return
	}
	assetID, ok := pathSegment(r, "/assets/metadata/")
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}
	asset, ok, err := h.Store.FindAsset(r.Context(), assetID)
	if err != nil {
		h.Logger.Error("asset metadata lookup failed", "asset_id", assetID, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("asset not found"))
		return
	}
	writeJSON(w, http.StatusOK, newAssetResponse(asset))
}

// TempURL serves `GET|POST /assets/temp-url/{assetId}`, minting a fresh
// access token. POST accepts an optional `{"ttlSeconds": n}` body.
func (h *Handler) TempURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		methodNotAllowed(w, r, "GET, POST")
		return
	}
	if !h.requireAPIKey(w, r) {
		return
	}
	assetID, ok := pathSegment(r, "/assets/temp-url/")
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}
	var ttl time.Duration
	if r.Method == http.MethodPost && r.ContentLength != 0 {
		var req tempURLRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
			return
		}
		if req.TTLSeconds < 0 {
			writeError(w, http.StatusBadRequest, errors.New("ttlSeconds must be positive"))
			return
		}
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}
	urlPath, expiresAt, err := h.Tokens.Issue(r.Context(), assetID, ttl)
	if err != nil {
		writeBrokerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tempURLResponse{
		TempURL:   urlPath,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	})
}

// Assets serves the `/api/assets` collection: GET lists the catalogue, POST
// uploads a new asset from a multipart form or a JSON base64 payload.
func (h *Handler) Assets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !h.requireAPIKey(w, r) {
			return
		}
		assets, err := h.Store.ListAssets(r.Context())
		if err != nil {
			h.Logger.Error("asset list failed", "error", err)
			writeError(w, http.StatusInternalServerError, errors.New("internal error"))
			return
		}
		response := make([]assetResponse, 0, len(assets))
		for _, asset := range assets {
			response = append(response, newAssetResponse(asset))
		}
		writeJSON(w, http.StatusOK, response)
	case http.MethodPost:
		if !h.requireAPIKey(w, r) {
			return
		}
		contentType := strings.ToLower(strings.TrimSpace(r.Header.Get("Content-Type")))
		if strings.HasPrefix(contentType, "multipart/form-data") {
			h.createAssetFromMultipart(w, r)
			return
		}
		h.createAssetFromJSON(w, r)
	default:
		methodNotAllowed(w, r, "GET, POST")
	}
}

func (h *Handler) createAssetFromMultipart(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(storage.DefaultMaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid multipart payload"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("file part is required"))
		return
	}
	defer file.Close()

	category := strings.TrimSpace(r.FormValue("category"))
	asset, err := h.Uploader.SaveReader(r.Context(), file, header.Header.Get("Content-Type"), header.Filename, category)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, newAssetResponse(asset))
}

func (h *Handler) createAssetFromJSON(w http.ResponseWriter, r *http.Request) {
	var req createAssetRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if strings.TrimSpace(req.Data) == "" {
		writeError(w, http.StatusBadRequest, errors.New("data is required"))
		return
	}
	asset, err := h.Uploader.SaveBase64(r.Context(), req.Data, req.MimeType, req.Category)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, newAssetResponse(asset))
}

// AssetByID serves `DELETE /api/assets/{assetId}`.
func (h *Handler) AssetByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, "DELETE")
		return
	}
	if !h.requireAPIKey(w, r) {
		return
	}
	assetID, ok := pathSegment(r, "/api/assets/")
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}
	if _, found, err := h.Store.FindAsset(r.Context(), assetID); err != nil {
		h.Logger.Error("asset delete lookup failed", "asset_id", assetID, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	} else if !found {
		writeError(w, http.StatusNotFound, errors.New("asset not found"))
		return
	}
	if err := h.Uploader.Remove(r.Context(), assetID); err != nil {
		h.Logger.Error("asset delete failed", "asset_id", assetID, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
