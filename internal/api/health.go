package api

import (
	"context"
	"net/http"
)

type componentStatus struct {
	Component string `json:"component"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (h *Handler) componentHealth(ctx context.Context) ([]componentStatus, string, int) {
	overallStatus := "ok"
	statusCode := http.StatusOK
	recordComponent := func(component string, err error) componentStatus {
		status := "ok"
		message := ""
		if err != nil {
			status = "degraded"
			message = err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}
		return componentStatus{Component: component, Status: status, Error: message}
	}

	components := make([]componentStatus, 0, 2)
	if store, ok := h.Store.(pinger); ok {
		components = append(components, recordComponent("metadata_store", store.Ping(ctx)))
	}
	if h.Tokens != nil {
		components = append(components, recordComponent("token_store", h.Tokens.Ping(ctx)))
	}
	return components, overallStatus, statusCode
}

// Health reports liveness plus the reachability of the backing stores.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, "GET")
		return
	}
	components, overall, statusCode := h.componentHealth(r.Context())
	writeJSON(w, statusCode, map[string]interface{}{
		"status":     overall,
		"components": components,
	})
}
