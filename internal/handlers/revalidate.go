package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/splat-labs/storefront/internal/platform/httpx"
	"github.com/splat-labs/storefront/internal/services"
)

const maxRevalidateRequestBody = 4 * 1024

// RevalidateHandlers exposes the operator cache-invalidation endpoint.
type RevalidateHandlers struct {
	catalog services.CatalogService
	// secret gates the endpoint when non-empty.
	secret string
}

// NewRevalidateHandlers constructs the revalidation handler.
func NewRevalidateHandlers(catalog services.CatalogService, secret string) *RevalidateHandlers {
	return &RevalidateHandlers{catalog: catalog, secret: secret}
}

// Routes registers the revalidation endpoint under the provided router.
func (h *RevalidateHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/revalidate", h.revalidate)
}

type revalidateRequest struct {
	Path string `json:"path,omitempty"`
	Tag  string `json:"tag,omitempty"`
}

func (h *RevalidateHandlers) revalidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.secret != "" {
		provided := r.URL.Query().Get("secret")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(h.secret)) != 1 {
			httpx.WriteError(ctx, w, httpx.NewError("unauthorized", "invalid revalidation secret", http.StatusUnauthorized))
			return
		}
	}

	body, err := readLimitedBody(r, maxRevalidateRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), status))
		return
	}

	var req revalidateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	if err := h.catalog.Invalidate(ctx, services.InvalidateCommand{
		Path: req.Path,
		Tag:  req.Tag,
	}); err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"revalidated": true})
}
