package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/splat-labs/storefront/internal/services"
)

// CatalogHandlers exposes read-only catalog endpoints. Responses are the
// platform's raw JSON passed through the server-side cache.
type CatalogHandlers struct {
	catalog services.CatalogService
}

// NewCatalogHandlers constructs the catalog handler set.
func NewCatalogHandlers(catalog services.CatalogService) *CatalogHandlers {
	return &CatalogHandlers{catalog: catalog}
}

// Routes registers catalog endpoints under the provided router.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/products", h.products)
	r.Get("/store", h.store)
	r.Get("/store/{slug}", h.product)
}

func (h *CatalogHandlers) products(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := h.catalog.Products(ctx, r.URL.Query())
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeRawJSON(w, http.StatusOK, body)
}

func (h *CatalogHandlers) store(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := h.catalog.Store(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeRawJSON(w, http.StatusOK, body)
}

func (h *CatalogHandlers) product(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := h.catalog.Product(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeRawJSON(w, http.StatusOK, body)
}
