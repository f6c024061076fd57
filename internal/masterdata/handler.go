package masterdata

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-procure/internal/platform/httpx"
)

// Handler exposes read-only master data endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers master data routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Get("/suppliers", h.listSuppliers)
	r.Get("/locations", h.listLocations)
	r.Get("/quotations/{id}", h.showQuotation)
}

var errorMappings = []httpx.Mapping{
	{Err: ErrNotFound, Status: http.StatusNotFound, Kind: "NotFound"},
}

func (h *Handler) filters(r *http.Request) (ListFilters, error) {
	limit, err := httpx.QueryInt(r, "limit")
	if err != nil {
		return ListFilters{}, err
	}
	return ListFilters{ActiveOnly: r.URL.Query().Get("active") == "true", Limit: limit}, nil
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	filters, err := h.filters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	products, err := h.service.ListProducts(r.Context(), filters)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	filters, err := h.filters(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	suppliers, err := h.service.ListSuppliers(r.Context(), filters)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"suppliers": suppliers})
}

func (h *Handler) listLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.service.ListLocations(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"locations": locations})
}

func (h *Handler) showQuotation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	quote, err := h.service.GetQuotation(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, quote)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if h.logger != nil {
		h.logger.Warn("masterdata request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err, errorMappings...)
}
