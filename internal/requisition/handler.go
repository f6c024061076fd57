package requisition

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-procure/internal/platform/httpx"
)

// Handler exposes requisition bookkeeping read endpoints.
type Handler struct {
	logger     *slog.Logger
	propagator *Propagator
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, propagator *Propagator) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, propagator: propagator}
}

// MountRoutes registers requisition routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}", h.handleGet)
	r.Get("/{id}/contributions", h.handleContributions)
}

type requisitionView struct {
	Requisition
	OverOrdered []int64 `json:"over_ordered"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	req, err := h.propagator.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	view := requisitionView{Requisition: req, OverOrdered: []int64{}}
	for _, p := range req.Products {
		if p.OverOrdered() {
			view.OverOrdered = append(view.OverOrdered, p.ProductID)
		}
	}
	httpx.JSON(w, http.StatusOK, view)
}

func (h *Handler) handleContributions(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	items, err := h.propagator.Contributions(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"contributions": items})
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	h.logger.Warn("requisition request failed", slog.Any("error", err))
	httpx.RespondError(w, err, httpx.Mapping{Err: ErrNotFound, Status: http.StatusNotFound, Kind: "NotFound"})
}
