package inventory

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-procure/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-procure/internal/shared"
)

var errorMappings = []httpx.Mapping{
	{Err: ErrNegativeStock, Status: http.StatusUnprocessableEntity, Kind: "NegativeStock"},
	{Err: ErrInvalidQuantity, Status: http.StatusBadRequest, Kind: "Validation"},
	{Err: ErrInvalidMovement, Status: http.StatusBadRequest, Kind: "Validation"},
}

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stock", h.handleStock)
	r.Get("/movements", h.handleMovements)
	r.Post("/adjustments", h.handleAdjustment)
	r.Post("/issues", h.handleIssue)
}

func (h *Handler) handleStock(w http.ResponseWriter, r *http.Request) {
	productID, err := httpx.QueryInt64(r, "product_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	locationID, err := httpx.QueryInt64(r, "location_id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if productID > 0 && locationID > 0 {
		item, err := h.service.GetStock(r.Context(), productID, locationID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		httpx.JSON(w, http.StatusOK, item)
		return
	}
	items, err := h.service.ListStock(r.Context(), StockFilter{ProductID: productID, LocationID: locationID})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	filter, err := parseMovementFilter(r)
	if err != nil {
		httpx.RespondError(w, err, errorMappings...)
		return
	}
	movements, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func parseMovementFilter(r *http.Request) (MovementFilter, error) {
	var filter MovementFilter
	var err error
	if filter.ProductID, err = httpx.QueryInt64(r, "product_id"); err != nil {
		return filter, err
	}
	if filter.LocationID, err = httpx.QueryInt64(r, "location_id"); err != nil {
		return filter, err
	}
	if filter.PurchaseOrderID, err = httpx.QueryInt64(r, "purchase_order_id"); err != nil {
		return filter, err
	}
	if filter.Limit, err = httpx.QueryInt(r, "limit"); err != nil {
		return filter, err
	}
	q := r.URL.Query()
	for _, raw := range q["kind"] {
		for _, k := range strings.Split(raw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				filter.Kinds = append(filter.Kinds, MovementKind(strings.ToUpper(k)))
			}
		}
	}
	if filter.From, err = parseTime(q.Get("from")); err != nil {
		return filter, err
	}
	if filter.To, err = parseTime(q.Get("to")); err != nil {
		return filter, err
	}
	return filter, nil
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid time %q", httpx.ErrValidation, raw)
	}
	return t, nil
}

type adjustmentRequest struct {
	ProductID  int64           `json:"product_id" validate:"required,gt=0"`
	LocationID int64           `json:"location_id" validate:"required,gt=0"`
	Qty        decimal.Decimal `json:"qty"`
	Damaged    bool            `json:"damaged"`
	Initial    bool            `json:"initial"`
	Reason     string          `json:"reason" validate:"required,max=500"`
}

func (h *Handler) handleAdjustment(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrActorRequired)
		return
	}
	var req adjustmentRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	m, err := h.service.Adjust(r.Context(), AdjustmentInput{
		ProductID:  req.ProductID,
		LocationID: req.LocationID,
		Qty:        req.Qty,
		Damaged:    req.Damaged,
		Initial:    req.Initial,
		Reason:     req.Reason,
		ActorID:    actor.ID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

type issueRequest struct {
	ProductID  int64           `json:"product_id" validate:"required,gt=0"`
	LocationID int64           `json:"location_id" validate:"required,gt=0"`
	Qty        decimal.Decimal `json:"qty"`
	Transfer   bool            `json:"transfer"`
	Reason     string          `json:"reason" validate:"max=500"`
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrActorRequired)
		return
	}
	var req issueRequest
	if err := httpx.DecodeAndValidate(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	m, err := h.service.Issue(r.Context(), IssueInput{
		ProductID:  req.ProductID,
		LocationID: req.LocationID,
		Qty:        req.Qty,
		Transfer:   req.Transfer,
		Reason:     req.Reason,
		ActorID:    actor.ID,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Warn("inventory request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.RespondError(w, err, errorMappings...)
}
