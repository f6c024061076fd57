package procurement

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-procure/internal/inventory"
	"github.com/odyssey-erp/odyssey-procure/internal/masterdata"
	"github.com/odyssey-erp/odyssey-procure/internal/platform/httpx"
)

// Handler manages procurement endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/orders", h.listOrders)
	r.Post("/orders", h.createOrder)
	r.Route("/orders/{id}", func(r chi.Router) {
		r.Get("/", h.showOrder)
		r.Get("/receipts", h.listReceipts)
		r.Get("/history", h.showHistory)
		r.Post("/receipts", h.postReceipt)
		r.Post("/send", h.simple(h.service.SendToSupplier))
		r.Post("/supplier-accept", h.simple(h.service.SupplierAccept))
		r.Post("/changes-proposed", h.simple(h.service.MarkChangesProposed))
		r.Post("/confirm-revised", h.simple(h.service.ConfirmRevised))
		r.Post("/accept-original", h.simple(h.service.AcceptOriginal))
		r.Post("/complete", h.simple(h.service.Complete))
		r.Post("/supplier-reject", h.withNote(h.service.SupplierReject))
		r.Post("/renegotiate", h.withNote(h.service.Renegotiate))
		r.Post("/cancel", h.withNote(h.service.Cancel))
		r.Post("/proposal", h.recordProposal)
		r.Post("/solution", h.recordSolution)
	})
}

var errorMappings = []httpx.Mapping{
	{Err: ErrNotFound, Status: http.StatusNotFound, Kind: "NotFound"},
	{Err: masterdata.ErrNotFound, Status: http.StatusNotFound, Kind: "NotFound"},
	{Err: ErrInvalidTransition, Status: http.StatusConflict, Kind: "InvalidTransition"},
	{Err: ErrNoSnapshotToRevert, Status: http.StatusConflict, Kind: "NoSnapshotToRevert"},
	{Err: ErrQuantityOverrun, Status: http.StatusUnprocessableEntity, Kind: "QuantityOverrun"},
	{Err: ErrEmptyReceipt, Status: http.StatusUnprocessableEntity, Kind: "EmptyReceipt"},
	{Err: inventory.ErrNegativeStock, Status: http.StatusUnprocessableEntity, Kind: "NegativeStock"},
	{Err: ErrValidation, Status: http.StatusBadRequest, Kind: "Validation"},
}

type costRequest struct {
	Description string          `json:"description" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
}

type createOrderRequest struct {
	QuotationID          int64         `json:"quotation_id" validate:"required,gt=0"`
	Number               string        `json:"number" validate:"omitempty,max=64"`
	Notes                string        `json:"notes"`
	ExpectedDeliveryDate *time.Time    `json:"expected_delivery_date"`
	AdditionalCosts      []costRequest `json:"additional_costs" validate:"dive"`
}

type proposalRequest struct {
	Notes                string        `json:"notes"`
	ExpectedDeliveryDate *time.Time    `json:"expected_delivery_date"`
	AdditionalCosts      []costRequest `json:"additional_costs" validate:"dive"`
	Lines                []struct {
		ProductID int64           `json:"product_id" validate:"required,gt=0"`
		Quantity  decimal.Decimal `json:"quantity"`
		UnitPrice decimal.Decimal `json:"unit_price"`
		Notes     string          `json:"notes"`
	} `json:"lines" validate:"required,min=1,dive"`
}

type noteRequest struct {
	Note string `json:"note" validate:"max=2000"`
}

type solutionRequest struct {
	Type    string `json:"type" validate:"required,oneof=CREDIT DISCOUNT FUTURE_DELIVERY OTHER"`
	Details string `json:"details"`
}

type receiptRequest struct {
	LocationID     int64      `json:"location_id" validate:"gte=0"`
	ReceiptDate    *time.Time `json:"receipt_date"`
	Notes          string     `json:"notes"`
	IdempotencyKey string     `json:"idempotency_key" validate:"omitempty,max=128"`
	Lines          []struct {
		ProductID  int64           `json:"product_id" validate:"required,gt=0"`
		QtyOK      decimal.Decimal `json:"qty_ok"`
		QtyDamaged decimal.Decimal `json:"qty_damaged"`
		QtyMissing decimal.Decimal `json:"qty_missing"`
		Notes      string          `json:"notes"`
	} `json:"lines" validate:"required,min=1,dive"`
}

func toCosts(in []costRequest) []AdditionalCost {
	out := make([]AdditionalCost, 0, len(in))
	for _, c := range in {
		out = append(out, AdditionalCost{Description: c.Description, Amount: c.Amount, Category: c.Category})
	}
	return out
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	supplierID, err := httpx.QueryInt64(r, "supplier_id")
	if err != nil {
		h.fail(w, err)
		return
	}
	requisitionID, err := httpx.QueryInt64(r, "requisition_id")
	if err != nil {
		h.fail(w, err)
		return
	}
	page, err := httpx.QueryInt(r, "page")
	if err != nil {
		h.fail(w, err)
		return
	}
	perPage, err := httpx.QueryInt(r, "per_page")
	if err != nil {
		h.fail(w, err)
		return
	}
	orders, pagination, err := h.service.ListOrders(r.Context(), ListFilter{
		Status:        Status(r.URL.Query().Get("status")),
		SupplierID:    supplierID,
		RequisitionID: requisitionID,
		Page:          page,
		PerPage:       perPage,
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	if orders == nil {
		orders = []PurchaseOrder{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": orders, "pagination": pagination})
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := httpx.DecodeAndValidate(r, h.validate, &req); err != nil {
		h.fail(w, err)
		return
	}
	po, err := h.service.CreateOrder(r.Context(), CreateOrderInput{
		QuotationID:          req.QuotationID,
		Number:               req.Number,
		Notes:                req.Notes,
		ExpectedDeliveryDate: req.ExpectedDeliveryDate,
		AdditionalCosts:      toCosts(req.AdditionalCosts),
	})
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, po)
}

func (h *Handler) showOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	summary, err := h.service.Summary(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) showHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	limit, err := httpx.QueryInt(r, "limit")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	history, err := h.service.History(r.Context(), id, limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, history)
}

func (h *Handler) listReceipts(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	receipts, err := h.service.ListReceipts(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	if receipts == nil {
		receipts = []Receipt{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"receipts": receipts})
}

func (h *Handler) postReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req receiptRequest
	if err := httpx.DecodeAndValidate(r, h.validate, &req); err != nil {
		h.fail(w, err)
		return
	}
	input := ReceiptInput{
		PurchaseOrderID: id,
		LocationID:      req.LocationID,
		Notes:           req.Notes,
		IdempotencyKey:  req.IdempotencyKey,
	}
	if key := r.Header.Get("Idempotency-Key"); input.IdempotencyKey == "" && key != "" {
		input.IdempotencyKey = key
	}
	if req.ReceiptDate != nil {
		input.ReceiptDate = *req.ReceiptDate
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, ReceiptLine{
			ProductID:  line.ProductID,
			QtyOK:      line.QtyOK,
			QtyDamaged: line.QtyDamaged,
			QtyMissing: line.QtyMissing,
			Notes:      line.Notes,
		})
	}
	receipt, po, err := h.service.ReceiveGoods(r.Context(), input)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"receipt": receipt, "order": po})
}

func (h *Handler) recordProposal(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req proposalRequest
	if err := httpx.DecodeAndValidate(r, h.validate, &req); err != nil {
		h.fail(w, err)
		return
	}
	input := ProposalInput{
		Notes:                req.Notes,
		ExpectedDeliveryDate: req.ExpectedDeliveryDate,
		AdditionalCosts:      toCosts(req.AdditionalCosts),
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, ProposalLine{ProductID: line.ProductID, Quantity: line.Quantity, UnitPrice: line.UnitPrice, Notes: line.Notes})
	}
	po, err := h.service.RecordProposal(r.Context(), id, input)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) recordSolution(w http.ResponseWriter, r *http.Request) {
	id, ok := h.orderID(w, r)
	if !ok {
		return
	}
	var req solutionRequest
	if err := httpx.DecodeAndValidate(r, h.validate, &req); err != nil {
		h.fail(w, err)
		return
	}
	po, err := h.service.RecordSupplierSolution(r.Context(), id, SolutionInput{Type: SolutionType(req.Type), Details: req.Details})
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) simple(action func(ctx context.Context, id int64) (PurchaseOrder, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.orderID(w, r)
		if !ok {
			return
		}
		po, err := action(r.Context(), id)
		if err != nil {
			h.fail(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, po)
	}
}

func (h *Handler) withNote(action func(ctx context.Context, id int64, note string) (PurchaseOrder, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.orderID(w, r)
		if !ok {
			return
		}
		var req noteRequest
		if r.ContentLength != 0 {
			if err := httpx.DecodeAndValidate(r, h.validate, &req); err != nil {
				h.fail(w, err)
				return
			}
		}
		po, err := action(r.Context(), id, req.Note)
		if err != nil {
			h.fail(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, po)
	}
}

func (h *Handler) orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, httpx.ErrValidation)
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	h.logger.Warn("procurement request failed", slog.Any("error", err))
	httpx.RespondError(w, err, errorMappings...)
}
