package procurement

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-procure/internal/shared"
)

func newTestRouter(f *fixture) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Header.Get("X-Test-Anonymous") == "" {
				req = req.WithContext(shared.ContextWithActor(req.Context(), shared.Actor{ID: 42, Role: "buyer"}))
			}
			next.ServeHTTP(w, req)
		})
	})
	r.Route("/procurement", NewHandler(nil, f.svc).MountRoutes)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type problem struct {
	Status  int            `json:"status"`
	Kind    string         `json:"kind"`
	Details map[string]any `json:"details"`
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) problem {
	t.Helper()
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var p problem
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	return p
}

func TestHandlerOrderLifecycle(t *testing.T) {
	f := newFixture()
	f.quote(1, 10, 50, 5)
	h := newTestRouter(f)

	rec := do(t, h, http.MethodPost, "/procurement/orders", `{"quotation_id":1,"notes":"rush"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var po PurchaseOrder
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&po))
	require.Equal(t, StatusPending, po.Status)

	rec = do(t, h, http.MethodPost, "/procurement/orders/1/supplier-accept", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	p := decodeProblem(t, rec)
	require.Equal(t, "InvalidTransition", p.Kind)
	require.Equal(t, string(StatusPending), p.Details["current"])

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/procurement/orders/1/send", "").Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/procurement/orders/1/supplier-accept", "").Code)

	rec = do(t, h, http.MethodPost, "/procurement/orders/1/receipts", `{"lines":[{"product_id":10,"qty_ok":"30","qty_damaged":"30"}]}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	p = decodeProblem(t, rec)
	require.Equal(t, "QuantityOverrun", p.Kind)
	require.Equal(t, "60", p.Details["requested"])

	rec = do(t, h, http.MethodPost, "/procurement/orders/1/receipts", `{"lines":[{"product_id":10,"qty_ok":"20"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, h, http.MethodGet, "/procurement/orders/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var summary OrderSummary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&summary))
	require.Equal(t, StatusPartiallyDelivered, summary.Order.Status)
	require.Equal(t, "30", summary.Lines[0].Outstanding)

	rec = do(t, h, http.MethodGet, "/procurement/orders/1/receipts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"qty_ok":"20"`)

	rec = do(t, h, http.MethodGet, "/procurement/orders?status=PARTIALLY_DELIVERED", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"total":1`)
}

func TestHandlerCancelNeedsNoteAfterConfirmation(t *testing.T) {
	f := newFixture()
	po := f.confirmedOrder(t, 10, 50, 5)
	h := newTestRouter(f)
	path := "/procurement/orders/" + strconv.FormatInt(po.ID, 10) + "/cancel"

	rec := do(t, h, http.MethodPost, path, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Validation", decodeProblem(t, rec).Kind)

	rec = do(t, h, http.MethodPost, path, `{"note":"supplier closed, refund agreed"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"CANCELED"`)
}

func TestHandlerRejectsBadInput(t *testing.T) {
	f := newFixture()
	h := newTestRouter(f)

	rec := do(t, h, http.MethodPost, "/procurement/orders/abc/send", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/procurement/orders", `{"quotation_id":0}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/procurement/orders", `{"quotation_id":5,"bogus":true}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "BadRequest", decodeProblem(t, rec).Kind)

	rec = do(t, h, http.MethodGet, "/procurement/orders/77", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/procurement/orders/1/solution", `{"type":"REFUND"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/procurement/orders/1/send", nil)
	req.Header.Set("X-Test-Anonymous", "1")
	anon := httptest.NewRecorder()
	h.ServeHTTP(anon, req)
	require.Equal(t, http.StatusUnauthorized, anon.Code)
}

func TestHandlerOrderHistory(t *testing.T) {
	f := newFixture()
	f.quote(1, 10, 50, 5)
	h := newTestRouter(f)

	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/procurement/orders", `{"quotation_id":1}`).Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/procurement/orders/1/send", "").Code)

	rec := do(t, h, http.MethodGet, "/procurement/orders/1/history?limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var history struct {
		OrderID   int64             `json:"order_id"`
		Decisions []json.RawMessage `json:"decisions"`
		Events    []struct {
			Action string `json:"action"`
		} `json:"events"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&history))
	require.Equal(t, int64(1), history.OrderID)
	require.Empty(t, history.Decisions)
	require.Len(t, history.Events, 2)
	require.Equal(t, "PO_SEND", history.Events[1].Action)

	require.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/procurement/orders/1/history?limit=x", "").Code)
	require.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/procurement/orders/9/history", "").Code)
}
