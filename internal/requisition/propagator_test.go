package requisition

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	mu            sync.Mutex
	requisitions  map[int64]Requisition
	contributions map[string]Contribution
	versions      map[string]int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		requisitions:  make(map[int64]Requisition),
		contributions: make(map[string]Contribution),
		versions:      make(map[string]int64),
	}
}

func ckey(reqID, orderID, productID int64) string {
	return fmt.Sprintf("%d:%d:%d", reqID, orderID, productID)
}

func vkey(reqID, orderID int64) string {
	return fmt.Sprintf("%d:%d", reqID, orderID)
}

func (r *memoryRepo) seed(id int64, required map[int64]int64) {
	req := Requisition{ID: id, Number: fmt.Sprintf("REQ-%d", id), Status: "APPROVED"}
	for productID, qty := range required {
		req.Products = append(req.Products, RequiredProduct{ProductID: productID, RequiredQuantity: decimal.NewFromInt(qty)})
	}
	r.requisitions[id] = req
}

func (r *memoryRepo) product(reqID, productID int64) RequiredProduct {
	for _, p := range r.requisitions[reqID].Products {
		if p.ProductID == productID {
			return p
		}
	}
	return RequiredProduct{}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Requisition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requisitions[id]
	if !ok {
		return Requisition{}, ErrNotFound
	}
	return req, nil
}

func (r *memoryRepo) ListContributions(ctx context.Context, requisitionID int64) ([]Contribution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Contribution
	for _, c := range r.contributions {
		if c.RequisitionID == requisitionID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (tx *memoryTx) LockProducts(ctx context.Context, requisitionID int64) (map[int64]RequiredProduct, error) {
	req, ok := tx.repo.requisitions[requisitionID]
	if !ok {
		return nil, ErrNotFound
	}
	out := make(map[int64]RequiredProduct, len(req.Products))
	for _, p := range req.Products {
		out[p.ProductID] = p
	}
	return out, nil
}

func (tx *memoryTx) LastVersion(ctx context.Context, requisitionID, orderID int64) (int64, bool, error) {
	v, ok := tx.repo.versions[vkey(requisitionID, orderID)]
	return v, ok, nil
}

func (tx *memoryTx) SaveVersion(ctx context.Context, requisitionID, orderID, version int64) error {
	tx.repo.versions[vkey(requisitionID, orderID)] = version
	return nil
}

func (tx *memoryTx) Contributions(ctx context.Context, requisitionID, orderID int64) (map[int64]Contribution, error) {
	out := make(map[int64]Contribution)
	for _, c := range tx.repo.contributions {
		if c.RequisitionID == requisitionID && c.OrderID == orderID {
			out[c.ProductID] = c
		}
	}
	return out, nil
}

func (tx *memoryTx) ApplyDelta(ctx context.Context, requisitionID int64, d Delta) error {
	req := tx.repo.requisitions[requisitionID]
	for i := range req.Products {
		if req.Products[i].ProductID == d.ProductID {
			req.Products[i].PendingPOQuantity = req.Products[i].PendingPOQuantity.Add(d.Pending)
			req.Products[i].PurchasedQuantity = req.Products[i].PurchasedQuantity.Add(d.Purchased)
			tx.repo.requisitions[requisitionID] = req
			return nil
		}
	}
	return ErrNotFound
}

func (tx *memoryTx) SaveContribution(ctx context.Context, c Contribution) error {
	tx.repo.contributions[ckey(c.RequisitionID, c.OrderID, c.ProductID)] = c
	return nil
}

func lines(pairs ...int64) []Line {
	var out []Line
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Line{ProductID: pairs[i], Quantity: decimal.NewFromInt(pairs[i+1])})
	}
	return out
}

func requireQty(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	require.True(t, got.Equal(decimal.NewFromInt(want)), "want %d got %s", want, got)
}

func TestReserveThenConfirm(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, map[int64]int64{10: 100, 11: 50})
	p := NewPropagator(repo, nil)
	ctx := context.Background()

	_, err := p.Apply(ctx, Propagation{RequisitionID: 1, OrderID: 7, OrderVersion: 1, Kind: KindReserve, Lines: lines(10, 60, 11, 50)})
	require.NoError(t, err)
	requireQty(t, 60, repo.product(1, 10).PendingPOQuantity)

	res, err := p.Apply(ctx, Propagation{RequisitionID: 1, OrderID: 7, OrderVersion: 3, Kind: KindConfirm, Lines: lines(10, 60, 11, 50)})
	require.NoError(t, err)
	require.Len(t, res.Deltas, 2)
	requireQty(t, 0, repo.product(1, 10).PendingPOQuantity)
	requireQty(t, 60, repo.product(1, 10).PurchasedQuantity)
	requireQty(t, 50, repo.product(1, 11).PurchasedQuantity)
}

func TestOrdersDoNotClobberEachOther(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, map[int64]int64{10: 100})
	p := NewPropagator(repo, nil)
	ctx := context.Background()

	_, err := p.Apply(ctx, Propagation{RequisitionID: 1, OrderID: 1, OrderVersion: 1, Kind: KindReserve, Lines: lines(10, 30)})
	require.NoError(t, err)
	_, err = p.Apply(ctx, Propagation{RequisitionID: 1, OrderID: 2, OrderVersion: 1, Kind: KindReserve, Lines: lines(10, 20)})
	require.NoError(t, err)
	_, err = p.Apply(ctx, Propagation{RequisitionID: 1, OrderID: 1, OrderVersion: 2, Kind: KindConfirm, Lines: lines(10, 30)})
	require.NoError(t, err)

	product := repo.product(1, 10)
	requireQty(t, 20, product.PendingPOQuantity)
	requireQty(t, 30, product.PurchasedQuantity)
	requireQty(t, 50, product.Outstanding())
}

func TestReleaseBeforeConfirmation(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, map[int64]int64{10: 100, 11: 40})
	p := NewPropagator(repo, nil)
	ctx := context.Background()

	_, err := p.Apply(ctx, Propagation{RequisitionID: 1, OrderID: 5, OrderVersion: 1, Kind: KindReserve, Lines: lines(10, 25, 11, 40)})
	require.NoError(t, err)
	_, err = p.Apply(ctx, Propagation{RequisitionID: 1, OrderID: 6, OrderVersion: 2, Kind: KindConfirm, Lines: lines(10, 5)})
	require.NoError(t, err)

	_, err = p.Apply(ctx, Propagation{RequisitionID: 1, OrderID: 5, OrderVersion: 2, Kind: KindRelease, Lines: lines(10, 25, 11, 40)})
	require.NoError(t, err)
	requireQty(t, 0, repo.product(1, 10).PendingPOQuantity)
	requireQty(t, 0, repo.product(1, 11).PendingPOQuantity)
	requireQty(t, 5, repo.product(1, 10).PurchasedQuantity)
}

func TestRedeliveryIsIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, map[int64]int64{10: 100})
	p := NewPropagator(repo, nil)
	ctx := context.Background()

	prop := Propagation{RequisitionID: 1, OrderID: 9, OrderVersion: 4, Kind: KindConfirm, Lines: lines(10, 70)}
	_, err := p.Apply(ctx, prop)
	require.NoError(t, err)
	res, err := p.Apply(ctx, prop)
	require.NoError(t, err)
	require.True(t, res.Stale)
	requireQty(t, 70, repo.product(1, 10).PurchasedQuantity)

	older := Propagation{RequisitionID: 1, OrderID: 9, OrderVersion: 2, Kind: KindReserve, Lines: lines(10, 90)}
	res, err = p.Apply(ctx, older)
	require.NoError(t, err)
	require.True(t, res.Stale)
	requireQty(t, 0, repo.product(1, 10).PendingPOQuantity)
}

func TestRevisedLinesWithdrawDroppedProducts(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, map[int64]int64{10: 100, 11: 100})
	p := NewPropagator(repo, nil)
	ctx := context.Background()

	_, err := p.Apply(ctx, Propagation{RequisitionID: 1, OrderID: 3, OrderVersion: 1, Kind: KindReserve, Lines: lines(10, 10, 11, 10)})
	require.NoError(t, err)
	_, err = p.Apply(ctx, Propagation{RequisitionID: 1, OrderID: 3, OrderVersion: 5, Kind: KindConfirm, Lines: lines(10, 15)})
	require.NoError(t, err)

	requireQty(t, 15, repo.product(1, 10).PurchasedQuantity)
	requireQty(t, 0, repo.product(1, 11).PendingPOQuantity)
	requireQty(t, 0, repo.product(1, 11).PurchasedQuantity)
}

func TestUnmatchedProductsAndOverOrdering(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, map[int64]int64{10: 10})
	p := NewPropagator(repo, nil)
	ctx := context.Background()

	res, err := p.Apply(ctx, Propagation{RequisitionID: 1, OrderID: 3, OrderVersion: 1, Kind: KindConfirm, Lines: lines(10, 12, 99, 1)})
	require.NoError(t, err)
	require.Equal(t, []int64{99}, res.Unmatched)
	product := repo.product(1, 10)
	requireQty(t, 12, product.PurchasedQuantity)
	require.True(t, product.OverOrdered())
	require.True(t, product.Outstanding().IsZero())
}

func TestApplyRejectsMalformed(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, map[int64]int64{10: 10})
	p := NewPropagator(repo, nil)
	ctx := context.Background()

	_, err := p.Apply(ctx, Propagation{RequisitionID: 1, OrderID: 3, Kind: KindConfirm})
	require.ErrorIs(t, err, ErrInvalidPropagation)
	_, err = p.Apply(ctx, Propagation{RequisitionID: 1, OrderID: 3, OrderVersion: 1, Kind: "MOVE"})
	require.ErrorIs(t, err, ErrInvalidPropagation)
	_, err = p.Apply(ctx, Propagation{RequisitionID: 1, OrderID: 3, OrderVersion: 1, Kind: KindConfirm, Lines: []Line{{ProductID: 10, Quantity: decimal.NewFromInt(-1)}}})
	require.ErrorIs(t, err, ErrInvalidPropagation)
	_, err = p.Apply(ctx, Propagation{RequisitionID: 2, OrderID: 3, OrderVersion: 1, Kind: KindConfirm})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestHandlerGet(t *testing.T) {
	repo := newMemoryRepo()
	repo.seed(1, map[int64]int64{10: 10})
	p := NewPropagator(repo, nil)
	_, err := p.Apply(context.Background(), Propagation{RequisitionID: 1, OrderID: 3, OrderVersion: 1, Kind: KindConfirm, Lines: lines(10, 12)})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Route("/requisitions", NewHandler(nil, p).MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/requisitions/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"over_ordered":[10]`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/requisitions/2", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}
