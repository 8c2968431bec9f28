package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazarko/marketplace-api/internal/domain/actor"
	"github.com/bazarko/marketplace-api/internal/domain/analytics"
	"github.com/bazarko/marketplace-api/internal/domain/order"
	"github.com/bazarko/marketplace-api/internal/domain/product"
	"github.com/bazarko/marketplace-api/internal/domain/referral"
	"github.com/bazarko/marketplace-api/internal/domain/voucher"
)

// --- Fake implementations ---

type fakeProducts struct {
	byID map[string]*product.Product
}

func (f *fakeProducts) List(_ context.Context) ([]product.Product, error) {
	var out []product.Product
	for _, p := range f.byID {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProducts) DebitStock(_ context.Context, id string, qty int) (int, error) {
	p, ok := f.byID[id]
	if !ok {
		return 0, product.ErrNotFound
	}
	if p.Stock < qty {
		return 0, &product.InsufficientStockError{ProductID: id, Requested: qty, Available: p.Stock}
	}
	p.Stock -= qty
	return p.Stock, nil
}

func (f *fakeProducts) CreditStock(_ context.Context, id string, qty int) (int, error) {
	p, ok := f.byID[id]
	if !ok {
		return 0, product.ErrNotFound
	}
	p.Stock += qty
	return p.Stock, nil
}

type fakeVouchers struct{}

func (fakeVouchers) FindByCode(_ context.Context, _ string) (*voucher.Voucher, error) {
	return nil, voucher.ErrNotFound
}

func (fakeVouchers) IncrementUsage(_ context.Context, _ string) error { return nil }

type fakeReferrals struct{}

func (fakeReferrals) FindByCode(_ context.Context, _ string) (*referral.Code, error) {
	return nil, referral.ErrNotFound
}

func (fakeReferrals) RecordUse(_ context.Context, _ string) error { return referral.ErrNotFound }

type fakeOrders struct {
	byID     map[string]*order.Order
	sellerOf map[string]string
}

func (f *fakeOrders) Create(_ context.Context, o *order.Order) error {
	cp := *o
	f.byID[o.ID] = &cp
	return nil
}

func (f *fakeOrders) GetByID(_ context.Context, id string) (*order.Order, error) {
	o, ok := f.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) GetByIDForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return f.GetByID(ctx, id)
}

func (f *fakeOrders) UpdateStatus(_ context.Context, o *order.Order) error {
	cp := *o
	f.byID[o.ID] = &cp
	return nil
}

func (f *fakeOrders) ListByCustomer(_ context.Context, customerID string, _ order.PageRequest) ([]order.Order, int, error) {
	var out []order.Order
	for _, o := range f.byID {
		if o.CustomerID == customerID {
			out = append(out, *o)
		}
	}
	return out, len(out), nil
}

func (f *fakeOrders) ListBySeller(_ context.Context, _ string, _ order.PageRequest) ([]order.Order, int, error) {
	return nil, 0, nil
}

func (f *fakeOrders) ListAll(_ context.Context, _ order.PageRequest) ([]order.Order, int, error) {
	var out []order.Order
	for _, o := range f.byID {
		out = append(out, *o)
	}
	return out, len(out), nil
}

func (f *fakeOrders) ContainsSellerProduct(_ context.Context, orderID, sellerID string) (bool, error) {
	o, ok := f.byID[orderID]
	if !ok {
		return false, nil
	}
	for _, item := range o.Items {
		if f.sellerOf[item.ProductID] == sellerID {
			return true, nil
		}
	}
	return false, nil
}

type passthroughTx struct{}

func (passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeAnalytics struct{}

func (fakeAnalytics) RevenueSummary(_ context.Context, _ string, _, _ time.Time) (decimal.Decimal, int, error) {
	return decimal.RequireFromString("300.00"), 2, nil
}

func (fakeAnalytics) RevenueByDay(_ context.Context, _ string, _, _ time.Time) ([]analytics.DailyRevenue, error) {
	return []analytics.DailyRevenue{
		{Day: time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC), Revenue: decimal.RequireFromString("300.00"), Orders: 2},
	}, nil
}

func (fakeAnalytics) CountByStatus(_ context.Context, _ string) ([]analytics.StatusCount, error) {
	return []analytics.StatusCount{{Status: order.StatusPending, Count: 2}}, nil
}

type fakeKeys struct {
	byHash map[string]actor.Actor
}

func (f *fakeKeys) FindByKeyHash(_ context.Context, hash string) (*actor.Actor, error) {
	act, ok := f.byHash[hash]
	if !ok {
		return nil, actor.ErrUnknownKey
	}
	return &act, nil
}

// --- Test server ---

type testServer struct {
	products *fakeProducts
	orders   *fakeOrders
	router   http.Handler
}

const (
	customerKey  = "key-customer"
	sellerKey    = "key-seller"
	adminKey     = "key-admin"
	staleRoleKey = "key-stale-role"
)

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	products := &fakeProducts{byID: map[string]*product.Product{}}
	orders := &fakeOrders{byID: map[string]*order.Order{}, sellerOf: map[string]string{}}

	orderSvc := order.NewService(products, fakeVouchers{}, fakeReferrals{}, orders, passthroughTx{})
	analyticsSvc := analytics.NewService(fakeAnalytics{})

	security := NewSecurity(nil, []byte("test-pepper"))
	keys := &fakeKeys{byHash: map[string]actor.Actor{
		security.HashKey(customerKey):  {ID: "cust-1", Role: actor.RoleCustomer},
		security.HashKey(sellerKey):    {ID: "sell-1", Role: actor.RoleSeller},
		security.HashKey(adminKey):     {ID: "adm-1", Role: actor.RoleAdmin},
		security.HashKey(staleRoleKey): {ID: "ghost-1", Role: actor.Role("SUPERUSER")},
	}}
	security = NewSecurity(keys, []byte("test-pepper"))

	h := NewHandler(products, orderSvc, analyticsSvc, security)
	return &testServer{
		products: products,
		orders:   orders,
		router:   h.Routes(),
	}
}

func (s *testServer) addProduct(id, sellerID, name, price string, stock int) {
	s.products.byID[id] = &product.Product{
		ID:       id,
		SellerID: sellerID,
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
	}
	s.orders.sellerOf[id] = sellerID
}

func (s *testServer) do(t *testing.T, method, path, apiKey string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	if apiKey != "" {
		req.Header.Set(APIKeyHeader, apiKey)
	}
	if body != nil {
		req.ContentLength = int64(buf.Len())
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func createRequestBody(items ...orderItemRequest) createOrderRequest {
	return createOrderRequest{
		Items: items,
		ShippingAddress: addressDTO{
			FullName: "Jordan Doe",
			Street:   "1 Main St",
			City:     "Springfield",
			Country:  "US",
		},
		PaymentMethod: "CREDIT_CARD",
	}
}

// --- Tests ---

func TestAuthentication(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = srv.do(t, http.MethodGet, "/products", "bogus-key", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	body := decodeBody[errorResponse](t, rec)
	assert.Equal(t, http.StatusUnauthorized, body.Code)
	assert.Equal(t, "unauthorized", body.Message)

	rec = srv.do(t, http.MethodGet, "/products", customerKey, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthenticationRejectsUnknownRole(t *testing.T) {
	srv := newTestServer(t)

	// The key resolves to a row, but its role is outside the known set.
	rec := srv.do(t, http.MethodGet, "/products", staleRoleKey, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	body := decodeBody[errorResponse](t, rec)
	assert.Equal(t, "unauthorized", body.Message)
}

func TestCreateOrderEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.addProduct("p1", "sell-1", "Widget", "50.00", 10)

	rec := srv.do(t, http.MethodPost, "/orders", customerKey,
		createRequestBody(orderItemRequest{ProductID: "p1", Quantity: 3}))

	require.Equal(t, http.StatusCreated, rec.Code)
	resp := decodeBody[orderResponse](t, rec)
	assert.Equal(t, "PENDING", resp.Status)
	assert.Equal(t, "cust-1", resp.CustomerID)
	assert.InDelta(t, 150.00, resp.Subtotal, 0.001)
	assert.InDelta(t, 0.0, resp.Shipping, 0.001)
	assert.InDelta(t, 15.00, resp.Tax, 0.001)
	assert.InDelta(t, 165.00, resp.Total, 0.001)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "Widget", resp.Items[0].ProductName)
}

func TestCreateOrderEndpoint_Errors(t *testing.T) {
	srv := newTestServer(t)
	srv.addProduct("p1", "sell-1", "Widget", "50.00", 1)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"empty items", createRequestBody(), http.StatusBadRequest},
		{
			"insufficient stock",
			createRequestBody(orderItemRequest{ProductID: "p1", Quantity: 5}),
			http.StatusUnprocessableEntity,
		},
		{
			"unknown product",
			createRequestBody(orderItemRequest{ProductID: "ghost", Quantity: 1}),
			http.StatusUnprocessableEntity,
		},
		{
			"invalid quantity",
			createRequestBody(orderItemRequest{ProductID: "p1", Quantity: -1}),
			http.StatusUnprocessableEntity,
		},
		{"malformed body", "{not json", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := srv.do(t, http.MethodPost, "/orders", customerKey, tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestCreateOrderEndpoint_UnknownVoucher(t *testing.T) {
	srv := newTestServer(t)
	srv.addProduct("p1", "sell-1", "Widget", "50.00", 10)

	body := createRequestBody(orderItemRequest{ProductID: "p1", Quantity: 1})
	body.VoucherCode = "NOPE"

	rec := srv.do(t, http.MethodPost, "/orders", customerKey, body)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeBody[errorResponse](t, rec)
	assert.Equal(t, "voucher not found", resp.Message)
}

func TestGetOrderEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.addProduct("p1", "sell-1", "Widget", "50.00", 10)

	rec := srv.do(t, http.MethodPost, "/orders", customerKey,
		createRequestBody(orderItemRequest{ProductID: "p1", Quantity: 1}))
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody[orderResponse](t, rec)

	rec = srv.do(t, http.MethodGet, "/orders/"+created.ID, customerKey, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodGet, "/orders/"+created.ID, sellerKey, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodGet, "/orders/missing", customerKey, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateStatusEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.addProduct("p1", "sell-1", "Widget", "50.00", 10)

	rec := srv.do(t, http.MethodPost, "/orders", customerKey,
		createRequestBody(orderItemRequest{ProductID: "p1", Quantity: 1}))
	created := decodeBody[orderResponse](t, rec)

	rec = srv.do(t, http.MethodPatch, "/orders/"+created.ID+"/status", sellerKey,
		updateStatusRequest{Status: "PROCESSING"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PROCESSING", decodeBody[orderResponse](t, rec).Status)

	// Customers may not drive the lifecycle.
	rec = srv.do(t, http.MethodPatch, "/orders/"+created.ID+"/status", customerKey,
		updateStatusRequest{Status: "SHIPPED"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, http.MethodPatch, "/orders/"+created.ID+"/status", adminKey,
		updateStatusRequest{Status: "TELEPORTED"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = srv.do(t, http.MethodPatch, "/orders/"+created.ID+"/status", adminKey,
		updateStatusRequest{Status: "DELIVERED"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = srv.do(t, http.MethodPatch, "/orders/"+created.ID+"/status", adminKey,
		updateStatusRequest{Status: "SHIPPED"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestUpdateStatusEndpoint_CancelReason(t *testing.T) {
	srv := newTestServer(t)
	srv.addProduct("p1", "sell-1", "Widget", "50.00", 10)

	rec := srv.do(t, http.MethodPost, "/orders", customerKey,
		createRequestBody(orderItemRequest{ProductID: "p1", Quantity: 1}))
	created := decodeBody[orderResponse](t, rec)

	rec = srv.do(t, http.MethodPatch, "/orders/"+created.ID+"/status", sellerKey,
		updateStatusRequest{Status: "CANCELLED", CancelReason: "supplier recall"})
	require.Equal(t, http.StatusOK, rec.Code)

	cancelled := decodeBody[orderResponse](t, rec)
	assert.Equal(t, "CANCELLED", cancelled.Status)
	assert.Equal(t, "supplier recall", cancelled.CancelReason)

	// Without a reason the service synthesizes one from the actor's role.
	rec = srv.do(t, http.MethodPost, "/orders", customerKey,
		createRequestBody(orderItemRequest{ProductID: "p1", Quantity: 1}))
	second := decodeBody[orderResponse](t, rec)

	rec = srv.do(t, http.MethodPatch, "/orders/"+second.ID+"/status", sellerKey,
		updateStatusRequest{Status: "CANCELLED"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Cancelled by seller", decodeBody[orderResponse](t, rec).CancelReason)
}

func TestCancelOrderEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.addProduct("p1", "sell-1", "Widget", "50.00", 10)

	rec := srv.do(t, http.MethodPost, "/orders", customerKey,
		createRequestBody(orderItemRequest{ProductID: "p1", Quantity: 2}))
	created := decodeBody[orderResponse](t, rec)
	require.Equal(t, 8, srv.products.byID["p1"].Stock)

	rec = srv.do(t, http.MethodPost, "/orders/"+created.ID+"/cancel", customerKey,
		cancelOrderRequest{Reason: "changed my mind"})
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[orderResponse](t, rec)
	assert.Equal(t, "CANCELLED", resp.Status)
	assert.Equal(t, "REFUNDED", resp.PaymentStatus)
	assert.Equal(t, "changed my mind", resp.CancelReason)
	assert.Equal(t, 10, srv.products.byID["p1"].Stock)

	rec = srv.do(t, http.MethodPost, "/orders/"+created.ID+"/cancel", customerKey,
		cancelOrderRequest{Reason: "again"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListOrdersEndpoint(t *testing.T) {
	srv := newTestServer(t)
	srv.addProduct("p1", "sell-1", "Widget", "50.00", 10)

	rec := srv.do(t, http.MethodPost, "/orders", customerKey,
		createRequestBody(orderItemRequest{ProductID: "p1", Quantity: 1}))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = srv.do(t, http.MethodGet, "/orders?limit=5&offset=0", customerKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	page := decodeBody[orderPageResponse](t, rec)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 5, page.Limit)
	require.Len(t, page.Orders, 1)
}

func TestProductEndpoints(t *testing.T) {
	srv := newTestServer(t)
	srv.addProduct("p1", "sell-1", "Widget", "50.00", 10)

	rec := srv.do(t, http.MethodGet, "/products/p1", customerKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[productResponse](t, rec)
	assert.Equal(t, "Widget", resp.Name)
	assert.Equal(t, 10, resp.Stock)

	rec = srv.do(t, http.MethodGet, "/products/missing", customerKey, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyticsEndpoints(t *testing.T) {
	srv := newTestServer(t)

	rec := srv.do(t, http.MethodGet, "/analytics/revenue", customerKey, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = srv.do(t, http.MethodGet, "/analytics/revenue", sellerKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rev := decodeBody[revenueResponse](t, rec)
	assert.InDelta(t, 300.00, rev.TotalRevenue, 0.001)
	assert.InDelta(t, 150.00, rev.AverageOrder, 0.001)

	rec = srv.do(t, http.MethodGet, "/analytics/dashboard", adminKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dash := decodeBody[dashboardResponse](t, rec)
	assert.Equal(t, 2, dash.Revenue.OrderCount)
	require.Len(t, dash.Daily, 1)
	assert.Equal(t, "2025-06-14", dash.Daily[0].Day)
	require.Len(t, dash.Statuses, 1)
	assert.Equal(t, "PENDING", dash.Statuses[0].Status)
}
