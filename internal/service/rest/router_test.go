package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/retailpos/internal/domain"
	"github.com/vladislavdragonenkov/retailpos/internal/service/checkout"
	"github.com/vladislavdragonenkov/retailpos/internal/service/inventory"
	"github.com/vladislavdragonenkov/retailpos/internal/service/orders"
	"github.com/vladislavdragonenkov/retailpos/internal/service/reporting"
	"github.com/vladislavdragonenkov/retailpos/internal/storage/memory"
)

type testEnv struct {
	router   http.Handler
	products *memory.ProductRepository
	orders   domain.OrderRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	products := memory.NewProductRepository()
	categories := memory.NewCategoryRepository()
	customers := memory.NewCustomerRepository()
	orderRepo := memory.NewOrderRepository(products)
	timeline := memory.NewTimelineRepository()
	outbox := memory.NewOutboxRepository()
	idempotency := memory.NewIdempotencyRepository()

	ctx := context.Background()
	seed := []domain.Product{
		{ID: "p-coffee", Name: "Кофе зерновой", PriceMinor: 999, StockQuantity: 5, CategoryID: "cat-grocery"},
		{ID: "p-tea", Name: "Чай листовой", PriceMinor: 450, StockQuantity: 30, CategoryID: "cat-grocery"},
	}
	for _, p := range seed {
		require.NoError(t, products.Create(ctx, p))
	}
	require.NoError(t, customers.Create(ctx, domain.Customer{
		ID:    "c-1",
		Name:  "Мария Иванова",
		Email: "maria@example.com",
	}))

	inventoryService := inventory.NewService(products, inventory.WithTimeline(timeline), inventory.WithOutbox(outbox))
	ordersService := orders.NewService(orderRepo, orders.WithTimeline(timeline), orders.WithOutbox(outbox))
	reportingService := reporting.NewService(orderRepo, products, 10, nil)

	router := NewRouter(Deps{
		Products:    products,
		Catalog:     products,
		Categories:  categories,
		Customers:   customers,
		Orders:      ordersService,
		Inventory:   inventoryService,
		Reporting:   reportingService,
		Idempotency: idempotency,
		NewBuilder: func() *checkout.Builder {
			return checkout.NewBuilder(products, customers, orderRepo,
				checkout.WithTimeline(timeline), checkout.WithOutbox(outbox))
		},
	})

	return &testEnv{router: router, products: products, orders: orderRepo}
}

func (e *testEnv) do(t *testing.T, method, target string, body any, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	recorder := httptest.NewRecorder()
	e.router.ServeHTTP(recorder, req)
	return recorder
}

func decodeJSON[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &v))
	return v
}

func TestProducts_CRUD(t *testing.T) {
	env := newTestEnv(t)

	created := env.do(t, http.MethodPost, "/api/products", map[string]any{
		"name":           "Шоколад",
		"price_minor":    350,
		"stock_quantity": 15,
	}, nil)
	require.Equal(t, http.StatusCreated, created.Code)
	product := decodeJSON[productResponse](t, created)
	require.NotEmpty(t, product.ID)

	got := env.do(t, http.MethodGet, "/api/products/"+product.ID, nil, nil)
	require.Equal(t, http.StatusOK, got.Code)
	assert.Equal(t, "Шоколад", decodeJSON[productResponse](t, got).Name)

	updated := env.do(t, http.MethodPut, "/api/products/"+product.ID, map[string]any{
		"name":           "Шоколад тёмный",
		"price_minor":    390,
		"stock_quantity": 15,
	}, nil)
	require.Equal(t, http.StatusOK, updated.Code)

	list := env.do(t, http.MethodGet, "/api/products", nil, nil)
	require.Equal(t, http.StatusOK, list.Code)
	assert.Len(t, decodeJSON[[]productResponse](t, list), 3)

	deleted := env.do(t, http.MethodDelete, "/api/products/"+product.ID, nil, nil)
	require.Equal(t, http.StatusNoContent, deleted.Code)

	missing := env.do(t, http.MethodGet, "/api/products/"+product.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestProducts_CreateValidation(t *testing.T) {
	env := newTestEnv(t)

	noName := env.do(t, http.MethodPost, "/api/products", map[string]any{
		"price_minor": 100,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, noName.Code)

	negativePrice := env.do(t, http.MethodPost, "/api/products", map[string]any{
		"name":        "Товар",
		"price_minor": -5,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, negativePrice.Code)
}

func TestProducts_LowStock(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/api/products/low-stock", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	low := decodeJSON[[]productResponse](t, resp)
	require.Len(t, low, 1)
	assert.Equal(t, "p-coffee", low[0].ID)

	resp = env.do(t, http.MethodGet, "/api/products/low-stock?threshold=100", nil, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decodeJSON[[]productResponse](t, resp), 2)

	resp = env.do(t, http.MethodGet, "/api/products/low-stock?threshold=abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestCustomers_CreateAndValidation(t *testing.T) {
	env := newTestEnv(t)

	created := env.do(t, http.MethodPost, "/api/customers", map[string]any{
		"name":  "Пётр Сидоров",
		"email": "petr@example.com",
		"phone": "+79001234567",
	}, nil)
	require.Equal(t, http.StatusCreated, created.Code)

	badEmail := env.do(t, http.MethodPost, "/api/customers", map[string]any{
		"name":  "Без почты",
		"email": "not-an-email",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, badEmail.Code)

	duplicate := env.do(t, http.MethodPost, "/api/customers", map[string]any{
		"name":  "Дубль",
		"email": "petr@example.com",
	}, nil)
	assert.Equal(t, http.StatusConflict, duplicate.Code)
}

func TestCheckout_Success(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/orders", map[string]any{
		"customer_id": "c-1",
		"items": []map[string]any{
			{"product_id": "p-coffee", "quantity": 3},
			{"product_id": "p-tea", "quantity": 2, "price_minor": 400},
		},
	}, nil)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	order := decodeJSON[orderResponse](t, resp)
	assert.Equal(t, "pending", order.Status)
	// 3*999 (цена каталога) + 2*400 (цена из запроса)
	assert.Equal(t, int64(3797), order.TotalMinor)
	require.Len(t, order.Items, 2)

	product, err := env.products.Get(context.Background(), "p-coffee")
	require.NoError(t, err)
	assert.Equal(t, int32(2), product.StockQuantity)
}

func TestCheckout_Failures(t *testing.T) {
	env := newTestEnv(t)

	insufficient := env.do(t, http.MethodPost, "/api/orders", map[string]any{
		"customer_id": "c-1",
		"items":       []map[string]any{{"product_id": "p-coffee", "quantity": 6}},
	}, nil)
	assert.Equal(t, http.StatusConflict, insufficient.Code)

	unknown := env.do(t, http.MethodPost, "/api/orders", map[string]any{
		"customer_id": "c-1",
		"items":       []map[string]any{{"product_id": "p-404", "quantity": 1}},
	}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, unknown.Code)

	noCustomer := env.do(t, http.MethodPost, "/api/orders", map[string]any{
		"customer_id": "c-404",
		"items":       []map[string]any{{"product_id": "p-coffee", "quantity": 1}},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, noCustomer.Code)

	empty := env.do(t, http.MethodPost, "/api/orders", map[string]any{
		"customer_id": "c-1",
		"items":       []map[string]any{},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, empty.Code)

	// Ни одна неудачная попытка не списала остаток.
	product, err := env.products.Get(context.Background(), "p-coffee")
	require.NoError(t, err)
	assert.Equal(t, int32(5), product.StockQuantity)
}

func TestCheckout_IdempotencyReplay(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]any{
		"customer_id": "c-1",
		"items":       []map[string]any{{"product_id": "p-coffee", "quantity": 2}},
	}
	header := map[string]string{"Idempotency-Key": "checkout-1"}

	first := env.do(t, http.MethodPost, "/api/orders", body, header)
	require.Equal(t, http.StatusCreated, first.Code)
	firstOrder := decodeJSON[orderResponse](t, first)

	replay := env.do(t, http.MethodPost, "/api/orders", body, header)
	require.Equal(t, http.StatusCreated, replay.Code)
	assert.Equal(t, "true", replay.Header().Get("Idempotency-Replayed"))
	assert.Equal(t, firstOrder.ID, decodeJSON[orderResponse](t, replay).ID)

	// Повтор не списал остаток второй раз.
	product, err := env.products.Get(context.Background(), "p-coffee")
	require.NoError(t, err)
	assert.Equal(t, int32(3), product.StockQuantity)

	// Тот же ключ с другим телом отклоняется.
	other := env.do(t, http.MethodPost, "/api/orders", map[string]any{
		"customer_id": "c-1",
		"items":       []map[string]any{{"product_id": "p-tea", "quantity": 1}},
	}, header)
	assert.Equal(t, http.StatusUnprocessableEntity, other.Code)
}

func TestOrders_GetListStatusCancel(t *testing.T) {
	env := newTestEnv(t)

	created := env.do(t, http.MethodPost, "/api/orders", map[string]any{
		"customer_id": "c-1",
		"items":       []map[string]any{{"product_id": "p-coffee", "quantity": 2}},
	}, nil)
	require.Equal(t, http.StatusCreated, created.Code)
	order := decodeJSON[orderResponse](t, created)

	details := env.do(t, http.MethodGet, "/api/orders/"+order.ID, nil, nil)
	require.Equal(t, http.StatusOK, details.Code)
	withTimeline := decodeJSON[orderDetailsResponse](t, details)
	require.Len(t, withTimeline.Timeline, 1)
	assert.Equal(t, domain.TimelineOrderCreated, withTimeline.Timeline[0].Type)

	list := env.do(t, http.MethodGet, "/api/orders?status=pending", nil, nil)
	require.Equal(t, http.StatusOK, list.Code)
	assert.Len(t, decodeJSON[[]orderResponse](t, list), 1)

	badStatus := env.do(t, http.MethodPost, "/api/orders/"+order.ID+"/status", map[string]any{
		"status": "shipped",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, badStatus.Code)

	completed := env.do(t, http.MethodPost, "/api/orders/"+order.ID+"/status", map[string]any{
		"status": "completed",
	}, nil)
	require.Equal(t, http.StatusOK, completed.Code)

	// Терминальный заказ отменить нельзя.
	cancelCompleted := env.do(t, http.MethodPost, "/api/orders/"+order.ID+"/cancel", nil, nil)
	assert.Equal(t, http.StatusConflict, cancelCompleted.Code)
}

func TestOrders_CancelRestoresStock(t *testing.T) {
	env := newTestEnv(t)

	created := env.do(t, http.MethodPost, "/api/orders", map[string]any{
		"customer_id": "c-1",
		"items":       []map[string]any{{"product_id": "p-coffee", "quantity": 4}},
	}, nil)
	require.Equal(t, http.StatusCreated, created.Code)
	order := decodeJSON[orderResponse](t, created)

	cancelled := env.do(t, http.MethodPost, "/api/orders/"+order.ID+"/cancel", nil, nil)
	require.Equal(t, http.StatusOK, cancelled.Code)
	assert.Equal(t, "cancelled", decodeJSON[orderResponse](t, cancelled).Status)

	product, err := env.products.Get(context.Background(), "p-coffee")
	require.NoError(t, err)
	assert.Equal(t, int32(5), product.StockQuantity)
}

func TestInventory_Adjust(t *testing.T) {
	env := newTestEnv(t)

	ok := env.do(t, http.MethodPost, "/api/inventory/adjustments", map[string]any{
		"product_id": "p-tea",
		"delta":      -25,
		"reason":     "списание брака",
	}, nil)
	require.Equal(t, http.StatusOK, ok.Code)
	adjustment := decodeJSON[adjustmentResponse](t, ok)
	assert.Equal(t, int32(5), adjustment.NewStock)
	assert.True(t, adjustment.LowStock)

	noReason := env.do(t, http.MethodPost, "/api/inventory/adjustments", map[string]any{
		"product_id": "p-tea",
		"delta":      1,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, noReason.Code)

	belowZero := env.do(t, http.MethodPost, "/api/inventory/adjustments", map[string]any{
		"product_id": "p-tea",
		"delta":      -50,
		"reason":     "инвентаризация",
	}, nil)
	assert.Equal(t, http.StatusConflict, belowZero.Code)
}

func TestReports_Endpoints(t *testing.T) {
	env := newTestEnv(t)

	created := env.do(t, http.MethodPost, "/api/orders", map[string]any{
		"customer_id": "c-1",
		"items":       []map[string]any{{"product_id": "p-coffee", "quantity": 2}},
	}, nil)
	require.Equal(t, http.StatusCreated, created.Code)
	order := decodeJSON[orderResponse](t, created)

	completed := env.do(t, http.MethodPost, "/api/orders/"+order.ID+"/status", map[string]any{
		"status": "completed",
	}, nil)
	require.Equal(t, http.StatusOK, completed.Code)

	from := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	to := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)

	sales := env.do(t, http.MethodGet, "/api/reports/sales?from="+from+"&to="+to, nil, nil)
	require.Equal(t, http.StatusOK, sales.Code)
	summary := decodeJSON[salesSummaryResponse](t, sales)
	assert.Equal(t, 1, summary.OrdersCompleted)
	assert.Equal(t, int64(1998), summary.RevenueMinor)

	productSales := env.do(t, http.MethodGet, "/api/reports/product-sales?from="+from+"&to="+to, nil, nil)
	require.Equal(t, http.StatusOK, productSales.Code)
	rows := decodeJSON[[]productSalesResponse](t, productSales)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0].QtySold)

	inventoryReport := env.do(t, http.MethodGet, "/api/reports/inventory", nil, nil)
	require.Equal(t, http.StatusOK, inventoryReport.Code)
	report := decodeJSON[inventoryReportResponse](t, inventoryReport)
	assert.Len(t, report.Lines, 2)

	missingRange := env.do(t, http.MethodGet, "/api/reports/sales", nil, nil)
	assert.Equal(t, http.StatusBadRequest, missingRange.Code)
}
