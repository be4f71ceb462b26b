package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/retailpos/internal/domain"
	"github.com/vladislavdragonenkov/retailpos/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/retailpos/internal/metrics"
	"github.com/vladislavdragonenkov/retailpos/internal/service/checkout"
	"github.com/vladislavdragonenkov/retailpos/internal/service/inventory"
	"github.com/vladislavdragonenkov/retailpos/internal/service/orders"
	"github.com/vladislavdragonenkov/retailpos/internal/service/outbox"
	"github.com/vladislavdragonenkov/retailpos/internal/service/reporting"
	"github.com/vladislavdragonenkov/retailpos/internal/service/rest"
	"github.com/vladislavdragonenkov/retailpos/internal/storage/memory"
)

// OrderLifecycleTestSuite прогоняет жизненный цикл заказа через весь стек:
// HTTP API, сервисный слой, in-memory хранилище и публикацию outbox.
type OrderLifecycleTestSuite struct {
	suite.Suite

	server    *httptest.Server
	products  *memory.ProductRepository
	outboxRep domain.OutboxRepository

	productID  string
	customerID string
}

func (s *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel) // Уменьшаем шум в тестах
	logger := baseLogger.WithField("component", "integration-test")

	s.products = memory.NewProductRepository()
	categories := memory.NewCategoryRepository()
	customers := memory.NewCustomerRepository()
	ordersRepo := memory.NewOrderRepository(s.products)
	timeline := memory.NewTimelineRepository()
	s.outboxRep = memory.NewOutboxRepository()
	idempotency := memory.NewIdempotencyRepository()

	checkoutMetrics := metrics.NewCheckoutMetrics()

	inventorySvc := inventory.NewService(s.products,
		inventory.WithLogger(logger),
		inventory.WithTimeline(timeline),
		inventory.WithOutbox(s.outboxRep),
		inventory.WithMetrics(checkoutMetrics),
	)
	ordersSvc := orders.NewService(ordersRepo,
		orders.WithLogger(logger),
		orders.WithTimeline(timeline),
		orders.WithOutbox(s.outboxRep),
		orders.WithMetrics(checkoutMetrics),
	)
	reportingSvc := reporting.NewService(ordersRepo, s.products, 0, logger)

	router := rest.NewRouter(rest.Deps{
		Products:    s.products,
		Catalog:     s.products,
		Categories:  categories,
		Customers:   customers,
		Orders:      ordersSvc,
		Inventory:   inventorySvc,
		Reporting:   reportingSvc,
		Idempotency: idempotency,
		NewBuilder: func() *checkout.Builder {
			return checkout.NewBuilder(s.products, customers, ordersRepo,
				checkout.WithLogger(logger),
				checkout.WithTimeline(timeline),
				checkout.WithOutbox(s.outboxRep),
				checkout.WithMetrics(checkoutMetrics),
			)
		},
		Logger: logger,
	})

	s.server = httptest.NewServer(router)
	s.T().Cleanup(s.server.Close)

	s.seedCatalog()
}

func (s *OrderLifecycleTestSuite) seedCatalog() {
	var category struct {
		ID string `json:"id"`
	}
	s.postJSON("/api/categories", map[string]any{
		"name": "Напитки",
	}, http.StatusCreated, &category, "")

	var product struct {
		ID string `json:"id"`
	}
	s.postJSON("/api/products", map[string]any{
		"name":           "Капучино",
		"price_minor":    500,
		"stock_quantity": 10,
		"category_id":    category.ID,
	}, http.StatusCreated, &product, "")
	s.productID = product.ID

	var customer struct {
		ID string `json:"id"`
	}
	s.postJSON("/api/customers", map[string]any{
		"name":  "Мария Иванова",
		"email": "maria@example.com",
	}, http.StatusCreated, &customer, "")
	s.customerID = customer.ID
}

func (s *OrderLifecycleTestSuite) postJSON(path string, payload any, wantStatus int, out any, idempotencyKey string) {
	s.T().Helper()

	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		require.NoError(s.T(), err)
	}

	req, err := http.NewRequest(http.MethodPost, s.server.URL+path, bytes.NewReader(body))
	require.NoError(s.T(), err)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := s.server.Client().Do(req)
	require.NoError(s.T(), err)
	defer resp.Body.Close()

	require.Equal(s.T(), wantStatus, resp.StatusCode)
	if out != nil {
		require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(out))
	}
}

func (s *OrderLifecycleTestSuite) getJSON(path string, out any) {
	s.T().Helper()

	resp, err := s.server.Client().Get(s.server.URL + path)
	require.NoError(s.T(), err)
	defer resp.Body.Close()

	require.Equal(s.T(), http.StatusOK, resp.StatusCode)
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(out))
}

func (s *OrderLifecycleTestSuite) stock() int32 {
	product, err := s.products.Get(context.Background(), s.productID)
	require.NoError(s.T(), err)
	return product.StockQuantity
}

type orderReply struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	TotalMinor int64  `json:"total_minor"`
	Timeline   []struct {
		Type string `json:"type"`
	} `json:"timeline"`
}

func (s *OrderLifecycleTestSuite) checkout(qty int32, key string) orderReply {
	var order orderReply
	s.postJSON("/api/orders", map[string]any{
		"customer_id": s.customerID,
		"items": []map[string]any{
			{"product_id": s.productID, "quantity": qty},
		},
	}, http.StatusCreated, &order, key)
	return order
}

func (s *OrderLifecycleTestSuite) TestCheckoutCompleteAndReport() {
	order := s.checkout(2, "life-1")
	require.Equal(s.T(), "pending", order.Status)
	require.Equal(s.T(), int64(1000), order.TotalMinor)
	require.Equal(s.T(), int32(8), s.stock())

	// Повтор с тем же ключом возвращает тот же заказ и не трогает склад.
	body, err := json.Marshal(map[string]any{
		"customer_id": s.customerID,
		"items": []map[string]any{
			{"product_id": s.productID, "quantity": 2},
		},
	})
	require.NoError(s.T(), err)
	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/api/orders", bytes.NewReader(body))
	require.NoError(s.T(), err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "life-1")

	resp, err := s.server.Client().Do(req)
	require.NoError(s.T(), err)
	defer resp.Body.Close()
	require.Equal(s.T(), http.StatusCreated, resp.StatusCode)
	require.Equal(s.T(), "true", resp.Header.Get("Idempotency-Replayed"))

	var replayed orderReply
	require.NoError(s.T(), json.NewDecoder(resp.Body).Decode(&replayed))
	require.Equal(s.T(), order.ID, replayed.ID)
	require.Equal(s.T(), int32(8), s.stock())

	var completed orderReply
	s.postJSON(fmt.Sprintf("/api/orders/%s/status", order.ID), map[string]string{
		"status": "completed",
	}, http.StatusOK, &completed, "")
	require.Equal(s.T(), "completed", completed.Status)
	require.Equal(s.T(), int32(8), s.stock())

	var details orderReply
	s.getJSON("/api/orders/"+order.ID, &details)
	types := make([]string, 0, len(details.Timeline))
	for _, event := range details.Timeline {
		types = append(types, event.Type)
	}
	require.Contains(s.T(), types, domain.TimelineOrderCreated)
	require.Contains(s.T(), types, domain.TimelineOrderStatusChanged)

	var sales struct {
		OrdersCompleted int   `json:"orders_completed"`
		RevenueMinor    int64 `json:"revenue_minor"`
	}
	from := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	to := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	s.getJSON(fmt.Sprintf("/api/reports/sales?from=%s&to=%s", from, to), &sales)
	require.Equal(s.T(), 1, sales.OrdersCompleted)
	require.Equal(s.T(), int64(1000), sales.RevenueMinor)
}

func (s *OrderLifecycleTestSuite) TestCancelRestoresStock() {
	order := s.checkout(3, "life-2")
	require.Equal(s.T(), int32(7), s.stock())

	var cancelled orderReply
	s.postJSON(fmt.Sprintf("/api/orders/%s/cancel", order.ID), nil, http.StatusOK, &cancelled, "")
	require.Equal(s.T(), "cancelled", cancelled.Status)
	require.Equal(s.T(), int32(10), s.stock())
}

func (s *OrderLifecycleTestSuite) TestOutboxDrainsIntoKafka() {
	s.checkout(1, "life-3")

	stats, err := s.outboxRep.Stats()
	require.NoError(s.T(), err)
	require.Equal(s.T(), 1, stats.PendingCount)

	mockProducer := mocks.NewSyncProducer(s.T(), nil)
	mockProducer.ExpectSendMessageAndSucceed()

	producer := kafka.NewProducerFromSync(mockProducer)
	worker := outbox.NewWorker(s.outboxRep, kafka.NewOutboxPublisher(producer),
		outbox.WithLogger(log.WithField("component", "integration-outbox")),
	)
	worker.ProcessOnce(context.Background())

	stats, err = s.outboxRep.Stats()
	require.NoError(s.T(), err)
	require.Equal(s.T(), 0, stats.PendingCount)
}

func TestOrderLifecycleTestSuite(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}
