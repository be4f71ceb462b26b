package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/retailpos/internal/domain"
)

func seedCheckoutFixtures(t *testing.T, store *Store) (customerID, productID string) {
	t.Helper()
	ctx := context.Background()

	customers := NewCustomerRepository(store)
	customerID = uuid.NewString()
	if err := customers.Create(ctx, domain.Customer{
		ID:   customerID,
		Name: "Integration Customer",
	}); err != nil {
		t.Fatalf("seed customer: %v", err)
	}

	products := NewProductRepository(store)
	productID = uuid.NewString()
	if err := products.Create(ctx, domain.Product{
		ID:            productID,
		Name:          "Integration Product",
		PriceMinor:    250,
		StockQuantity: 10,
	}); err != nil {
		t.Fatalf("seed product: %v", err)
	}

	return customerID, productID
}

func TestOrderRepository_CreateAndCancelIntegration(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()

	customerID, productID := seedCheckoutFixtures(t, store)
	products := NewProductRepository(store)
	orders := NewOrderRepository(store)

	orderID := uuid.NewString()
	err := orders.Create(ctx, domain.Order{
		ID:         orderID,
		CustomerID: customerID,
		Status:     domain.OrderStatusPending,
		TotalMinor: 750,
		Items: []domain.OrderItem{
			{ProductID: productID, ProductName: "Integration Product", Qty: 3, PriceMinor: 250},
		},
		OrderDate: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	product, err := products.Get(ctx, productID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.StockQuantity != 7 {
		t.Fatalf("expected stock 7 after checkout, got %d", product.StockQuantity)
	}

	cancelled, err := orders.Cancel(ctx, orderID)
	if err != nil {
		t.Fatalf("cancel order: %v", err)
	}
	if cancelled.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled status, got %s", cancelled.Status)
	}

	product, err = products.Get(ctx, productID)
	if err != nil {
		t.Fatalf("get product after cancel: %v", err)
	}
	if product.StockQuantity != 10 {
		t.Fatalf("expected stock restored to 10, got %d", product.StockQuantity)
	}
}

func TestOrderRepository_InsufficientStockRollsBackIntegration(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()

	customerID, productID := seedCheckoutFixtures(t, store)
	products := NewProductRepository(store)
	orders := NewOrderRepository(store)

	orderID := uuid.NewString()
	err := orders.Create(ctx, domain.Order{
		ID:         orderID,
		CustomerID: customerID,
		Status:     domain.OrderStatusPending,
		TotalMinor: 5000,
		Items: []domain.OrderItem{
			{ProductID: productID, ProductName: "Integration Product", Qty: 20, PriceMinor: 250},
		},
		OrderDate: time.Now().UTC(),
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	// Транзакция откатилась целиком: заказа нет, остаток цел.
	if _, err := orders.Get(ctx, orderID); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected order to be absent, got %v", err)
	}
	product, err := products.Get(ctx, productID)
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if product.StockQuantity != 10 {
		t.Fatalf("expected stock 10 after rollback, got %d", product.StockQuantity)
	}
}
