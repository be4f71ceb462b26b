package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/retailpos/internal/domain"
	"github.com/vladislavdragonenkov/retailpos/internal/storage/memory"
)

func seedProducts(t *testing.T, items map[string]int32) *memory.ProductRepository {
	t.Helper()

	products := memory.NewProductRepository()
	ctx := context.Background()
	for id, stock := range items {
		if err := products.Create(ctx, domain.Product{
			ID:            id,
			Name:          "товар " + id,
			PriceMinor:    100,
			StockQuantity: stock,
		}); err != nil {
			t.Fatalf("seed product %s: %v", id, err)
		}
	}
	return products
}

func TestService_Adjust_AddAndRemove(t *testing.T) {
	products := seedProducts(t, map[string]int32{"p1": 20})
	service := NewService(products)
	ctx := context.Background()

	added, err := service.Adjust(ctx, "p1", 5, "приёмка поставки")
	if err != nil {
		t.Fatalf("Adjust(+5): %v", err)
	}
	if added.NewStock != 25 {
		t.Errorf("stock after add: got=%d want=25", added.NewStock)
	}
	if added.LowStock {
		t.Error("25 units should not be flagged as low stock")
	}

	removed, err := service.Adjust(ctx, "p1", -17, "списание брака")
	if err != nil {
		t.Fatalf("Adjust(-17): %v", err)
	}
	if removed.NewStock != 8 {
		t.Errorf("stock after removal: got=%d want=8", removed.NewStock)
	}
	if !removed.LowStock {
		t.Error("8 units at threshold 10 should be flagged as low stock")
	}
}

func TestService_Adjust_ReasonRequired(t *testing.T) {
	products := seedProducts(t, map[string]int32{"p1": 20})
	service := NewService(products)
	ctx := context.Background()

	for _, reason := range []string{"", "   "} {
		if _, err := service.Adjust(ctx, "p1", 5, reason); !errors.Is(err, domain.ErrAdjustmentReasonRequired) {
			t.Errorf("reason %q: got=%v want=ErrAdjustmentReasonRequired", reason, err)
		}
	}

	product, _ := products.Get(ctx, "p1")
	if product.StockQuantity != 20 {
		t.Errorf("stock changed by rejected adjustment: got=%d want=20", product.StockQuantity)
	}
}

func TestService_Adjust_BelowZero(t *testing.T) {
	products := seedProducts(t, map[string]int32{"p1": 3})
	service := NewService(products)
	ctx := context.Background()

	_, err := service.Adjust(ctx, "p1", -4, "инвентаризация")
	if !errors.Is(err, domain.ErrStockBelowZero) {
		t.Fatalf("expected ErrStockBelowZero, got %v", err)
	}

	product, _ := products.Get(ctx, "p1")
	if product.StockQuantity != 3 {
		t.Errorf("stock changed by rejected adjustment: got=%d want=3", product.StockQuantity)
	}
}

func TestService_Adjust_UnknownProduct(t *testing.T) {
	products := seedProducts(t, nil)
	service := NewService(products)

	_, err := service.Adjust(context.Background(), "p404", 1, "приёмка")
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestService_Adjust_ZeroDelta(t *testing.T) {
	products := seedProducts(t, map[string]int32{"p1": 5})
	service := NewService(products)

	_, err := service.Adjust(context.Background(), "p1", 0, "приёмка")
	if !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestService_Adjust_EmitsTimelineAndOutbox(t *testing.T) {
	products := seedProducts(t, map[string]int32{"p1": 12})
	timeline := memory.NewTimelineRepository()
	outbox := memory.NewOutboxRepository()

	service := NewService(products, WithTimeline(timeline), WithOutbox(outbox))
	ctx := context.Background()

	// 12 - 4 = 8 <= 10: корректировка плюс сигнал о низком остатке.
	if _, err := service.Adjust(ctx, "p1", -4, "продажа вне кассы"); err != nil {
		t.Fatalf("Adjust: %v", err)
	}

	events, err := timeline.List("p1")
	if err != nil {
		t.Fatalf("timeline list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("timeline events: got=%d want=2 (%+v)", len(events), events)
	}
	if events[0].Type != domain.TimelineStockAdjusted || events[0].Reason != "продажа вне кассы" {
		t.Errorf("first event: %+v", events[0])
	}
	if events[1].Type != domain.TimelineStockLow {
		t.Errorf("second event: %+v", events[1])
	}

	pending, err := outbox.PullPending(10)
	if err != nil {
		t.Fatalf("outbox pull: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("outbox messages: got=%d want=2", len(pending))
	}
	if pending[0].EventType != "stock.adjusted" || pending[1].EventType != "stock.low" {
		t.Errorf("outbox event types: %s, %s", pending[0].EventType, pending[1].EventType)
	}
	for _, msg := range pending {
		if msg.AggregateType != "stock" || msg.AggregateID != "p1" {
			t.Errorf("outbox routing fields: %+v", msg)
		}
	}
}

func TestService_LowStock(t *testing.T) {
	products := seedProducts(t, map[string]int32{"p1": 2, "p2": 10, "p3": 50})
	service := NewService(products)
	ctx := context.Background()

	low, err := service.LowStock(ctx, 0)
	if err != nil {
		t.Fatalf("LowStock: %v", err)
	}
	if len(low) != 2 {
		t.Fatalf("low stock count at default threshold: got=%d want=2", len(low))
	}
	if low[0].ID != "p1" || low[1].ID != "p2" {
		t.Errorf("low stock order: %s, %s", low[0].ID, low[1].ID)
	}

	low, err = service.LowStock(ctx, 100)
	if err != nil {
		t.Fatalf("LowStock(100): %v", err)
	}
	if len(low) != 3 {
		t.Errorf("low stock count at threshold 100: got=%d want=3", len(low))
	}
}
