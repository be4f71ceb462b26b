package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/retailpos/internal/domain"
)

// orderRepositoryInMemory хранит заказы и согласует списание остатков
// с каталогом, имитируя транзакцию реляционной базы.
type orderRepositoryInMemory struct {
	mu       sync.RWMutex
	items    map[string]domain.Order
	products *ProductRepository
}

// NewOrderRepository возвращает in-memory репозиторий заказов, связанный
// с каталогом для атомарного списания и возврата остатков.
func NewOrderRepository(products *ProductRepository) domain.OrderRepository {
	return &orderRepositoryInMemory{
		items:    make(map[string]domain.Order),
		products: products,
	}
}

// Create сохраняет заказ и списывает остатки по всем позициям —
// либо целиком, либо никак.
func (r *orderRepositoryInMemory) Create(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.ID]; exists {
		return domain.ErrPersistence
	}

	if err := r.products.applyDecrements(order.Items); err != nil {
		return err
	}

	r.items[order.ID] = cloneOrder(order)
	return nil
}

// Get возвращает заказ с позициями или ErrOrderNotFound.
func (r *orderRepositoryInMemory) Get(_ context.Context, id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// List возвращает заказы от новых к старым, опционально по статусу.
func (r *orderRepositoryInMemory) List(_ context.Context, status domain.OrderStatus, limit int) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.items))
	for _, order := range r.items {
		if status != "" && order.Status != status {
			continue
		}
		result = append(result, cloneOrder(order))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].OrderDate.Equal(result[j].OrderDate) {
			return result[i].OrderDate.After(result[j].OrderDate)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// UpdateStatus меняет статус без складских побочных эффектов.
func (r *orderRepositoryInMemory) UpdateStatus(_ context.Context, id string, status domain.OrderStatus) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if !order.Status.CanTransitionTo(status) {
		return domain.Order{}, domain.ErrStatusTransition
	}

	order.Status = status
	r.items[id] = order
	return cloneOrder(order), nil
}

// Cancel переводит заказ в cancelled и возвращает остатки pending-заказа.
func (r *orderRepositoryInMemory) Cancel(_ context.Context, id string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	if !order.Status.CanTransitionTo(domain.OrderStatusCancelled) {
		return domain.Order{}, domain.ErrStatusTransition
	}

	// Товар возвращается на склад только из pending-заказа:
	// выданный заказ склада уже не касается.
	if order.Status == domain.OrderStatusPending {
		r.products.restock(order.Items)
	}

	order.Status = domain.OrderStatusCancelled
	r.items[id] = order
	return cloneOrder(order), nil
}

// SalesBetween возвращает заказы, оформленные в интервале [from, to).
func (r *orderRepositoryInMemory) SalesBetween(_ context.Context, from, to time.Time) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0)
	for _, order := range r.items {
		if order.OrderDate.Before(from) || !order.OrderDate.Before(to) {
			continue
		}
		result = append(result, cloneOrder(order))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].OrderDate.Before(result[j].OrderDate)
	})

	return result, nil
}

// ProductSalesBetween агрегирует продажи по товарам за период.
// Учитываются только выполненные заказы.
func (r *orderRepositoryInMemory) ProductSalesBetween(ctx context.Context, from, to time.Time, categoryID string) ([]domain.ProductSales, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byProduct := make(map[string]*domain.ProductSales)
	for _, order := range r.items {
		if order.Status != domain.OrderStatusCompleted {
			continue
		}
		if order.OrderDate.Before(from) || !order.OrderDate.Before(to) {
			continue
		}
		for _, item := range order.Items {
			var categoryName string
			if product, err := r.products.Get(ctx, item.ProductID); err == nil {
				if categoryID != "" && product.CategoryID != categoryID {
					continue
				}
				categoryName = product.CategoryName
			} else if categoryID != "" {
				continue
			}

			row, ok := byProduct[item.ProductID]
			if !ok {
				row = &domain.ProductSales{
					ProductID:    item.ProductID,
					ProductName:  item.ProductName,
					CategoryName: categoryName,
				}
				byProduct[item.ProductID] = row
			}
			row.QtySold += int64(item.Qty)
			row.RevenueMinor += item.LineTotalMinor()
		}
	}

	result := make([]domain.ProductSales, 0, len(byProduct))
	for _, row := range byProduct {
		result = append(result, *row)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].RevenueMinor != result[j].RevenueMinor {
			return result[i].RevenueMinor > result[j].RevenueMinor
		}
		return result[i].ProductName < result[j].ProductName
	})

	return result, nil
}

// cloneOrder копирует заказ вместе с позициями, чтобы вызывающий код
// не мог мутировать состояние хранилища.
func cloneOrder(src domain.Order) domain.Order {
	dst := src
	dst.Items = make([]domain.OrderItem, len(src.Items))
	copy(dst.Items, src.Items)
	return dst
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
