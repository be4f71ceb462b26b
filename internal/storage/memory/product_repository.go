package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/retailpos/internal/domain"
)

// ProductRepository — in-memory реализация каталога для локальной разработки
// и тестов. Заказной репозиторий использует её же для атомарного списания
// остатков, поэтому тип экспортируется.
type ProductRepository struct {
	mu    sync.RWMutex
	items map[string]domain.Product
}

// NewProductRepository создаёт пустой in-memory каталог.
func NewProductRepository() *ProductRepository {
	return &ProductRepository{items: make(map[string]domain.Product)}
}

// Create сохраняет новую карточку товара, выдавая ID при необходимости.
func (r *ProductRepository) Create(_ context.Context, product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	product.CreatedAt = now
	product.UpdatedAt = now
	r.items[product.ID] = product
	return nil
}

// Update перезаписывает карточку, сохраняя дату создания.
func (r *ProductRepository) Update(_ context.Context, product domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[product.ID]
	if !ok {
		return domain.ErrProductNotFound
	}
	product.CreatedAt = current.CreatedAt
	product.UpdatedAt = time.Now().UTC()
	r.items[product.ID] = product
	return nil
}

// Delete удаляет карточку товара.
func (r *ProductRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(r.items, id)
	return nil
}

// Get возвращает копию карточки или ErrProductNotFound.
func (r *ProductRepository) Get(_ context.Context, id string) (domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.items[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return product, nil
}

// Lookup позволяет использовать репозиторий как каталог при сборке заказа.
func (r *ProductRepository) Lookup(ctx context.Context, productID string) (domain.Product, error) {
	product, err := r.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, domain.ErrUnknownProduct
	}
	return product, nil
}

// List возвращает товары, опционально отфильтрованные по категории,
// отсортированные по названию.
func (r *ProductRepository) List(_ context.Context, categoryID string) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Product, 0, len(r.items))
	for _, product := range r.items {
		if categoryID != "" && product.CategoryID != categoryID {
			continue
		}
		result = append(result, product)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// ListLowStock возвращает товары с остатком не выше порога.
func (r *ProductRepository) ListLowStock(_ context.Context, threshold int32) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Product, 0)
	for _, product := range r.items {
		if product.StockQuantity <= threshold {
			result = append(result, product)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].StockQuantity != result[j].StockQuantity {
			return result[i].StockQuantity < result[j].StockQuantity
		}
		return result[i].Name < result[j].Name
	})

	return result, nil
}

// AdjustStock атомарно изменяет остаток и возвращает новое значение.
func (r *ProductRepository) AdjustStock(_ context.Context, id string, delta int32) (int32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.items[id]
	if !ok {
		return 0, domain.ErrProductNotFound
	}
	next := product.StockQuantity + delta
	if next < 0 {
		return 0, domain.ErrStockBelowZero
	}
	product.StockQuantity = next
	product.UpdatedAt = time.Now().UTC()
	r.items[id] = product
	return next, nil
}

// applyDecrements списывает остатки по всем позициям заказа под одной
// блокировкой: либо всё, либо ничего.
func (r *ProductRepository) applyDecrements(items []domain.OrderItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Сначала проверяем все позиции, потом применяем.
	for _, item := range items {
		product, ok := r.items[item.ProductID]
		if !ok {
			return domain.ErrUnknownProduct
		}
		if product.StockQuantity < item.Qty {
			return domain.ErrInsufficientStock
		}
	}

	now := time.Now().UTC()
	for _, item := range items {
		product := r.items[item.ProductID]
		product.StockQuantity -= item.Qty
		product.UpdatedAt = now
		r.items[item.ProductID] = product
	}
	return nil
}

// restock возвращает списанные позиции на склад (отмена pending-заказа).
// Товар, удалённый из каталога после оформления заказа, пропускается.
func (r *ProductRepository) restock(items []domain.OrderItem) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	for _, item := range items {
		product, ok := r.items[item.ProductID]
		if !ok {
			continue
		}
		product.StockQuantity += item.Qty
		product.UpdatedAt = now
		r.items[item.ProductID] = product
	}
}

var (
	_ domain.ProductRepository = (*ProductRepository)(nil)
	_ domain.ProductCatalog    = (*ProductRepository)(nil)
)
