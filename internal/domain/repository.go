package domain

import (
	"context"
	"time"
)

// ProductRepository описывает требования к хранилищу каталога.
type ProductRepository interface {
	// Create сохраняет новую карточку товара.
	Create(ctx context.Context, product Product) error
	// Update перезаписывает карточку или возвращает ErrProductNotFound.
	Update(ctx context.Context, product Product) error
	// Delete удаляет карточку или возвращает ErrProductNotFound.
	Delete(ctx context.Context, id string) error
	// Get возвращает товар с актуальным остатком или ErrProductNotFound.
	Get(ctx context.Context, id string) (Product, error)
	// List возвращает товары, опционально отфильтрованные по категории.
	List(ctx context.Context, categoryID string) ([]Product, error)
	// ListLowStock возвращает товары с остатком ниже порога.
	ListLowStock(ctx context.Context, threshold int32) ([]Product, error)
	// AdjustStock атомарно изменяет остаток на delta и возвращает новое значение.
	// Возвращает ErrStockBelowZero, если результат ушёл бы в минус.
	AdjustStock(ctx context.Context, id string, delta int32) (int32, error)
}

// CategoryRepository описывает требования к хранилищу категорий.
type CategoryRepository interface {
	Create(ctx context.Context, category Category) error
	List(ctx context.Context) ([]Category, error)
}

// CustomerRepository описывает требования к хранилищу покупателей.
type CustomerRepository interface {
	// Create сохраняет покупателя; возвращает ErrDuplicateEmail при конфликте email.
	Create(ctx context.Context, customer Customer) error
	Get(ctx context.Context, id string) (Customer, error)
	List(ctx context.Context) ([]Customer, error)
	// Exists — лёгкая проверка наличия покупателя без загрузки карточки.
	Exists(ctx context.Context, id string) (bool, error)
}

// ProductSales — агрегированная строка отчёта по продажам товара.
type ProductSales struct {
	ProductID    string
	ProductName  string
	CategoryName string
	QtySold      int64
	RevenueMinor int64
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет заказ с позициями и списывает остатки — всё одной
	// транзакцией. Нехватка остатка по любой позиции откатывает запись целиком
	// и возвращает ErrInsufficientStock (ErrUnknownProduct, если товара нет).
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ с позициями или ErrOrderNotFound.
	Get(ctx context.Context, id string) (Order, error)
	// List возвращает заказы, опционально отфильтрованные по статусу,
	// от новых к старым; limit <= 0 означает «без ограничения».
	List(ctx context.Context, status OrderStatus, limit int) ([]Order, error)
	// UpdateStatus меняет статус заказа без побочных эффектов на склад.
	UpdateStatus(ctx context.Context, id string, status OrderStatus) (Order, error)
	// Cancel переводит заказ в cancelled; для pending-заказа в той же
	// транзакции возвращает списанные остатки на склад.
	Cancel(ctx context.Context, id string) (Order, error)
	// SalesBetween возвращает заказы за период для отчёта о продажах.
	SalesBetween(ctx context.Context, from, to time.Time) ([]Order, error)
	// ProductSalesBetween агрегирует продажи по товарам за период,
	// опционально в рамках одной категории.
	ProductSalesBetween(ctx context.Context, from, to time.Time, categoryID string) ([]ProductSales, error)
}
