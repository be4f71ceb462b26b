package domain

import "time"

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ оформлен и ожидает выдачи/оплаты.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusCompleted — заказ выдан покупателю.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCancelled — заказ отменён; остаток по pending-заказу возвращается на склад.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// ParseOrderStatus валидирует строковое представление статуса.
func ParseOrderStatus(s string) (OrderStatus, error) {
	switch OrderStatus(s) {
	case OrderStatusPending, OrderStatusCompleted, OrderStatusCancelled:
		return OrderStatus(s), nil
	default:
		return "", ErrInvalidStatus
	}
}

// CanTransitionTo проверяет разрешённые переходы статуса.
// Pending — единственный нетерминальный статус.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == next {
		return false
	}
	return s == OrderStatusPending
}

// OrderItem представляет одну позицию сохранённого заказа.
type OrderItem struct {
	ID      string
	OrderID string
	// ProductID — идентификатор товара в каталоге.
	ProductID string
	// ProductName — снимок названия на момент оформления, не живая ссылка.
	ProductName string
	// Qty — количество единиц товара.
	Qty int32
	// PriceMinor — цена за единицу в минимальных денежных единицах.
	PriceMinor int64
	CreatedAt  time.Time
}

// LineTotalMinor возвращает стоимость позиции: qty * price.
func (i OrderItem) LineTotalMinor() int64 {
	return int64(i.Qty) * i.PriceMinor
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID         string
	CustomerID string
	// CustomerName денормализуется при чтении для списков и отчётов.
	CustomerName string
	Status       OrderStatus
	TotalMinor   int64
	Items        []OrderItem
	OrderDate    time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrNoCustomerSelected)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrEmptyOrder)
	}
	if o.TotalMinor < 0 {
		errs = append(errs, ErrInvalidPrice)
	}

	// Сверяем сумму заказа с суммой позиций: qty * price.
	seen := make(map[string]struct{}, len(o.Items))
	var calc int64
	for _, item := range o.Items {
		if item.Qty <= 0 {
			errs = append(errs, ErrInvalidQuantity)
		}
		if item.PriceMinor < 0 {
			errs = append(errs, ErrInvalidPrice)
		}
		if _, dup := seen[item.ProductID]; dup {
			// Дубликаты productId запрещены: черновик обязан сливать их заранее.
			errs = append(errs, ErrDuplicateLine)
		}
		seen[item.ProductID] = struct{}{}
		calc += item.LineTotalMinor()
	}
	if calc != o.TotalMinor {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}
