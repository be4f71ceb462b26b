package domain

import "errors"

var (
	// ErrInvalidQuantity — количество не является положительным целым.
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	// ErrInvalidPrice — отрицательная цена за единицу.
	ErrInvalidPrice = errors.New("unit price must be non-negative")
	// ErrUnknownProduct — позиция ссылается на товар, которого нет в каталоге.
	ErrUnknownProduct = errors.New("unknown product")
	// ErrInsufficientStock — суммарное количество в черновике превышает доступный остаток.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrNoCustomerSelected — попытка оформить заказ без валидного покупателя.
	ErrNoCustomerSelected = errors.New("no customer selected")
	// ErrEmptyOrder — попытка оформить заказ без единой позиции.
	ErrEmptyOrder = errors.New("order must contain at least one line")
	// ErrPersistence оборачивает любую ошибку транзакционного сохранения заказа.
	ErrPersistence = errors.New("persistence failure")
	// ErrTotalMismatch — сумма заказа не совпадает с суммой позиций.
	ErrTotalMismatch = errors.New("order total does not match line totals")
	// ErrDuplicateLine — две позиции заказа ссылаются на один товар.
	ErrDuplicateLine = errors.New("duplicate product line in order")

	// ErrProductNotFound возвращается, если товар не найден в хранилище.
	ErrProductNotFound = errors.New("product not found")
	// ErrCategoryNotFound возвращается, если категория не найдена.
	ErrCategoryNotFound = errors.New("category not found")
	// ErrCustomerNotFound возвращается, если покупатель не найден.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")

	// Ошибка отсутствующего имени товара или покупателя.
	ErrNameRequired = errors.New("name is required")
	// Ошибка некорректного формата email.
	ErrInvalidEmail = errors.New("invalid email format")
	// Ошибка некорректного формата телефона.
	ErrInvalidPhone = errors.New("invalid phone format")
	// Ошибка повторного использования email покупателя.
	ErrDuplicateEmail = errors.New("customer email already exists")

	// ErrStockBelowZero — корректировка увела бы остаток в минус.
	ErrStockBelowZero = errors.New("stock adjustment would take stock below zero")
	// ErrAdjustmentReasonRequired — ручная корректировка без указания причины.
	ErrAdjustmentReasonRequired = errors.New("adjustment reason is required")

	// ErrInvalidStatus — неизвестный статус заказа.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrStatusTransition — запрошенный переход статуса не разрешён.
	ErrStatusTransition = errors.New("order status transition is not allowed")

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// Ошибки обработки idempotency-ключей.
	ErrIdempotencyKeyRequired         = errors.New("idempotency key is required")
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	ErrIdempotencyKeyNotFound         = errors.New("idempotency key not found")
	ErrIdempotencyKeyAlreadyExists    = errors.New("idempotency key already exists")
	ErrIdempotencyHashMismatch        = errors.New("idempotency key reused with different request")
)

// IsInsufficientStock проверяет, является ли ошибка нехваткой остатка.
func IsInsufficientStock(err error) bool {
	return errors.Is(err, ErrInsufficientStock)
}

// IsNotFound проверяет, относится ли ошибка к семейству "не найдено".
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrCategoryNotFound) ||
		errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrOrderNotFound)
}
