package domain

import "time"

// Category — товарная категория каталога.
type Category struct {
	ID          string
	Name        string
	Description string
}

// Product агрегирует состояние карточки товара и его складской остаток.
type Product struct {
	ID          string
	Name        string
	Description string
	// PriceMinor — цена за единицу в минимальных денежных единицах (центы).
	PriceMinor int64
	// StockQuantity — доступный к продаже остаток; никогда не уходит в минус.
	StockQuantity int32
	CategoryID    string
	// CategoryName денормализуется при чтении для отображения в списках.
	CategoryName string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ValidateInvariants проверяет базовые инварианты карточки товара.
func (p *Product) ValidateInvariants() []error {
	var errs []error

	if p.Name == "" {
		errs = append(errs, ErrNameRequired)
	}
	if p.PriceMinor < 0 {
		errs = append(errs, ErrInvalidPrice)
	}
	if p.StockQuantity < 0 {
		errs = append(errs, ErrStockBelowZero)
	}

	return errs
}
