package reporting

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retailpos/internal/domain"
)

// SalesSummary — сводка продаж за период. Денежные итоги считаются
// только по выданным (completed) заказам.
type SalesSummary struct {
	From            time.Time
	To              time.Time
	OrdersTotal     int
	OrdersCompleted int
	OrdersCancelled int
	RevenueMinor    int64
	AverageMinor    int64
}

// InventoryLine — строка отчёта по складу.
type InventoryLine struct {
	Product        domain.Product
	ValuationMinor int64
	LowStock       bool
}

// InventoryReport — отчёт по текущему состоянию склада.
type InventoryReport struct {
	Lines               []InventoryLine
	TotalUnits          int64
	TotalValuationMinor int64
	LowStockCount       int
}

// Service строит отчёты по продажам и складу.
type Service struct {
	orders            domain.OrderRepository
	products          domain.ProductRepository
	logger            *log.Entry
	lowStockThreshold int32
}

// NewService создаёт сервис отчётов; lowStockThreshold <= 0
// заменяется порогом по умолчанию.
func NewService(orders domain.OrderRepository, products domain.ProductRepository, lowStockThreshold int32, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "reporting-service")
	}
	if lowStockThreshold <= 0 {
		lowStockThreshold = 10
	}
	return &Service{
		orders:            orders,
		products:          products,
		logger:            logger,
		lowStockThreshold: lowStockThreshold,
	}
}

// Sales строит сводку продаж за интервал [from, to).
func (s *Service) Sales(ctx context.Context, from, to time.Time) (SalesSummary, error) {
	if !to.After(from) {
		return SalesSummary{}, fmt.Errorf("%w: report range is empty", domain.ErrInvalidQuantity)
	}

	orders, err := s.orders.SalesBetween(ctx, from, to)
	if err != nil {
		return SalesSummary{}, err
	}

	summary := SalesSummary{From: from, To: to, OrdersTotal: len(orders)}
	for _, order := range orders {
		switch order.Status {
		case domain.OrderStatusCompleted:
			summary.OrdersCompleted++
			summary.RevenueMinor += order.TotalMinor
		case domain.OrderStatusCancelled:
			summary.OrdersCancelled++
		}
	}
	if summary.OrdersCompleted > 0 {
		summary.AverageMinor = summary.RevenueMinor / int64(summary.OrdersCompleted)
	}

	return summary, nil
}

// ProductSales агрегирует продажи по товарам за интервал [from, to),
// опционально в рамках одной категории.
func (s *Service) ProductSales(ctx context.Context, from, to time.Time, categoryID string) ([]domain.ProductSales, error) {
	if !to.After(from) {
		return nil, fmt.Errorf("%w: report range is empty", domain.ErrInvalidQuantity)
	}
	return s.orders.ProductSalesBetween(ctx, from, to, categoryID)
}

// Inventory строит отчёт по остаткам с оценкой стоимости склада.
func (s *Service) Inventory(ctx context.Context) (InventoryReport, error) {
	products, err := s.products.List(ctx, "")
	if err != nil {
		return InventoryReport{}, err
	}

	report := InventoryReport{}
	for _, product := range products {
		line := InventoryLine{
			Product:        product,
			ValuationMinor: int64(product.StockQuantity) * product.PriceMinor,
			LowStock:       product.StockQuantity <= s.lowStockThreshold,
		}
		report.Lines = append(report.Lines, line)
		report.TotalUnits += int64(product.StockQuantity)
		report.TotalValuationMinor += line.ValuationMinor
		if line.LowStock {
			report.LowStockCount++
		}
	}

	return report, nil
}
