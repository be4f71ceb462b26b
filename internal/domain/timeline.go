package domain

import "time"

// Типы событий, попадающих в ленту истории агрегатов.
const (
	TimelineOrderCreated       = "order.created"
	TimelineOrderStatusChanged = "order.status_changed"
	TimelineOrderCancelled     = "order.cancelled"
	TimelineStockAdjusted      = "stock.adjusted"
	TimelineStockLow           = "stock.low"
)

// TimelineEvent описывает событие в жизненном цикле агрегата:
// заказа или складского остатка товара.
type TimelineEvent struct {
	AggregateID string
	Type        string
	Reason      string
	Occurred    time.Time
}
