package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// Order события
	EventTypeOrderCreated       EventType = "order.created"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
	EventTypeOrderCancelled     EventType = "order.cancelled"

	// Stock события
	EventTypeStockAdjusted EventType = "stock.adjusted"
	EventTypeStockLow      EventType = "stock.low"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "pos.order.events"
	TopicStockEvents     = "pos.stock.events"
	TopicDeadLetterQueue = "pos.dlq" // Dead Letter Queue для failed messages
)

// Имена aggregate_type в outbox, по которым выбирается topic.
const (
	AggregateTypeOrder = "order"
	AggregateTypeStock = "stock"
)

// OrderEvent представляет событие заказа
type OrderEvent struct {
	EventType  EventType              `json:"event_type"`
	OrderID    string                 `json:"order_id"`
	CustomerID string                 `json:"customer_id"`
	Status     string                 `json:"status"`
	TotalMinor int64                  `json:"total_minor"`
	Timestamp  time.Time              `json:"timestamp"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// StockEvent представляет складское событие по товару
type StockEvent struct {
	EventType EventType `json:"event_type"`
	ProductID string    `json:"product_id"`
	Delta     int32     `json:"delta"`
	Stock     int32     `json:"stock"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewOrderEvent создает новое событие заказа
func NewOrderEvent(eventType EventType, orderID, customerID, status string, totalMinor int64) *OrderEvent {
	return &OrderEvent{
		EventType:  eventType,
		OrderID:    orderID,
		CustomerID: customerID,
		Status:     status,
		TotalMinor: totalMinor,
		Timestamp:  time.Now(),
	}
}

// NewStockEvent создает новое складское событие
func NewStockEvent(eventType EventType, productID string, delta, stock int32, reason string) *StockEvent {
	return &StockEvent{
		EventType: eventType,
		ProductID: productID,
		Delta:     delta,
		Stock:     stock,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}
