package checkout

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retailpos/internal/domain"
	"github.com/vladislavdragonenkov/retailpos/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/retailpos/internal/metrics"
)

// Line — одна позиция черновика заказа. Название товара снимается
// с каталога в момент добавления и дальше не обновляется.
type Line struct {
	ProductID   string
	ProductName string
	Qty         int32
	PriceMinor  int64
}

// TotalMinor возвращает стоимость позиции.
func (l Line) TotalMinor() int64 {
	return int64(l.Qty) * l.PriceMinor
}

// Options задаёт необязательные зависимости Builder.
type Options struct {
	Logger   *log.Entry
	Timeline domain.TimelineRepository
	Outbox   domain.OutboxRepository
	Metrics  *metrics.CheckoutMetrics
}

// Option настраивает Builder.
type Option func(*Options)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithTimeline подключает ленту истории заказа.
func WithTimeline(timeline domain.TimelineRepository) Option {
	return func(opts *Options) {
		opts.Timeline = timeline
	}
}

// WithOutbox подключает transactional outbox для событий заказа.
func WithOutbox(outbox domain.OutboxRepository) Option {
	return func(opts *Options) {
		opts.Outbox = outbox
	}
}

// WithMetrics подключает метрики оформления.
func WithMetrics(m *metrics.CheckoutMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// Builder накапливает позиции черновика заказа и фиксирует его атомарно.
// Черновик принадлежит одной сессии; mutex защищает его, потому что
// HTTP-обработчик может собирать черновик из нескольких вызовов.
type Builder struct {
	catalog   domain.ProductCatalog
	customers domain.CustomerDirectory
	orders    domain.OrderRepository
	timeline  domain.TimelineRepository
	outbox    domain.OutboxRepository
	metrics   *metrics.CheckoutMetrics
	logger    *log.Entry

	mu         sync.Mutex
	lines      []Line
	index      map[string]int
	totalMinor int64
}

// NewBuilder создаёт пустой черновик заказа.
func NewBuilder(catalog domain.ProductCatalog, customers domain.CustomerDirectory, orders domain.OrderRepository, options ...Option) *Builder {
	opts := Options{}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "checkout-builder")
	}

	return &Builder{
		catalog:   catalog,
		customers: customers,
		orders:    orders,
		timeline:  opts.Timeline,
		outbox:    opts.Outbox,
		metrics:   opts.Metrics,
		logger:    logger,
		index:     make(map[string]int),
	}
}

// AddLine добавляет позицию в черновик или сливает её с уже существующей
// позицией того же товара. Остаток читается из каталога при каждом вызове;
// отказ по любой проверке оставляет черновик нетронутым.
func (b *Builder) AddLine(ctx context.Context, productID string, qty int32, priceMinor int64) error {
	if qty <= 0 {
		return domain.ErrInvalidQuantity
	}
	if priceMinor < 0 {
		return domain.ErrInvalidPrice
	}

	product, err := b.catalog.Lookup(ctx, productID)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.ErrUnknownProduct
		}
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	merged := qty
	if pos, ok := b.index[productID]; ok {
		merged += b.lines[pos].Qty
	}
	if merged > product.StockQuantity {
		return fmt.Errorf("%w: product %s: requested %d, available %d",
			domain.ErrInsufficientStock, productID, merged, product.StockQuantity)
	}

	wasEmpty := len(b.lines) == 0
	if pos, ok := b.index[productID]; ok {
		// Слияние меняет только количество: цена и название остаются
		// снимком на момент первого добавления.
		b.lines[pos].Qty = merged
	} else {
		b.index[productID] = len(b.lines)
		b.lines = append(b.lines, Line{
			ProductID:   productID,
			ProductName: product.Name,
			Qty:         qty,
			PriceMinor:  priceMinor,
		})
	}
	b.recomputeTotal()

	if wasEmpty && b.metrics != nil {
		b.metrics.RecordDraftOpened()
	}

	return nil
}

// RemoveLine удаляет позицию товара из черновика.
// Возвращает false, если такой позиции не было.
func (b *Builder) RemoveLine(productID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	pos, ok := b.index[productID]
	if !ok {
		return false
	}

	b.lines = append(b.lines[:pos], b.lines[pos+1:]...)
	delete(b.index, productID)
	for i := pos; i < len(b.lines); i++ {
		b.index[b.lines[i].ProductID] = i
	}
	b.recomputeTotal()

	if len(b.lines) == 0 && b.metrics != nil {
		b.metrics.RecordDraftClosed()
	}

	return true
}

// Reset очищает черновик. Повторный вызов на пустом черновике безопасен.
func (b *Builder) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resetLocked()
}

func (b *Builder) resetLocked() {
	wasEmpty := len(b.lines) == 0
	b.lines = nil
	b.index = make(map[string]int)
	b.totalMinor = 0

	if !wasEmpty && b.metrics != nil {
		b.metrics.RecordDraftClosed()
	}
}

// Lines возвращает копию текущих позиций черновика в порядке добавления.
func (b *Builder) Lines() []Line {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Line(nil), b.lines...)
}

// TotalMinor возвращает текущую сумму черновика.
func (b *Builder) TotalMinor() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalMinor
}

func (b *Builder) recomputeTotal() {
	var total int64
	for _, line := range b.lines {
		total += line.TotalMinor()
	}
	b.totalMinor = total
}

// Commit фиксирует черновик: перед записью остаток каждой позиции сверяется
// со свежим чтением каталога, затем заказ, позиции и списания сохраняются
// одной транзакцией. Любая ошибка оставляет черновик нетронутым; успех
// очищает его и возвращает созданный заказ.
func (b *Builder) Commit(ctx context.Context, customerID string) (domain.Order, error) {
	started := time.Now()

	if customerID == "" {
		b.reject("no_customer")
		return domain.Order{}, domain.ErrNoCustomerSelected
	}

	known, err := b.customers.Exists(ctx, customerID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%w: check customer: %v", domain.ErrPersistence, err)
	}
	if !known {
		b.reject("no_customer")
		return domain.Order{}, domain.ErrNoCustomerSelected
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.lines) == 0 {
		b.reject("empty_order")
		return domain.Order{}, domain.ErrEmptyOrder
	}

	// Повторная сверка остатков: между AddLine и Commit товар могли продать.
	for _, line := range b.lines {
		product, err := b.catalog.Lookup(ctx, line.ProductID)
		if err != nil {
			if domain.IsNotFound(err) {
				b.reject("unknown_product")
				return domain.Order{}, fmt.Errorf("%w: product %s", domain.ErrUnknownProduct, line.ProductID)
			}
			return domain.Order{}, fmt.Errorf("%w: recheck stock: %v", domain.ErrPersistence, err)
		}
		if line.Qty > product.StockQuantity {
			b.reject("insufficient_stock")
			return domain.Order{}, fmt.Errorf("%w: product %s: requested %d, available %d",
				domain.ErrInsufficientStock, line.ProductID, line.Qty, product.StockQuantity)
		}
	}

	order := domain.Order{
		ID:         uuid.NewString(),
		CustomerID: customerID,
		Status:     domain.OrderStatusPending,
		TotalMinor: b.totalMinor,
		OrderDate:  time.Now().UTC(),
	}
	for _, line := range b.lines {
		order.Items = append(order.Items, domain.OrderItem{
			ID:          uuid.NewString(),
			OrderID:     order.ID,
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Qty:         line.Qty,
			PriceMinor:  line.PriceMinor,
			CreatedAt:   order.OrderDate,
		})
	}

	if err := b.orders.Create(ctx, order); err != nil {
		switch {
		case domain.IsInsufficientStock(err):
			b.reject("insufficient_stock")
			return domain.Order{}, err
		case domain.IsNotFound(err):
			b.reject("unknown_product")
			return domain.Order{}, err
		default:
			b.reject("persistence")
			return domain.Order{}, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
		}
	}

	b.resetLocked()
	b.recordCommitted(order, time.Since(started))

	b.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"customer_id": order.CustomerID,
		"total_minor": order.TotalMinor,
		"lines":       len(order.Items),
	}).Info("order committed")

	return order, nil
}

func (b *Builder) reject(reason string) {
	if b.metrics != nil {
		b.metrics.RecordCommitRejected(reason)
	}
}

func (b *Builder) recordCommitted(order domain.Order, elapsed time.Duration) {
	if b.metrics != nil {
		b.metrics.RecordOrderCommitted()
		b.metrics.RecordCommitDuration(elapsed)
	}

	if b.timeline != nil {
		event := domain.TimelineEvent{
			AggregateID: order.ID,
			Type:        domain.TimelineOrderCreated,
			Occurred:    time.Now().UTC(),
		}
		if err := b.timeline.Append(event); err != nil {
			b.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to append timeline event")
		} else if b.metrics != nil {
			b.metrics.RecordTimelineEvent()
		}
	}

	if b.outbox != nil {
		payload, err := json.Marshal(kafka.NewOrderEvent(
			kafka.EventTypeOrderCreated, order.ID, order.CustomerID, string(order.Status), order.TotalMinor))
		if err != nil {
			b.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to marshal outbox payload")
			return
		}
		msg := domain.OutboxMessage{
			ID:            uuid.NewString(),
			AggregateType: kafka.AggregateTypeOrder,
			AggregateID:   order.ID,
			EventType:     string(kafka.EventTypeOrderCreated),
			Payload:       payload,
		}
		if _, err := b.outbox.Enqueue(msg); err != nil {
			b.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to enqueue outbox message")
		} else if b.metrics != nil {
			b.metrics.RecordOutboxEvent()
		}
	}
}
