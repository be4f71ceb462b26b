package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retailpos/internal/domain"
	"github.com/vladislavdragonenkov/retailpos/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/retailpos/internal/metrics"
)

// DefaultLowStockThreshold — порог остатка, ниже которого товар
// попадает в список на дозаказ.
const DefaultLowStockThreshold int32 = 10

// Options задаёт необязательные зависимости Service.
type Options struct {
	Logger            *log.Entry
	Timeline          domain.TimelineRepository
	Outbox            domain.OutboxRepository
	Metrics           *metrics.CheckoutMetrics
	LowStockThreshold int32
}

// Option настраивает Service.
type Option func(*Options)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithTimeline подключает ленту истории складских движений.
func WithTimeline(timeline domain.TimelineRepository) Option {
	return func(opts *Options) {
		opts.Timeline = timeline
	}
}

// WithOutbox подключает transactional outbox для складских событий.
func WithOutbox(outbox domain.OutboxRepository) Option {
	return func(opts *Options) {
		opts.Outbox = outbox
	}
}

// WithMetrics подключает метрики склада.
func WithMetrics(m *metrics.CheckoutMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithLowStockThreshold задаёт порог низкого остатка.
func WithLowStockThreshold(threshold int32) Option {
	return func(opts *Options) {
		opts.LowStockThreshold = threshold
	}
}

// Service выполняет ручные корректировки остатков и отчёт о низком остатке.
type Service struct {
	products  domain.ProductRepository
	timeline  domain.TimelineRepository
	outbox    domain.OutboxRepository
	metrics   *metrics.CheckoutMetrics
	logger    *log.Entry
	threshold int32
}

// NewService создаёт сервис склада.
func NewService(products domain.ProductRepository, options ...Option) *Service {
	opts := Options{LowStockThreshold: DefaultLowStockThreshold}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "inventory-service")
	}
	if opts.LowStockThreshold <= 0 {
		opts.LowStockThreshold = DefaultLowStockThreshold
	}

	return &Service{
		products:  products,
		timeline:  opts.Timeline,
		outbox:    opts.Outbox,
		metrics:   opts.Metrics,
		logger:    logger,
		threshold: opts.LowStockThreshold,
	}
}

// Adjustment — результат ручной корректировки остатка.
type Adjustment struct {
	ProductID string
	Delta     int32
	NewStock  int32
	Reason    string
	LowStock  bool
}

// Adjust изменяет остаток товара на delta с обязательной причиной.
// Уход остатка в минус отклоняется без каких-либо изменений.
func (s *Service) Adjust(ctx context.Context, productID string, delta int32, reason string) (Adjustment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Adjustment{}, domain.ErrAdjustmentReasonRequired
	}
	if delta == 0 {
		return Adjustment{}, fmt.Errorf("%w: delta must be non-zero", domain.ErrInvalidQuantity)
	}

	newStock, err := s.products.AdjustStock(ctx, productID, delta)
	if err != nil {
		return Adjustment{}, err
	}

	adjustment := Adjustment{
		ProductID: productID,
		Delta:     delta,
		NewStock:  newStock,
		Reason:    reason,
		LowStock:  newStock <= s.threshold,
	}

	s.recordAdjustment(adjustment)

	s.logger.WithFields(log.Fields{
		"product_id": productID,
		"delta":      delta,
		"new_stock":  newStock,
		"reason":     reason,
	}).Info("stock adjusted")

	return adjustment, nil
}

// LowStock возвращает товары с остатком не выше порога.
// threshold <= 0 означает порог по умолчанию.
func (s *Service) LowStock(ctx context.Context, threshold int32) ([]domain.Product, error) {
	if threshold <= 0 {
		threshold = s.threshold
	}
	return s.products.ListLowStock(ctx, threshold)
}

// Threshold возвращает настроенный порог низкого остатка.
func (s *Service) Threshold() int32 {
	return s.threshold
}

func (s *Service) recordAdjustment(adjustment Adjustment) {
	if s.metrics != nil {
		direction := "add"
		if adjustment.Delta < 0 {
			direction = "remove"
		}
		s.metrics.RecordStockAdjustment(direction)
		if adjustment.LowStock {
			s.metrics.RecordLowStockDetected()
		}
	}

	if s.timeline != nil {
		now := time.Now().UTC()
		events := []domain.TimelineEvent{{
			AggregateID: adjustment.ProductID,
			Type:        domain.TimelineStockAdjusted,
			Reason:      adjustment.Reason,
			Occurred:    now,
		}}
		if adjustment.LowStock {
			events = append(events, domain.TimelineEvent{
				AggregateID: adjustment.ProductID,
				Type:        domain.TimelineStockLow,
				Occurred:    now,
			})
		}
		for _, event := range events {
			if err := s.timeline.Append(event); err != nil {
				s.logger.WithError(err).WithField("product_id", adjustment.ProductID).Warn("failed to append timeline event")
			} else if s.metrics != nil {
				s.metrics.RecordTimelineEvent()
			}
		}
	}

	if s.outbox != nil {
		s.enqueueStockEvent(kafka.EventTypeStockAdjusted, adjustment)
		if adjustment.LowStock {
			s.enqueueStockEvent(kafka.EventTypeStockLow, adjustment)
		}
	}
}

func (s *Service) enqueueStockEvent(eventType kafka.EventType, adjustment Adjustment) {
	payload, err := json.Marshal(kafka.NewStockEvent(
		eventType, adjustment.ProductID, adjustment.Delta, adjustment.NewStock, adjustment.Reason))
	if err != nil {
		s.logger.WithError(err).WithField("product_id", adjustment.ProductID).Warn("failed to marshal stock event")
		return
	}

	msg := domain.OutboxMessage{
		ID:            uuid.NewString(),
		AggregateType: kafka.AggregateTypeStock,
		AggregateID:   adjustment.ProductID,
		EventType:     string(eventType),
		Payload:       payload,
	}
	if _, err := s.outbox.Enqueue(msg); err != nil {
		s.logger.WithError(err).WithField("product_id", adjustment.ProductID).Warn("failed to enqueue stock event")
	} else if s.metrics != nil {
		s.metrics.RecordOutboxEvent()
	}
}
