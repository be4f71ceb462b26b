package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/retailpos/internal/domain"
	"github.com/vladislavdragonenkov/retailpos/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/retailpos/internal/metrics"
)

// Options задаёт необязательные зависимости Service.
type Options struct {
	Logger   *log.Entry
	Timeline domain.TimelineRepository
	Outbox   domain.OutboxRepository
	Metrics  *metrics.CheckoutMetrics
}

// Option настраивает Service.
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

// WithMetrics подключает метрики заказов.
func WithMetrics(m *metrics.CheckoutMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// Service обслуживает просмотр и смену статуса уже оформленных заказов.
type Service struct {
	orders   domain.OrderRepository
	timeline domain.TimelineRepository
	outbox   domain.OutboxRepository
	metrics  *metrics.CheckoutMetrics
	logger   *log.Entry
}

// NewService создаёт сервис заказов.
func NewService(orders domain.OrderRepository, options ...Option) *Service {
	opts := Options{}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "orders-service")
	}

	return &Service{
		orders:   orders,
		timeline: opts.Timeline,
		outbox:   opts.Outbox,
		metrics:  opts.Metrics,
		logger:   logger,
	}
}

// Details — заказ вместе с его лентой событий.
type Details struct {
	Order    domain.Order
	Timeline []domain.TimelineEvent
}

// Get возвращает заказ с позициями и историей.
func (s *Service) Get(ctx context.Context, id string) (Details, error) {
	order, err := s.orders.Get(ctx, id)
	if err != nil {
		return Details{}, err
	}

	details := Details{Order: order}
	if s.timeline != nil {
		events, err := s.timeline.List(id)
		if err != nil {
			s.logger.WithError(err).WithField("order_id", id).Warn("failed to load order timeline")
		} else {
			details.Timeline = events
		}
	}

	return details, nil
}

// List возвращает заказы от новых к старым; statusFilter "" означает все.
func (s *Service) List(ctx context.Context, statusFilter string, limit int) ([]domain.Order, error) {
	var status domain.OrderStatus
	if statusFilter != "" {
		parsed, err := domain.ParseOrderStatus(statusFilter)
		if err != nil {
			return nil, err
		}
		status = parsed
	}
	return s.orders.List(ctx, status, limit)
}

// UpdateStatus переводит заказ в новый статус; склад не затрагивается.
// Для отмены с возвратом остатков есть Cancel.
func (s *Service) UpdateStatus(ctx context.Context, id, statusValue string) (domain.Order, error) {
	status, err := domain.ParseOrderStatus(statusValue)
	if err != nil {
		return domain.Order{}, err
	}
	if status == domain.OrderStatusCancelled {
		return s.Cancel(ctx, id)
	}

	previous, err := s.orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}

	order, err := s.orders.UpdateStatus(ctx, id, status)
	if err != nil {
		return domain.Order{}, err
	}

	s.recordTransition(order, kafka.EventTypeOrderStatusChanged, domain.TimelineOrderStatusChanged,
		fmt.Sprintf("%s -> %s", previous.Status, order.Status))

	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"from":     previous.Status,
		"to":       order.Status,
	}).Info("order status updated")

	return order, nil
}

// Cancel отменяет pending-заказ и возвращает его позиции на склад.
func (s *Service) Cancel(ctx context.Context, id string) (domain.Order, error) {
	order, err := s.orders.Cancel(ctx, id)
	if err != nil {
		return domain.Order{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCancelled()
	}
	s.recordTransition(order, kafka.EventTypeOrderCancelled, domain.TimelineOrderCancelled, "order cancelled, stock restored")

	s.logger.WithField("order_id", order.ID).Info("order cancelled")

	return order, nil
}

func (s *Service) recordTransition(order domain.Order, eventType kafka.EventType, timelineType, reason string) {
	if s.timeline != nil {
		event := domain.TimelineEvent{
			AggregateID: order.ID,
			Type:        timelineType,
			Reason:      reason,
			Occurred:    time.Now().UTC(),
		}
		if err := s.timeline.Append(event); err != nil {
			s.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to append timeline event")
		} else if s.metrics != nil {
			s.metrics.RecordTimelineEvent()
		}
	}

	if s.outbox != nil {
		payload, err := json.Marshal(kafka.NewOrderEvent(
			eventType, order.ID, order.CustomerID, string(order.Status), order.TotalMinor))
		if err != nil {
			s.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to marshal order event")
			return
		}
		msg := domain.OutboxMessage{
			ID:            uuid.NewString(),
			AggregateType: kafka.AggregateTypeOrder,
			AggregateID:   order.ID,
			EventType:     string(eventType),
			Payload:       payload,
		}
		if _, err := s.outbox.Enqueue(msg); err != nil {
			s.logger.WithError(err).WithField("order_id", order.ID).Warn("failed to enqueue order event")
		} else if s.metrics != nil {
			s.metrics.RecordOutboxEvent()
		}
	}
}
