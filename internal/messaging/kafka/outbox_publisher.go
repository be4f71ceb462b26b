package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/retailpos/internal/domain"
)

// OutboxRoutingPublisher публикует outbox-сообщения в Kafka, выбирая topic
// по aggregate_type: заказы и складские события идут разными потоками.
type OutboxRoutingPublisher struct {
	producer     *Producer
	orderTopic   string
	stockTopic   string
	defaultTopic string
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer) domain.OutboxPublisher {
	return &OutboxRoutingPublisher{
		producer:     producer,
		orderTopic:   TopicOrderEvents,
		stockTopic:   TopicStockEvents,
		defaultTopic: TopicOrderEvents,
	}
}

func (p *OutboxRoutingPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	return p.producer.PublishEvent(p.topicFor(event.AggregateType), key, newEnvelope(event))
}

func (p *OutboxRoutingPublisher) topicFor(aggregateType string) string {
	switch aggregateType {
	case AggregateTypeOrder:
		return p.orderTopic
	case AggregateTypeStock:
		return p.stockTopic
	default:
		return p.defaultTopic
	}
}

// DLQPublisher публикует сообщения в dead letter queue после исчерпания retry.
type DLQPublisher struct {
	producer *Producer
	topic    string
}

// NewDLQPublisher создаёт паблишер для DLQ-топика.
func NewDLQPublisher(producer *Producer) domain.OutboxPublisher {
	return &DLQPublisher{
		producer: producer,
		topic:    TopicDeadLetterQueue,
	}
}

func (p *DLQPublisher) Publish(event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka dlq publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	return p.producer.PublishEvent(p.topic, key, newEnvelope(event))
}

type envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

func newEnvelope(event domain.OutboxMessage) envelope {
	return envelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishedAt:   time.Now().UTC(),
	}
}

var (
	_ domain.OutboxPublisher = (*OutboxRoutingPublisher)(nil)
	_ domain.OutboxPublisher = (*DLQPublisher)(nil)
)
