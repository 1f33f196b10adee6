package event

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/erp/ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// Kafka header names set on every forwarded event
const (
	HeaderEventType = "event_type"
	HeaderEventID   = "event_id"
	HeaderTenantID  = "tenant_id"
)

// KafkaProducerConfig configures the producer behind KafkaForwarder
type KafkaProducerConfig struct {
	Brokers  []string
	ClientID string
	MaxRetry int
	Timeout  time.Duration
}

// NewSyncProducer creates a sarama producer that waits for all in-sync
// replicas before acknowledging.
func NewSyncProducer(cfg KafkaProducerConfig) (sarama.SyncProducer, error) {
	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Return.Successes = true
	sc.Producer.Retry.Max = 3
	if cfg.MaxRetry > 0 {
		sc.Producer.Retry.Max = cfg.MaxRetry
	}
	if cfg.Timeout > 0 {
		sc.Producer.Timeout = cfg.Timeout
	}
	if cfg.ClientID != "" {
		sc.ClientID = cfg.ClientID
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return producer, nil
}

// KafkaForwarder is a bus handler that relays every ledger event to a topic.
// Messages are keyed by aggregate id so one account's events stay ordered
// within a partition.
type KafkaForwarder struct {
	producer   sarama.SyncProducer
	topic      string
	serializer *EventSerializer
	logger     *zap.Logger
}

// NewKafkaForwarder creates a forwarder writing to topic
func NewKafkaForwarder(producer sarama.SyncProducer, topic string, serializer *EventSerializer, logger *zap.Logger) *KafkaForwarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaForwarder{
		producer:   producer,
		topic:      topic,
		serializer: serializer,
		logger:     logger,
	}
}

// EventTypes subscribes to every event
func (f *KafkaForwarder) EventTypes() []string {
	return nil
}

// Handle sends the event and waits for the broker acknowledgement
func (f *KafkaForwarder) Handle(_ context.Context, evt shared.DomainEvent) error {
	payload, err := f.serializer.Serialize(evt)
	if err != nil {
		return err
	}

	msg := &sarama.ProducerMessage{
		Topic: f.topic,
		Key:   sarama.StringEncoder(evt.AggregateID().String()),
		Value: sarama.ByteEncoder(payload),
		Headers: []sarama.RecordHeader{
			{Key: []byte(HeaderEventType), Value: []byte(evt.EventType())},
			{Key: []byte(HeaderEventID), Value: []byte(evt.EventID().String())},
			{Key: []byte(HeaderTenantID), Value: []byte(evt.TenantID().String())},
		},
	}

	partition, offset, err := f.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("forward %s to kafka: %w", evt.EventType(), err)
	}
	f.logger.Debug("event forwarded",
		zap.String("event_type", evt.EventType()),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

// Close closes the producer
func (f *KafkaForwarder) Close() error {
	return f.producer.Close()
}

var _ shared.EventHandler = (*KafkaForwarder)(nil)
