// Package notify publishes resolved reorganizations to downstream consumers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"chainExplorer/internal/model"
)

// DefaultTopic receives reorg events when no topic is configured.
const DefaultTopic = "explorer_reorgs"

// Nop drops every event.
type Nop struct{}

// NotifyReorg implements the ingestion notifier.
func (Nop) NotifyReorg(context.Context, model.ReorgEvent) error { return nil }

// Kafka publishes reorg events as JSON, keyed by the ancestor height so a
// consumer sees the events of one chain segment in order.
type Kafka struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// NewKafka connects a synchronous producer to brokers.
func NewKafka(brokers []string, topic string, logger *zap.Logger) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Timeout = 5 * time.Second
	config.Version = sarama.V2_8_0_0

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewKafkaWithProducer(producer, topic, logger), nil
}

// NewKafkaWithProducer wraps an existing producer.
func NewKafkaWithProducer(producer sarama.SyncProducer, topic string, logger *zap.Logger) *Kafka {
	if logger == nil {
		logger = zap.NewNop()
	}
	if topic == "" {
		topic = DefaultTopic
	}
	return &Kafka{producer: producer, topic: topic, logger: logger}
}

// NotifyReorg publishes event.
func (k *Kafka) NotifyReorg(ctx context.Context, event model.ReorgEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode reorg event: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(strconv.FormatUint(event.AncestorHeight, 10)),
		Value: sarama.ByteEncoder(payload),
	}
	partition, offset, err := k.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("publish reorg event: %w", err)
	}
	k.logger.Debug("reorg event published",
		zap.String("topic", k.topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
		zap.Uint64("ancestor_height", event.AncestorHeight),
	)
	return nil
}

// Close closes the producer.
func (k *Kafka) Close() error {
	return k.producer.Close()
}
