package bus

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/searchlab/search-eval/internal/pkg/errors"
)

// KafkaBus publishes run events to Kafka for external reporting systems.
// Batch evaluation runs are producers only; Subscribe is not supported.
type KafkaBus struct {
	config   KafkaConfig
	producer sarama.SyncProducer

	mu     sync.Mutex
	closed bool
}

// KafkaConfig holds Kafka connection settings.
type KafkaConfig struct {
	Brokers  []string      // Kafka broker addresses
	ClientID string        // Client identifier
	Version  string        // Kafka version (e.g., "2.8.0")
	Timeout  time.Duration // Request timeout (default: 30s)
}

// NewKafkaBus creates a new Kafka-backed event bus.
func NewKafkaBus(cfg KafkaConfig) (*KafkaBus, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.ConfigurationError("kafka brokers cannot be empty")
	}

	// Set defaults
	if cfg.ClientID == "" {
		cfg.ClientID = "search-eval-bus"
	}
	if cfg.Version == "" {
		cfg.Version = "2.8.0"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	version, err := sarama.ParseKafkaVersion(cfg.Version)
	if err != nil {
		return nil, errors.ConfigurationError("invalid kafka version: " + err.Error())
	}

	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Version = version
	kafkaConfig.ClientID = cfg.ClientID
	kafkaConfig.Producer.Return.Successes = true
	kafkaConfig.Producer.Return.Errors = true
	kafkaConfig.Producer.Retry.Max = 3
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Net.DialTimeout = 10 * time.Second
	kafkaConfig.Net.WriteTimeout = cfg.Timeout

	producer, err := sarama.NewSyncProducer(cfg.Brokers, kafkaConfig)
	if err != nil {
		return nil, errors.Wrap(errors.CodeUnavailable, "connecting to kafka", err)
	}

	return &KafkaBus{
		config:   cfg,
		producer: producer,
	}, nil
}

// Publish publishes an event to a Kafka topic.
func (b *KafkaBus) Publish(ctx context.Context, topic string, event Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New(errors.CodeUnavailable, "bus is closed")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(errors.CodeInternal, "encoding event", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: kafkaTopic(topic),
		Value: sarama.ByteEncoder(payload),
	}

	if _, _, err := b.producer.SendMessage(msg); err != nil {
		return errors.Wrap(errors.CodeUnavailable, "publishing event", err)
	}
	return nil
}

// Subscribe is not supported: evaluation runs only produce events.
func (b *KafkaBus) Subscribe(ctx context.Context, topic string, handler Handler) error {
	return errors.New(errors.CodeUnavailable, "kafka bus is publish-only in evaluation runs")
}

// Close closes the producer.
func (b *KafkaBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.producer.Close()
}

// kafkaTopic maps dotted event topics to Kafka topic names.
func kafkaTopic(topic string) string {
	return strings.ReplaceAll(topic, ".", "-")
}
