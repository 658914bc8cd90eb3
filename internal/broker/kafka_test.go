package broker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustcore/internal/config"
	"trustcore/internal/logger"
	"trustcore/pkg/models"
)

type recordingProducer struct {
	mu       sync.Mutex
	topics   []string
	messages []models.MessageEnvelope
}

func (p *recordingProducer) Publish(_ context.Context, topic string, msg models.MessageEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.messages = append(p.messages, msg)
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func fastRetry() config.RetryConfig {
	return config.RetryConfig{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      1.5,
	}
}

func TestProcessMessageWithRetry(t *testing.T) {
	consumer := NewKafkaConsumer(config.KafkaConfig{Retry: fastRetry()}, logger.NopLogger())

	calls := 0
	err := consumer.processMessageWithRetry(context.Background(), models.MessageEnvelope{ID: "m-1"}, func(ctx context.Context, msg models.MessageEnvelope) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, "trust_events")

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestProcessMessageWithRetry_RecoversPanics(t *testing.T) {
	consumer := NewKafkaConsumer(config.KafkaConfig{Retry: fastRetry()}, logger.NopLogger())

	calls := 0
	err := consumer.processMessageWithRetry(context.Background(), models.MessageEnvelope{ID: "m-1"}, func(ctx context.Context, msg models.MessageEnvelope) error {
		calls++
		panic("handler exploded")
	}, "trust_events")

	require.Error(t, err)
	assert.Equal(t, 1, calls, "panics are not retried")
}

func TestSendToDLQ(t *testing.T) {
	dlq := &recordingProducer{}
	consumer := NewKafkaConsumer(config.KafkaConfig{DLQTopic: "trust_events.dlq"}, logger.NopLogger())
	consumer.dlqProducer = dlq
	consumer.SetServiceName("trust-service")

	err := consumer.sendToDLQ(context.Background(), models.MessageEnvelope{ID: "m-1"}, errors.New("bad payload"), "trust_events")
	require.NoError(t, err)

	require.Len(t, dlq.messages, 1)
	assert.Equal(t, "trust_events.dlq", dlq.topics[0])
	attrs := dlq.messages[0].Metadata.Attributes
	assert.Equal(t, "bad payload", attrs["dlq_reason"])
	assert.Equal(t, "trust_events", attrs["dlq_source_topic"])
	assert.Contains(t, attrs, "dlq_timestamp")
}

func TestFactory(t *testing.T) {
	_, err := NewProducer(config.BrokerConfig{Type: "nats"}, logger.NopLogger())
	assert.Error(t, err)

	producer, err := NewProducer(config.BrokerConfig{Type: "kafka", Kafka: config.KafkaConfig{Brokers: []string{"localhost:9092"}}}, logger.NopLogger())
	require.NoError(t, err)
	assert.NoError(t, producer.Close())

	consumer, err := NewConsumer(config.BrokerConfig{Type: "kafka"}, logger.NopLogger())
	require.NoError(t, err)
	assert.NoError(t, consumer.Close())
}
