package plugin

import (
	"context"
	"time"

	"trustcore/internal/broker"
	"trustcore/internal/logger"
	"trustcore/pkg/metrics"
	"trustcore/pkg/models"
)

type Runtime interface {
	// EmitToPlugins delivers event to each plugin in order and reports a result per plugin ID.
	EmitToPlugins(ctx context.Context, plugins []Plugin, event Event) map[string]Result
}

// KafkaRuntime executes plugins out of process: each plugin consumes its own topic.
type KafkaRuntime struct {
	producer    broker.Producer
	topicPrefix string
	logger      logger.Logger
}

func NewKafkaRuntime(producer broker.Producer, topicPrefix string, log logger.Logger) *KafkaRuntime {
	return &KafkaRuntime{
		producer:    producer,
		topicPrefix: topicPrefix,
		logger:      log,
	}
}

func (r *KafkaRuntime) TopicFor(p Plugin) string {
	if p.Topic != "" {
		return p.Topic
	}
	return r.topicPrefix + p.ID
}

func (r *KafkaRuntime) EmitToPlugins(ctx context.Context, plugins []Plugin, event Event) map[string]Result {
	results := make(map[string]Result, len(plugins))

	for _, p := range plugins {
		start := time.Now()
		topic := r.TopicFor(p)

		msg := models.NewMessageEnvelopeBuilder().
			WithType(event.Type).
			WithSource(event.Source).
			WithTimestamp(event.Timestamp).
			WithPayload(event.Payload).
			WithAttribute("plugin_id", p.ID).
			Build()

		err := r.producer.Publish(ctx, topic, *msg)
		result := Result{Duration: time.Since(start)}
		if err != nil {
			result.Error = err.Error()
			metrics.IncPluginEmission(p.ID, "error")
			r.logger.WarnwCtx(ctx, "Plugin emission failed",
				"plugin_id", p.ID,
				"topic", topic,
				"error", err,
			)
		} else {
			result.Success = true
			result.Result = map[string]interface{}{
				"topic":     topic,
				"messageId": msg.ID,
			}
			metrics.IncPluginEmission(p.ID, "success")
		}
		results[p.ID] = result
	}

	return results
}
