package models

import (
	"time"

	"github.com/google/uuid"
)

type MessageEnvelopeBuilder struct {
	envelope *MessageEnvelope
}

func NewMessageEnvelopeBuilder() *MessageEnvelopeBuilder {
	return &MessageEnvelopeBuilder{
		envelope: &MessageEnvelope{
			Payload:  make(map[string]interface{}),
			Metadata: Metadata{},
		},
	}
}

func (b *MessageEnvelopeBuilder) WithID(id string) *MessageEnvelopeBuilder {
	b.envelope.ID = id
	return b
}

func (b *MessageEnvelopeBuilder) WithType(eventType string) *MessageEnvelopeBuilder {
	b.envelope.Type = eventType
	return b
}

func (b *MessageEnvelopeBuilder) WithSource(source string) *MessageEnvelopeBuilder {
	b.envelope.Source = source
	return b
}

func (b *MessageEnvelopeBuilder) WithTimestamp(timestamp time.Time) *MessageEnvelopeBuilder {
	b.envelope.Timestamp = timestamp
	return b
}

func (b *MessageEnvelopeBuilder) WithPayload(payload map[string]interface{}) *MessageEnvelopeBuilder {
	b.envelope.Payload = payload
	return b
}

func (b *MessageEnvelopeBuilder) WithTraceID(traceID string) *MessageEnvelopeBuilder {
	b.envelope.Metadata.TraceID = traceID
	return b
}

func (b *MessageEnvelopeBuilder) WithRuleID(ruleID string) *MessageEnvelopeBuilder {
	b.envelope.Metadata.RuleID = ruleID
	return b
}

func (b *MessageEnvelopeBuilder) WithBatchID(batchID string) *MessageEnvelopeBuilder {
	b.envelope.Metadata.BatchID = batchID
	return b
}

func (b *MessageEnvelopeBuilder) WithAttribute(key string, value interface{}) *MessageEnvelopeBuilder {
	if b.envelope.Metadata.Attributes == nil {
		b.envelope.Metadata.Attributes = make(map[string]interface{})
	}
	b.envelope.Metadata.Attributes[key] = value
	return b
}

// Build fills in a random ID and the current time when they were not set.
func (b *MessageEnvelopeBuilder) Build() *MessageEnvelope {
	if b.envelope.ID == "" {
		b.envelope.ID = uuid.New().String()
	}
	if b.envelope.Timestamp.IsZero() {
		b.envelope.Timestamp = time.Now().UTC()
	}
	return b.envelope
}
