package broker

import (
	"context"

	"trustcore/pkg/models"
)

// Producer publishes envelopes. Publish blocks until the broker acknowledges the write.
type Producer interface {
	Publish(ctx context.Context, topic string, msg models.MessageEnvelope) error
	Close() error
}

// Consumer delivers envelopes from one topic to a handler until ctx is done. Messages the
// handler keeps failing on are moved to the dead letter topic.
type Consumer interface {
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
	SetServiceName(name string)
}

type HandlerFunc func(ctx context.Context, msg models.MessageEnvelope) error
