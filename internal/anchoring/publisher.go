package anchoring

import (
	"context"

	"trustcore/internal/blockchain"
	"trustcore/internal/broker"
	"trustcore/internal/constants"
	"trustcore/internal/logger"
	"trustcore/pkg/models"
)

// EventPublisher announces the outcome of every anchoring attempt.
type EventPublisher interface {
	PublishBatch(ctx context.Context, batch *Batch) error
}

type BrokerEventPublisher struct {
	producer broker.Producer
	topic    string
	logger   logger.Logger
}

func NewEventPublisher(producer broker.Producer, topic string, log logger.Logger) *BrokerEventPublisher {
	if topic == "" {
		topic = constants.DefaultAnchorEventsTopic
	}
	return &BrokerEventPublisher{producer: producer, topic: topic, logger: log}
}

func eventType(status blockchain.AnchorStatus) string {
	switch status {
	case blockchain.StatusAnchored:
		return models.EventTypeBatchAnchored
	case blockchain.StatusFailed:
		return models.EventTypeBatchFailed
	default:
		return models.EventTypeBatchPending
	}
}

func (p *BrokerEventPublisher) PublishBatch(ctx context.Context, batch *Batch) error {
	payload := map[string]interface{}{
		"batchId":       batch.ID,
		"batchRootHash": batch.BatchRootHash.String(),
		"count":         batch.Count,
		"periodStart":   batch.PeriodStart,
		"periodEnd":     batch.PeriodEnd,
		"status":        string(batch.Status),
	}
	if batch.AnchoredTxHash != "" {
		payload["anchoredTxHash"] = batch.AnchoredTxHash
	}
	if batch.LastError != "" {
		payload["lastError"] = batch.LastError
	}

	msg := models.NewMessageEnvelopeBuilder().
		WithType(eventType(batch.Status)).
		WithSource(constants.ServiceName).
		WithBatchID(batch.ID).
		WithPayload(payload).
		Build()

	if err := p.producer.Publish(ctx, p.topic, *msg); err != nil {
		p.logger.ErrorwCtx(ctx, "Failed to publish batch event", "batch_id", batch.ID, "topic", p.topic, "error", err)
		return err
	}
	return nil
}
