package rules

import (
	"context"

	"trustcore/internal/logger"
	"trustcore/pkg/metrics"
	"trustcore/pkg/models"
)

// EventHandler feeds broker messages to the engine. The envelope payload is the event.
type EventHandler struct {
	engine *Engine
	logger logger.Logger
}

func NewEventHandler(engine *Engine, log logger.Logger) *EventHandler {
	return &EventHandler{
		engine: engine,
		logger: log,
	}
}

// HandleMessage returns an error only when rules could not be loaded, before any action ran,
// so the broker may retry it safely.
func (h *EventHandler) HandleMessage(ctx context.Context, msg models.MessageEnvelope) error {
	metrics.IncEventsEvaluated("kafka")

	if err := models.ValidateEvent(&msg); err != nil {
		h.logger.WarnwCtx(ctx, "Skipping invalid event", "id", msg.ID, "type", msg.Type, "error", err)
		return nil
	}

	results, err := h.engine.EvaluateAllRules(ctx, msg.Payload, msg.Metadata.DryRun)
	if err != nil {
		h.logger.ErrorwCtx(ctx, "Failed to evaluate rules for event", "error", err)
		return err
	}

	matched, failedActions := 0, 0
	for _, r := range results {
		if r.Matched {
			matched++
		}
		for _, ar := range r.ActionResults {
			if !ar.Success {
				failedActions++
			}
		}
	}

	h.logger.InfowCtx(ctx, "Event evaluated",
		"type", msg.Type,
		"source", msg.Source,
		"rules_evaluated", len(results),
		"rules_matched", matched,
		"failed_actions", failedActions,
		"dry_run", msg.Metadata.DryRun,
	)

	return nil
}
