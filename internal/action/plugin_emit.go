package action

import (
	"context"
	"fmt"

	"trustcore/internal/constants"
	"trustcore/internal/plugin"
	"trustcore/pkg/errors"
)

func (d *Dispatcher) executePluginEmit(ctx context.Context, act *PluginEmitAction, ec ExecutionContext) Result {
	if d.plugins == nil {
		if ec.DryRun {
			return simulated(TypePluginEmit, map[string]interface{}{
				"pluginId":  act.PluginID,
				"eventType": act.EventType,
			})
		}
		return failure(TypePluginEmit, errors.ErrDependencyUnavailable.WithDetail("message", "plugin registry not configured"))
	}

	p, err := d.plugins.GetPlugin(ctx, act.PluginID)
	if err != nil {
		return failure(TypePluginEmit, err)
	}
	if p == nil {
		return failure(TypePluginEmit, errors.ErrNotFound.WithDetail("message", fmt.Sprintf("Plugin not found: %s", act.PluginID)))
	}
	if !p.Enabled {
		return failure(TypePluginEmit, errors.Validationf("Plugin is disabled: %s", act.PluginID))
	}

	payload := act.Payload
	if payload == nil {
		payload = ec.Event
	}

	if ec.DryRun {
		return simulated(TypePluginEmit, map[string]interface{}{
			"pluginId":  p.ID,
			"eventType": act.EventType,
		})
	}
	if d.runtime == nil {
		return failure(TypePluginEmit, errors.ErrDependencyUnavailable.WithDetail("message", "plugin runtime not configured"))
	}

	event := plugin.Event{
		Type:      act.EventType,
		Payload:   payload,
		Timestamp: d.now().UTC(),
		Source:    constants.RuleSourcePrefix + ec.RuleID,
	}

	results := d.runtime.EmitToPlugins(ctx, []plugin.Plugin{*p}, event)
	outcome, ok := results[p.ID]
	if !ok {
		return failure(TypePluginEmit, errors.ErrExternalCall.WithDetail("message", fmt.Sprintf("Plugin %s returned no result", p.ID)))
	}

	return Result{
		Type:    TypePluginEmit,
		Success: outcome.Success,
		Result:  outcome.Result,
		Error:   outcome.Error,
		Metadata: map[string]interface{}{
			"pluginId":   p.ID,
			"durationMs": outcome.Duration.Milliseconds(),
		},
	}
}
