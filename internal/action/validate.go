package action

import (
	"fmt"
	"math"
	"net/url"

	"trustcore/internal/constants"
	"trustcore/pkg/errors"
)

// Validate checks the required fields of an action descriptor.
func Validate(a Action) error {
	switch act := a.(type) {
	case *AnchorAction:
		if isEmptyHash(act.EventHash) {
			return errors.Validationf("anchor action requires eventHash")
		}
	case *WebhookAction:
		if act.URL == "" {
			return errors.Validationf("webhook action requires url")
		}
		u, err := url.Parse(act.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.Validationf("webhook url must be an absolute http(s) URL")
		}
		switch act.EnvelopeKind() {
		case EnvelopeNone, EnvelopeObfuscation, EnvelopeAEAD:
		default:
			return errors.Validationf("unsupported webhook envelope %q", act.Envelope)
		}
	case *PluginEmitAction:
		if act.PluginID == "" || act.EventType == "" {
			return errors.Validationf("plugin_emit action requires pluginId and eventType")
		}
	case *LedgerAllocateAction:
		return validateAllocations(act)
	case *UnknownAction:
		return errors.ErrUnknownType.WithDetail("message", unknownTypeMessage(act.TypeName))
	case nil:
		return errors.Validationf("action is required")
	default:
		return errors.ErrUnknownType.WithDetail("message", fmt.Sprintf("unknown action %T", a))
	}
	return nil
}

func validateAllocations(act *LedgerAllocateAction) error {
	if act.LedgerEventID == "" {
		return errors.Validationf("ledger_allocate action requires ledgerEventId")
	}
	if len(act.Allocations) == 0 {
		return errors.Validationf("ledger_allocate action requires at least one allocation")
	}

	total := 0.0
	for i, alloc := range act.Allocations {
		if alloc.Bucket == "" {
			return errors.Validationf("allocation[%d] requires a bucket", i)
		}
		total += alloc.Percent
	}

	// rounded so that sums like 33.33*3 sit exactly on the slack boundary
	diff := math.Round(math.Abs(total-constants.AllocationPercentTotal)*1e6) / 1e6
	if diff > constants.AllocationPercentSlack {
		return errors.Validationf("allocation percentages must sum to 100, got %g", total)
	}
	return nil
}

func isEmptyHash(v interface{}) bool {
	switch h := v.(type) {
	case nil:
		return true
	case string:
		return h == ""
	default:
		return false
	}
}

func unknownTypeMessage(t string) string {
	return "Unknown action type: " + t
}
