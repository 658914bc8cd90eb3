package action

import (
	"context"

	"trustcore/internal/ledger"
	"trustcore/pkg/errors"
)

// executeLedgerAllocate runs after Validate, so the percentages already sum to 100.
func (d *Dispatcher) executeLedgerAllocate(ctx context.Context, act *LedgerAllocateAction, ec ExecutionContext) Result {
	if ec.DryRun {
		buckets := make([]string, 0, len(act.Allocations))
		for _, a := range act.Allocations {
			buckets = append(buckets, a.Bucket)
		}
		return simulated(TypeLedgerAllocate, map[string]interface{}{
			"ledgerEventId": act.LedgerEventID,
			"buckets":       buckets,
		})
	}

	if d.ledger == nil {
		return failure(TypeLedgerAllocate, errors.ErrDependencyUnavailable.WithDetail("message", "ledger storage not configured"))
	}

	event, err := d.ledger.GetLedgerEvent(ctx, act.LedgerEventID)
	if err != nil {
		return failure(TypeLedgerAllocate, err)
	}

	rows := make([]ledger.Allocation, 0, len(act.Allocations))
	for _, a := range act.Allocations {
		rows = append(rows, ledger.Allocation{
			LedgerEventID: event.ID,
			Bucket:        a.Bucket,
			Percent:       a.Percent,
			Amount:        event.Amount * a.Percent / 100,
			RuleID:        ec.RuleID,
		})
	}

	created, err := d.ledger.CreateAllocations(ctx, rows)
	if err != nil {
		return failure(TypeLedgerAllocate, err)
	}

	total := 0.0
	for _, a := range created {
		total += a.Amount
	}

	return Result{
		Type:    TypeLedgerAllocate,
		Success: true,
		Result: AllocationOutcome{
			Allocations: created,
			Total:       total,
		},
		Metadata: map[string]interface{}{
			"ledgerEventId": event.ID,
			"eventAmount":   event.Amount,
		},
	}
}
