package action

import (
	"trustcore/internal/blockchain"
	"trustcore/pkg/errors"
)

// Result is produced for every executed action, successful or not.
type Result struct {
	Type     Type                   `json:"type"`
	Success  bool                   `json:"success"`
	Result   interface{}            `json:"result,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Metadata map[string]interface{} `json:"metadata"`
}

type AnchorOutcome struct {
	Hash     string                  `json:"hash"`
	AnchorID string                  `json:"anchorId"`
	TxHash   string                  `json:"txHash,omitempty"`
	Status   blockchain.AnchorStatus `json:"status"`
}

type AllocationOutcome struct {
	Allocations interface{} `json:"allocations"`
	Total       float64     `json:"total"`
}

func failure(t Type, err error) Result {
	return Result{
		Type:     t,
		Success:  false,
		Error:    errors.Message(err),
		Metadata: map[string]interface{}{},
	}
}

func simulated(t Type, details map[string]interface{}) Result {
	result := map[string]interface{}{"simulated": true}
	for k, v := range details {
		result[k] = v
	}
	return Result{
		Type:     t,
		Success:  true,
		Result:   result,
		Metadata: map[string]interface{}{"dryRun": true},
	}
}
