package action

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"trustcore/internal/blockchain"
	"trustcore/pkg/errors"
	"trustcore/pkg/metrics"
)

// EventHash returns v unchanged when it is a string, otherwise the SHA-256 hex digest of
// its canonical JSON form (object keys sorted, no HTML escaping).
func EventHash(v interface{}) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("eventHash is not serializable: %w", err)
	}

	sum := sha256.Sum256(bytes.TrimRight(buf.Bytes(), "\n"))
	return hex.EncodeToString(sum[:]), nil
}

func (d *Dispatcher) executeAnchor(ctx context.Context, act *AnchorAction, ec ExecutionContext) Result {
	hash, err := EventHash(act.EventHash)
	if err != nil {
		return failure(TypeAnchor, err)
	}

	if ec.DryRun {
		return simulated(TypeAnchor, map[string]interface{}{"hash": hash})
	}

	var reason string
	if d.blockchain != nil {
		metadata, _ := json.Marshal(map[string]interface{}{
			"ruleId":     ec.RuleID,
			"anchoredAt": d.now().UTC(),
		})
		txHash, err := d.blockchain.AnchorBundle(ctx, hash, 1, string(metadata))
		if err == nil {
			metrics.IncAnchorOutcome("action", string(blockchain.StatusAnchored))
			return Result{
				Type:    TypeAnchor,
				Success: true,
				Result: AnchorOutcome{
					Hash:     hash,
					AnchorID: txHash,
					TxHash:   txHash,
					Status:   blockchain.StatusAnchored,
				},
				Metadata: map[string]interface{}{
					"anchorStatus": blockchain.StatusAnchored,
					"fallback":     false,
				},
			}
		}
		reason = errors.Message(err)
		d.logger.WarnwCtx(ctx, "Blockchain anchoring failed, using fallback anchor",
			"hash", hash,
			"error", err,
		)
	} else {
		reason = "blockchain client not configured"
	}

	metrics.IncAnchorOutcome("action", string(blockchain.StatusAnchoredFallback))
	return Result{
		Type:    TypeAnchor,
		Success: true,
		Result: AnchorOutcome{
			Hash:     hash,
			AnchorID: FallbackAnchorID(hash, d.now().UnixMilli()),
			Status:   blockchain.StatusAnchoredFallback,
		},
		Metadata: map[string]interface{}{
			"anchorStatus":   blockchain.StatusAnchoredFallback,
			"fallback":       true,
			"fallbackReason": reason,
		},
	}
}

// FallbackAnchorID derives the local pseudo-anchor id sha256(hash + unix millis).
func FallbackAnchorID(hash string, unixMillis int64) string {
	sum := sha256.Sum256([]byte(hash + strconv.FormatInt(unixMillis, 10)))
	return hex.EncodeToString(sum[:])
}
