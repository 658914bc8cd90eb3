package action

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"trustcore/internal/constants"
	"trustcore/pkg/errors"
)

const maxWebhookResponse = 64 * 1024

func (d *Dispatcher) executeWebhook(ctx context.Context, act *WebhookAction, ec ExecutionContext) Result {
	payload := act.Payload
	if payload == nil {
		payload = ec.Event
	}

	envelope := act.EnvelopeKind()
	if envelope == EnvelopeAEAD && d.aead == nil {
		return failure(TypeWebhook, errors.ErrDependencyUnavailable.WithDetail("message", "aead envelope requested but no webhook aead key is configured"))
	}

	if ec.DryRun {
		return simulated(TypeWebhook, map[string]interface{}{
			"url":      act.URL,
			"envelope": string(envelope),
		})
	}

	var body interface{} = payload
	var err error
	switch envelope {
	case EnvelopeObfuscation:
		body, err = obfuscate(payload, act.Envelope == EnvelopeNone)
	case EnvelopeAEAD:
		body, err = seal(d.aead, payload, constants.RuleSourcePrefix+ec.RuleID)
	}
	if err != nil {
		return failure(TypeWebhook, err)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return failure(TypeWebhook, fmt.Errorf("failed to marshal webhook payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, act.URL, bytes.NewReader(data))
	if err != nil {
		return failure(TypeWebhook, fmt.Errorf("failed to create webhook request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", d.userAgent)
	for k, v := range act.Headers {
		req.Header.Set(k, v)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return failure(TypeWebhook, errors.ErrExternalCall.WithCause(err))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxWebhookResponse))
	metadata := map[string]interface{}{
		"statusCode": resp.StatusCode,
		"envelope":   string(envelope),
	}

	if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
		result := failure(TypeWebhook, errors.ErrExternalCall.WithDetail("message",
			fmt.Sprintf("Webhook returned status %d", resp.StatusCode)))
		result.Metadata = metadata
		return result
	}

	return Result{
		Type:    TypeWebhook,
		Success: true,
		Result: map[string]interface{}{
			"statusCode": resp.StatusCode,
			"response":   decodeResponse(respBody),
		},
		Metadata: metadata,
	}
}

func decodeResponse(body []byte) interface{} {
	if len(body) == 0 {
		return nil
	}
	var decoded interface{}
	if err := json.Unmarshal(body, &decoded); err == nil {
		return decoded
	}
	return string(body)
}
