// Package blockchain submits Merkle roots to an anchor-registry gateway.
package blockchain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"trustcore/internal/config"
	"trustcore/internal/constants"
	"trustcore/pkg/errors"
)

// Client commits a root hash covering count entries. metadata is an opaque JSON string stored with the anchor.
type Client interface {
	AnchorBundle(ctx context.Context, root string, count int, metadata string) (txHash string, err error)
}

type anchorRequest struct {
	Root     string `json:"root"`
	Count    int    `json:"count"`
	Metadata string `json:"metadata"`
}

type anchorResponse struct {
	TxHash string `json:"txHash"`
}

// HTTPClient talks to the registry gateway over HTTP. The gateway owns wallets and contract calls.
type HTTPClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

func NewHTTPClient(cfg config.BlockchainConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constants.DefaultBlockchainTimeout
	}
	return &HTTPClient{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) AnchorBundle(ctx context.Context, root string, count int, metadata string) (string, error) {
	body, err := json.Marshal(anchorRequest{Root: root, Count: count, Metadata: metadata})
	if err != nil {
		return "", fmt.Errorf("failed to marshal anchor request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/anchors", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create anchor request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.ErrDependencyUnavailable.WithCause(err).WithDetail("dependency", "blockchain")
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		appErr := errors.ErrExternalCall.
			WithCause(fmt.Errorf("anchor registry returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))).
			WithDetail("status", resp.StatusCode)
		if resp.StatusCode < http.StatusInternalServerError {
			return "", appErr.AsFatal()
		}
		return "", appErr
	}

	var out anchorResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", errors.ErrExternalCall.WithCause(fmt.Errorf("invalid anchor response: %w", err)).AsFatal()
	}
	if out.TxHash == "" {
		return "", errors.ErrExternalCall.WithCause(fmt.Errorf("anchor response without txHash")).AsFatal()
	}

	return out.TxHash, nil
}
