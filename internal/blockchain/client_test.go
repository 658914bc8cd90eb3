package blockchain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustcore/internal/config"
	"trustcore/internal/logger"
	"trustcore/pkg/circuitbreaker"
	pkgerrors "trustcore/pkg/errors"
	"trustcore/pkg/retry"
)

func TestHTTPClient_AnchorBundle(t *testing.T) {
	var got anchorRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/anchors", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"txHash":"0xfeed"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(config.BlockchainConfig{Endpoint: server.URL + "/", APIKey: "secret", Timeout: time.Second})
	txHash, err := client.AnchorBundle(context.Background(), "0xroot", 3, `{"batchId":"b1"}`)

	require.NoError(t, err)
	assert.Equal(t, "0xfeed", txHash)
	assert.Equal(t, anchorRequest{Root: "0xroot", Count: 3, Metadata: `{"batchId":"b1"}`}, got)
}

func TestHTTPClient_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		retryable bool
	}{
		{name: "server error is retryable", status: http.StatusBadGateway, body: "upstream", retryable: true},
		{name: "client error is permanent", status: http.StatusUnprocessableEntity, body: "bad root", retryable: false},
		{name: "malformed response", status: http.StatusOK, body: "not json", retryable: false},
		{name: "missing tx hash", status: http.StatusOK, body: `{}`, retryable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewHTTPClient(config.BlockchainConfig{Endpoint: server.URL})
			_, err := client.AnchorBundle(context.Background(), "0xroot", 1, "{}")

			var appErr *pkgerrors.Error
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, pkgerrors.ErrExternalCall.Code, appErr.Code)
			assert.Equal(t, tt.retryable, appErr.IsRetryable())
		})
	}
}

func TestHTTPClient_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := server.URL
	server.Close()

	_, err := NewHTTPClient(config.BlockchainConfig{Endpoint: endpoint}).AnchorBundle(context.Background(), "0xroot", 1, "{}")
	assert.True(t, pkgerrors.IsDependencyUnavailable(err))
}

type scriptedClient struct {
	errs  []error
	calls int
}

func (c *scriptedClient) AnchorBundle(context.Context, string, int, string) (string, error) {
	c.calls++
	if c.calls <= len(c.errs) {
		return "", c.errs[c.calls-1]
	}
	return "0xtx", nil
}

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, Multiplier: 1.5}
}

func TestResilientClient_RetriesTransientFailures(t *testing.T) {
	next := &scriptedClient{errs: []error{errors.New("reset"), pkgerrors.ErrExternalCall}}
	client := NewResilientClient(next, nil, fastPolicy(), logger.NopLogger())

	txHash, err := client.AnchorBundle(context.Background(), "0xroot", 1, "{}")
	require.NoError(t, err)
	assert.Equal(t, "0xtx", txHash)
	assert.Equal(t, 3, next.calls)
}

func TestResilientClient_StopsOnPermanentFailure(t *testing.T) {
	next := &scriptedClient{errs: []error{pkgerrors.ErrExternalCall.AsFatal()}}
	client := NewResilientClient(next, nil, fastPolicy(), logger.NopLogger())

	_, err := client.AnchorBundle(context.Background(), "0xroot", 1, "{}")
	require.Error(t, err)
	assert.Equal(t, 1, next.calls)
}

func TestResilientClient_OpenBreaker(t *testing.T) {
	cfg := circuitbreaker.DefaultConfig("blockchain-test")
	cfg.ReadyToTrip = func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= 2 }
	breaker := circuitbreaker.NewWrapper(cfg)

	failing := errors.New("down")
	next := &scriptedClient{errs: []error{failing, failing, failing, failing}}
	client := NewResilientClient(next, breaker, fastPolicy(), logger.NopLogger())

	_, err := client.AnchorBundle(context.Background(), "0xroot", 1, "{}")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsDependencyUnavailable(err))
	assert.Equal(t, 2, next.calls, "third attempt is rejected by the open breaker")
}
