package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Classification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
		status    int
	}{
		{name: "validation", err: Validationf("percent sum is %v", 99.5), retryable: false, status: http.StatusBadRequest},
		{name: "unknown type", err: ErrUnknownType.WithDetail("type", "teleport"), retryable: false, status: http.StatusBadRequest},
		{name: "dependency", err: ErrDependencyUnavailable.WithCause(errors.New("dial tcp")), retryable: true, status: http.StatusServiceUnavailable},
		{name: "external call", err: ErrExternalCall, retryable: true, status: http.StatusBadGateway},
		{name: "conflict", err: ErrConflict, retryable: false, status: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var appErr *Error
			assert.True(t, errors.As(tt.err, &appErr))
			assert.Equal(t, tt.retryable, appErr.IsRetryable())
			assert.Equal(t, !tt.retryable, appErr.IsFatal())
			assert.Equal(t, tt.status, ToHTTPStatus(tt.err))
		})
	}
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(fmt.Errorf("failed to list batches: %w", cause), ErrInternal)

	assert.ErrorIs(t, err, cause)
	assert.Nil(t, Wrap(nil, ErrInternal))
}

func TestCodeHelpers(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", ErrDependencyUnavailable.WithDetail("dependency", "blockchain"))

	assert.True(t, IsDependencyUnavailable(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.True(t, IsUnknownType(ErrUnknownType))
	assert.True(t, IsValidation(Validationf("x")))
}

func TestToErrorResponse(t *testing.T) {
	resp := ToErrorResponse(Validationf("allocations must sum to 100"))
	assert.Equal(t, "VALIDATION_ERROR", resp.ErrorCode)
	assert.Equal(t, "allocations must sum to 100", resp.Error)

	resp = ToErrorResponse(errors.New("boom"))
	assert.Equal(t, "INTERNAL_ERROR", resp.ErrorCode)
	assert.Empty(t, resp.Details)
}

func TestRecoverPanic(t *testing.T) {
	assert.Nil(t, RecoverPanic(nil))

	err := RecoverPanic("nil map write")
	var appErr *Error
	assert.True(t, errors.As(err, &appErr))
	assert.True(t, appErr.IsFatal())
	assert.Equal(t, true, appErr.Details["panic"])
}

func TestWithDetailDoesNotMutateSentinel(t *testing.T) {
	_ = ErrValidation.WithDetail("message", "first")
	assert.NotContains(t, ErrValidation.Details, "message")
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "", Message(nil))
	assert.Equal(t, "plain", Message(errors.New("plain")))
	assert.Equal(t, "bad field", Message(Validationf("bad field")))
	assert.Equal(t, "internal server error: boom", Message(ErrInternal.WithCause(errors.New("boom"))))
	assert.Equal(t, "resource conflict", Message(ErrConflict))
}
