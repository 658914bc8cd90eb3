package health

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ok(context.Context) error   { return nil }
func down(context.Context) error { return errors.New("connection refused") }

func TestCheckerRegistry(t *testing.T) {
	tests := []struct {
		name     string
		required func(context.Context) error
		optional func(context.Context) error
		want     Status
		code     int
	}{
		{"all healthy", ok, ok, StatusHealthy, http.StatusOK},
		{"optional down", ok, down, StatusDegraded, http.StatusOK},
		{"required down", down, ok, StatusUnhealthy, http.StatusServiceUnavailable},
		{"both down", down, down, StatusUnhealthy, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry := NewCheckerRegistry()
			registry.Register(NewFuncChecker("postgresql", tt.required))
			registry.RegisterOptional(NewFuncChecker("redis", tt.optional))

			h := registry.Check(context.Background())
			assert.Equal(t, tt.want, h.Status)
			assert.Equal(t, tt.code, h.HTTPStatus())
			assert.Len(t, h.Checks, 2)
		})
	}
}

func TestCheckerRegistry_Messages(t *testing.T) {
	registry := NewCheckerRegistry()
	registry.RegisterOptional(NewFuncChecker("mongodb", down))

	h := registry.Check(context.Background())
	assert.Equal(t, StatusDegraded, h.Checks["mongodb"].Status)
	assert.Equal(t, "connection refused", h.Checks["mongodb"].Message)
}
