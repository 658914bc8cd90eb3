package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder(t *testing.T) {
	msg := NewMessageEnvelopeBuilder().
		WithType(EventTypeBatchAnchored).
		WithSource("trust-service").
		WithBatchID("b-1").
		WithAttribute("count", 3).
		WithPayload(map[string]interface{}{"root": "0xabc"}).
		Build()

	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Timestamp.IsZero())
	assert.Equal(t, "b-1", msg.Metadata.BatchID)
	assert.Equal(t, 3, msg.Metadata.Attributes["count"])
	require.NoError(t, ValidateEvent(msg))
}

func TestValidateEvent(t *testing.T) {
	tests := []struct {
		name    string
		msg     *MessageEnvelope
		wantErr bool
	}{
		{"payload only", &MessageEnvelope{Payload: map[string]interface{}{"risk": 0.4}}, false},
		{"nil payload", &MessageEnvelope{ID: "m-1", Source: "payments"}, true},
		{"empty payload", &MessageEnvelope{ID: "m-1", Payload: map[string]interface{}{}}, true},
		{"nil envelope", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEvent(tt.msg)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
}
