package models

import "fmt"

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid envelope field '%s': %s", e.Field, e.Message)
}

// ValidateEvent checks an inbound trust event. Only the payload is required: producers
// outside this service may omit the ID, source and timestamp.
func ValidateEvent(msg *MessageEnvelope) error {
	if msg == nil {
		return &ValidationError{Field: "envelope", Message: "envelope cannot be nil"}
	}
	if msg.Payload == nil {
		return &ValidationError{Field: "payload", Message: "event payload is required"}
	}
	if len(msg.Payload) == 0 {
		return &ValidationError{Field: "payload", Message: "event payload is empty"}
	}
	return nil
}
