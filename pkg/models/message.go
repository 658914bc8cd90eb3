package models

import "time"

// MessageEnvelope is the wire format for every message on the broker: inbound trust events,
// plugin events and anchoring status events.
type MessageEnvelope struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type,omitempty"`
	Source    string                 `json:"source"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
	Metadata  Metadata               `json:"metadata"`
}

type Metadata struct {
	TraceID    string                 `json:"trace_id,omitempty"`
	RuleID     string                 `json:"rule_id,omitempty"`
	BatchID    string                 `json:"batch_id,omitempty"`
	DryRun     bool                   `json:"dry_run,omitempty"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

const (
	EventTypeBatchAnchored = "batch.anchored"
	EventTypeBatchFailed   = "batch.failed"
	EventTypeBatchPending  = "batch.pending"
)
