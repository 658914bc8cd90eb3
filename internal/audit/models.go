package audit

import "time"

// Entry is an append-only record of a trust-relevant event. CreatedAt orders entries for batching.
type Entry struct {
	ID         string                 `json:"id"`
	EntityType string                 `json:"entityType"`
	EntityID   string                 `json:"entityId"`
	Action     string                 `json:"action"`
	Actor      string                 `json:"actor"`
	Meta       map[string]interface{} `json:"meta"`
	CreatedAt  time.Time              `json:"createdAt"`
}

type AppendRequest struct {
	EntityType string                 `json:"entityType" binding:"required"`
	EntityID   string                 `json:"entityId" binding:"required"`
	Action     string                 `json:"action" binding:"required"`
	Actor      string                 `json:"actor"`
	Meta       map[string]interface{} `json:"meta"`
}
