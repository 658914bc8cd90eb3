package ledger

import "time"

type Event struct {
	ID          string    `json:"id"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Allocation struct {
	ID            string    `json:"id"`
	LedgerEventID string    `json:"ledger_event_id"`
	Bucket        string    `json:"bucket"`
	Percent       float64   `json:"percent"`
	Amount        float64   `json:"amount"`
	RuleID        string    `json:"rule_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

type CreateEventRequest struct {
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency" binding:"required"`
	Description string  `json:"description"`
}
