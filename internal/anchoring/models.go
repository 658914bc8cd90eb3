package anchoring

import (
	"time"

	"trustcore/internal/blockchain"
	"trustcore/internal/merkle"
)

// Batch is the durable record of one anchoring run over [PeriodStart, PeriodEnd).
// Status moves pending -> anchored or pending -> failed, and failed -> anchored on retry.
type Batch struct {
	ID             string                  `json:"id"`
	BatchRootHash  merkle.Hash             `json:"batchRootHash"`
	Count          int                     `json:"count"`
	PeriodStart    time.Time               `json:"periodStart"`
	PeriodEnd      time.Time               `json:"periodEnd"`
	AnchoredTxHash string                  `json:"anchoredTxHash,omitempty"`
	Status         blockchain.AnchorStatus `json:"status"`
	LastError      string                  `json:"lastError,omitempty"`
	CreatedAt      time.Time               `json:"createdAt"`
	UpdatedAt      time.Time               `json:"updatedAt"`
}

func (b *Batch) Contains(t time.Time) bool {
	return !t.Before(b.PeriodStart) && t.Before(b.PeriodEnd)
}

type BatchUpdate struct {
	Status         blockchain.AnchorStatus
	AnchoredTxHash string
	LastError      string
}

type BuildRequest struct {
	PeriodStart time.Time `json:"periodStart" binding:"required"`
	PeriodEnd   time.Time `json:"periodEnd" binding:"required"`
}

// LogProof is an inclusion proof for one audit log together with the batch it belongs to.
type LogProof struct {
	LogID          string                  `json:"logId"`
	BatchID        string                  `json:"batchId"`
	BatchStatus    blockchain.AnchorStatus `json:"batchStatus"`
	AnchoredTxHash string                  `json:"anchoredTxHash,omitempty"`
	Proof          merkle.Proof            `json:"proof"`
}

type VerifyResult struct {
	Valid bool `json:"valid"`
	// Batch is set when the proof root matches a stored batch.
	Batch *Batch `json:"batch,omitempty"`
}
