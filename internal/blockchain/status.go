package blockchain

// AnchorStatus describes how a hash was committed. Batches only move through Pending, Anchored and
// Failed; AnchoredFallback marks a locally derived pseudo-anchor and is never chain-confirmed.
type AnchorStatus string

const (
	StatusAnchored         AnchorStatus = "anchored"
	StatusAnchoredFallback AnchorStatus = "anchored_fallback"
	StatusPending          AnchorStatus = "pending"
	StatusFailed           AnchorStatus = "failed"
)

func (s AnchorStatus) ChainConfirmed() bool {
	return s == StatusAnchored
}

func (s AnchorStatus) Valid() bool {
	switch s {
	case StatusAnchored, StatusAnchoredFallback, StatusPending, StatusFailed:
		return true
	}
	return false
}
