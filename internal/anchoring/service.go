// Package anchoring batches audit logs into Merkle trees, commits the roots to the anchor
// registry and serves inclusion proofs for individual logs.
package anchoring

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"trustcore/internal/audit"
	"trustcore/internal/blockchain"
	"trustcore/internal/logger"
	"trustcore/internal/merkle"
	pkgerrors "trustcore/pkg/errors"
	"trustcore/pkg/logging"
	"trustcore/pkg/metrics"
	"trustcore/pkg/tracing"
)

const tracerName = "trustcore/anchoring"

// LogSource is the read side of the audit log.
type LogSource interface {
	Get(ctx context.Context, id string) (*audit.Entry, error)
	// ListWindow returns entries with start <= createdAt < end.
	ListWindow(ctx context.Context, start, end time.Time) ([]audit.Entry, error)
}

type Service struct {
	logs       LogSource
	batches    BatchRepository
	cache      ProofCache
	chain      blockchain.Client
	publisher  EventPublisher
	bestEffort bool
	logger     logger.Logger
	now        func() time.Time
}

type ServiceOption func(*Service)

// WithBlockchain enables anchoring. Without a client batches stay pending.
func WithBlockchain(client blockchain.Client) ServiceOption {
	return func(s *Service) {
		s.chain = client
	}
}

func WithPublisher(publisher EventPublisher) ServiceOption {
	return func(s *Service) {
		s.publisher = publisher
	}
}

// WithBestEffortProofScan makes ProofForLog rebuild every batch when no batch window
// contains the log's timestamp.
func WithBestEffortProofScan(enabled bool) ServiceOption {
	return func(s *Service) {
		s.bestEffort = enabled
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(logs LogSource, batches BatchRepository, cache ProofCache, log logger.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		logs:    logs,
		batches: batches,
		cache:   cache,
		logger:  log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type anchorMetadata struct {
	PeriodStart time.Time `json:"periodStart"`
	PeriodEnd   time.Time `json:"periodEnd"`
	BatchID     string    `json:"batchId"`
}

// BuildAndAnchorBatch hashes every audit log in [start, end) into a tree, persists the batch and,
// when a blockchain client is configured, anchors its root. An anchoring failure is recorded on the
// batch and is not returned as an error.
func (s *Service) BuildAndAnchorBatch(ctx context.Context, start, end time.Time) (*Batch, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "anchoring.build_batch")
	defer span.End()

	started := time.Now()
	start, end = start.UTC(), end.UTC()

	if err := s.validateWindow(ctx, start, end); err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	entries, err := s.logs.ListWindow(ctx, start, end)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	if len(entries) == 0 {
		batch := &Batch{
			BatchRootHash: merkle.EmptyRoot,
			Count:         0,
			PeriodStart:   start,
			PeriodEnd:     end,
			Status:        blockchain.StatusAnchored,
		}
		if err := s.createBatch(ctx, batch); err != nil {
			tracing.RecordError(span, err)
			return nil, err
		}
		s.logger.InfowCtx(ctx, "Empty anchoring window recorded",
			"batch_id", batch.ID,
			"period_start", start,
			"period_end", end,
		)
		metrics.ObserveBatchBuild(string(batch.Status), 0, time.Since(started))
		s.afterAttempt(ctx, batch)
		return batch, nil
	}

	tree, leaves, err := buildTree(entries)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	batch := &Batch{
		BatchRootHash: tree.Root,
		Count:         len(entries),
		PeriodStart:   start,
		PeriodEnd:     end,
		Status:        blockchain.StatusPending,
	}
	if err := s.createBatch(ctx, batch); err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	ctx = logging.WithBatchID(ctx, batch.ID)

	s.cache.PutBatch(ctx, batch.ID, tree, leaves)

	if s.chain != nil {
		if err := s.submit(ctx, batch, "batch"); err != nil {
			tracing.RecordError(span, err)
			return nil, err
		}
	} else {
		metrics.IncAnchorOutcome("batch", string(blockchain.StatusPending))
	}

	s.logger.InfowCtx(ctx, "Anchor batch built",
		"root", batch.BatchRootHash.String(),
		"count", batch.Count,
		"status", batch.Status,
	)
	metrics.ObserveBatchBuild(string(batch.Status), batch.Count, time.Since(started))
	s.afterAttempt(ctx, batch)

	return batch, nil
}

func (s *Service) validateWindow(ctx context.Context, start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return pkgerrors.Validationf("periodStart and periodEnd are required")
	}
	if !start.Before(end) {
		return pkgerrors.Validationf("periodStart must be before periodEnd")
	}
	// Logs appended to an open window after the build would change its root.
	if end.After(s.now().UTC()) {
		return pkgerrors.Validationf("window [%s, %s) is not closed yet",
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	overlapping, err := s.batches.FindOverlapping(ctx, start, end)
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	if len(overlapping) > 0 {
		existing := overlapping[0]
		return pkgerrors.ErrConflict.
			WithDetail("message", fmt.Sprintf("window [%s, %s) overlaps batch '%s' [%s, %s)",
				start.Format(time.RFC3339), end.Format(time.RFC3339), existing.ID,
				existing.PeriodStart.Format(time.RFC3339), existing.PeriodEnd.Format(time.RFC3339))).
			WithDetail("batchId", existing.ID)
	}
	return nil
}

func (s *Service) createBatch(ctx context.Context, batch *Batch) error {
	if err := s.batches.CreateBatch(ctx, batch); err != nil {
		if pkgerrors.IsConflict(err) {
			return err
		}
		return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return nil
}

func buildTree(entries []audit.Entry) (*merkle.Tree, map[string]merkle.Hash, error) {
	hashes := make([]merkle.Hash, 0, len(entries))
	leaves := make(map[string]merkle.Hash, len(entries))
	for _, entry := range entries {
		leaf, err := merkle.HashLeaf(entry)
		if err != nil {
			return nil, nil, err
		}
		hashes = append(hashes, leaf)
		leaves[entry.ID] = leaf
	}
	return merkle.BuildTree(hashes), leaves, nil
}

// submit anchors the batch root and persists the outcome onto batch.
func (s *Service) submit(ctx context.Context, batch *Batch, source string) error {
	metadata, err := json.Marshal(anchorMetadata{
		PeriodStart: batch.PeriodStart,
		PeriodEnd:   batch.PeriodEnd,
		BatchID:     batch.ID,
	})
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	txHash, anchorErr := s.anchorBundle(ctx, batch, string(metadata))

	update := BatchUpdate{Status: blockchain.StatusAnchored, AnchoredTxHash: txHash}
	if anchorErr != nil {
		update = BatchUpdate{Status: blockchain.StatusFailed, LastError: pkgerrors.Message(anchorErr)}
		s.logger.WarnwCtx(ctx, "Anchoring batch root failed",
			"root", batch.BatchRootHash.String(),
			"error", anchorErr,
		)
	}

	if err := s.batches.UpdateBatch(ctx, batch.ID, update); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to persist anchoring outcome",
			"status", update.Status,
			"tx_hash", txHash,
			"error", err,
		)
		if pkgerrors.IsConflict(err) {
			return err
		}
		return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	batch.Status = update.Status
	batch.AnchoredTxHash = update.AnchoredTxHash
	batch.LastError = update.LastError
	batch.UpdatedAt = s.now().UTC()
	metrics.IncAnchorOutcome(source, string(update.Status))
	return nil
}

func (s *Service) anchorBundle(ctx context.Context, batch *Batch, metadata string) (txHash string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = pkgerrors.RecoverPanic(r)
		}
	}()
	return s.chain.AnchorBundle(ctx, batch.BatchRootHash.String(), batch.Count, metadata)
}

// afterAttempt announces the batch outcome. Outcomes stay out of the audit log so that idle
// windows remain empty.
func (s *Service) afterAttempt(ctx context.Context, batch *Batch) {
	if s.publisher != nil {
		// already logged by the publisher; the batch row is the source of truth
		_ = s.publisher.PublishBatch(ctx, batch)
	}
}

// RetryBatch resubmits the stored root of a pending or failed batch.
func (s *Service) RetryBatch(ctx context.Context, id string) (*Batch, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "anchoring.retry_batch")
	defer span.End()

	batch, err := s.batches.GetBatch(ctx, id)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithBatchID(ctx, batch.ID)

	if batch.Status == blockchain.StatusAnchored {
		return nil, pkgerrors.ErrConflict.WithDetail("message", fmt.Sprintf("batch '%s' is already anchored", id))
	}
	if s.chain == nil {
		return nil, pkgerrors.ErrDependencyUnavailable.
			WithDetail("message", "blockchain client not configured").
			WithDetail("dependency", "blockchain")
	}

	if err := s.submit(ctx, batch, "retry"); err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	s.logger.InfowCtx(ctx, "Anchor batch resubmitted", "status", batch.Status)
	s.afterAttempt(ctx, batch)
	return batch, nil
}

func (s *Service) GetBatch(ctx context.Context, id string) (*Batch, error) {
	return s.batches.GetBatch(ctx, id)
}

func (s *Service) ListBatches(ctx context.Context) ([]Batch, error) {
	batches, err := s.batches.ListBatches(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return batches, nil
}

// ProofForLog returns the inclusion proof of one audit log. It fails with ErrNotFound when the
// log does not exist or no batch covers it.
func (s *Service) ProofForLog(ctx context.Context, logID string) (*LogProof, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "anchoring.proof_for_log")
	defer span.End()

	if entry, ok := s.cache.Get(ctx, logID); ok {
		if proof := merkle.GenerateProof(entry.Tree, entry.LeafHash); proof != nil {
			batch, err := s.batches.GetBatch(ctx, entry.BatchID)
			if err == nil {
				metrics.IncProofRequest("cache")
				return newLogProof(logID, batch, proof), nil
			}
			s.logger.WarnwCtx(ctx, "Cached proof references unknown batch", "batch_id", entry.BatchID, "error", err)
		}
	}

	entry, err := s.logs.Get(ctx, logID)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			metrics.IncProofRequest("missing")
		}
		return nil, err
	}
	leaf, err := merkle.HashLeaf(*entry)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	batch, err := s.batches.FindBatchContaining(ctx, entry.CreatedAt)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	if batch != nil {
		tree, err := s.rebuild(ctx, batch)
		if err != nil {
			tracing.RecordError(span, err)
			return nil, err
		}
		proof := merkle.GenerateProof(tree, leaf)
		if proof == nil {
			metrics.IncProofRequest("missing")
			return nil, pkgerrors.ErrNotFound.WithDetail("message",
				fmt.Sprintf("audit log '%s' is not part of batch '%s'", logID, batch.ID))
		}
		metrics.IncProofRequest("window")
		return newLogProof(logID, batch, proof), nil
	}

	if s.bestEffort {
		proof, err := s.scanBatches(ctx, logID, leaf)
		if err != nil || proof != nil {
			return proof, err
		}
	}

	metrics.IncProofRequest("missing")
	return nil, pkgerrors.ErrNotFound.WithDetail("message",
		fmt.Sprintf("no anchor batch covers audit log '%s'", logID))
}

// rebuild recomputes the tree of a batch from the audit log and refreshes the cache.
func (s *Service) rebuild(ctx context.Context, batch *Batch) (*merkle.Tree, error) {
	entries, err := s.logs.ListWindow(ctx, batch.PeriodStart, batch.PeriodEnd)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	tree, leaves, err := buildTree(entries)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	if tree.Root != batch.BatchRootHash {
		s.logger.ErrorwCtx(ctx, "Rebuilt tree does not match stored batch root",
			"batch_id", batch.ID,
			"stored_root", batch.BatchRootHash.String(),
			"rebuilt_root", tree.Root.String(),
		)
		return nil, pkgerrors.ErrInternal.
			WithDetail("message", fmt.Sprintf("audit window of batch '%s' no longer matches its root", batch.ID)).
			WithDetail("batchId", batch.ID)
	}

	s.cache.PutBatch(ctx, batch.ID, tree, leaves)
	return tree, nil
}

func (s *Service) scanBatches(ctx context.Context, logID string, leaf merkle.Hash) (*LogProof, error) {
	batches, err := s.batches.ListBatches(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	for i := range batches {
		batch := &batches[i]
		if batch.Count == 0 {
			continue
		}
		tree, err := s.rebuild(ctx, batch)
		if err != nil {
			// a damaged batch must not hide the one that holds the log
			continue
		}
		if proof := merkle.GenerateProof(tree, leaf); proof != nil {
			s.logger.WarnwCtx(ctx, "Proof found by best-effort batch scan",
				"log_id", logID,
				"batch_id", batch.ID,
			)
			metrics.IncProofRequest("scan")
			return newLogProof(logID, batch, proof), nil
		}
	}
	return nil, nil
}

func newLogProof(logID string, batch *Batch, proof *merkle.Proof) *LogProof {
	return &LogProof{
		LogID:          logID,
		BatchID:        batch.ID,
		BatchStatus:    batch.Status,
		AnchoredTxHash: batch.AnchoredTxHash,
		Proof:          *proof,
	}
}

// VerifyProof checks a proof offline and reports the stored batch whose root it proves into.
func (s *Service) VerifyProof(ctx context.Context, proof merkle.Proof) (*VerifyResult, error) {
	result := &VerifyResult{Valid: merkle.VerifyProof(proof)}
	if !result.Valid {
		return result, nil
	}

	batch, err := s.batches.FindByRoot(ctx, proof.Root)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	result.Batch = batch
	return result, nil
}
