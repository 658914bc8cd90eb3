package anchoring

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"trustcore/internal/blockchain"
	"trustcore/internal/merkle"
	pkgerrors "trustcore/pkg/errors"
)

type BatchRepository interface {
	// CreateBatch fails with ErrConflict when a batch for the same window exists.
	CreateBatch(ctx context.Context, batch *Batch) error
	// UpdateBatch only applies to batches that are not anchored yet.
	UpdateBatch(ctx context.Context, id string, update BatchUpdate) error
	GetBatch(ctx context.Context, id string) (*Batch, error)
	ListBatches(ctx context.Context) ([]Batch, error)
	// FindBatchContaining returns nil, nil when no batch window contains t.
	FindBatchContaining(ctx context.Context, t time.Time) (*Batch, error)
	FindOverlapping(ctx context.Context, start, end time.Time) ([]Batch, error)
	FindByRoot(ctx context.Context, root merkle.Hash) (*Batch, error)
}

type PostgresBatchRepository struct {
	db *sql.DB
}

func NewBatchRepository(db *sql.DB) BatchRepository {
	return &PostgresBatchRepository{db: db}
}

const selectBatch = `
	SELECT id, batch_root_hash, count, period_start, period_end,
		COALESCE(anchored_tx_hash, ''), status, COALESCE(last_error, ''), created_at, updated_at
	FROM anchor_batches
`

func (r *PostgresBatchRepository) CreateBatch(ctx context.Context, batch *Batch) error {
	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	batch.CreatedAt = now
	batch.UpdatedAt = now

	query := `
		INSERT INTO anchor_batches (id, batch_root_hash, count, period_start, period_end, anchored_tx_hash, status, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, NULLIF($8, ''), $9, $10)
	`

	_, err := r.db.ExecContext(ctx, query,
		batch.ID, batch.BatchRootHash.String(), batch.Count,
		batch.PeriodStart, batch.PeriodEnd, batch.AnchoredTxHash,
		string(batch.Status), batch.LastError, batch.CreatedAt, batch.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return pkgerrors.ErrConflict.WithCause(err).WithDetail("message",
				fmt.Sprintf("a batch for window [%s, %s) already exists",
					batch.PeriodStart.Format(time.RFC3339), batch.PeriodEnd.Format(time.RFC3339)))
		}
		return fmt.Errorf("failed to create anchor batch: %w", err)
	}

	return nil
}

func (r *PostgresBatchRepository) UpdateBatch(ctx context.Context, id string, update BatchUpdate) error {
	query := `
		UPDATE anchor_batches
		SET status = $1, anchored_tx_hash = NULLIF($2, ''), last_error = NULLIF($3, ''), updated_at = $4
		WHERE id = $5 AND status <> $6
	`

	res, err := r.db.ExecContext(ctx, query,
		string(update.Status), update.AnchoredTxHash, update.LastError,
		time.Now().UTC(), id, string(blockchain.StatusAnchored),
	)
	if err != nil {
		return fmt.Errorf("failed to update anchor batch: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return pkgerrors.ErrConflict.WithDetail("message", fmt.Sprintf("batch '%s' does not exist or is already anchored", id))
	}
	return nil
}

func (r *PostgresBatchRepository) GetBatch(ctx context.Context, id string) (*Batch, error) {
	batch, err := scanBatch(r.db.QueryRowContext(ctx, selectBatch+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("batch '%s' not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get anchor batch: %w", err)
	}
	return batch, nil
}

func (r *PostgresBatchRepository) ListBatches(ctx context.Context) ([]Batch, error) {
	return r.queryBatches(ctx, selectBatch+` ORDER BY period_start ASC`)
}

func (r *PostgresBatchRepository) FindBatchContaining(ctx context.Context, t time.Time) (*Batch, error) {
	query := selectBatch + `
		WHERE period_start <= $1 AND period_end > $1
		ORDER BY period_start DESC
		LIMIT 1
	`
	batch, err := scanBatch(r.db.QueryRowContext(ctx, query, t))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find anchor batch: %w", err)
	}
	return batch, nil
}

func (r *PostgresBatchRepository) FindOverlapping(ctx context.Context, start, end time.Time) ([]Batch, error) {
	return r.queryBatches(ctx, selectBatch+`
		WHERE period_start < $2 AND period_end > $1
		ORDER BY period_start ASC
	`, start, end)
}

func (r *PostgresBatchRepository) FindByRoot(ctx context.Context, root merkle.Hash) (*Batch, error) {
	query := selectBatch + `
		WHERE batch_root_hash = $1
		ORDER BY period_start ASC
		LIMIT 1
	`
	batch, err := scanBatch(r.db.QueryRowContext(ctx, query, root.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find anchor batch by root: %w", err)
	}
	return batch, nil
}

func (r *PostgresBatchRepository) queryBatches(ctx context.Context, query string, args ...interface{}) ([]Batch, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list anchor batches: %w", err)
	}
	defer rows.Close()

	batches := []Batch{}
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan anchor batch: %w", err)
		}
		batches = append(batches, *batch)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate anchor batches: %w", err)
	}

	return batches, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanBatch(row scanner) (*Batch, error) {
	var (
		batch  Batch
		root   string
		status string
	)
	if err := row.Scan(
		&batch.ID, &root, &batch.Count, &batch.PeriodStart, &batch.PeriodEnd,
		&batch.AnchoredTxHash, &status, &batch.LastError, &batch.CreatedAt, &batch.UpdatedAt,
	); err != nil {
		return nil, err
	}

	hash, err := merkle.ParseHash(root)
	if err != nil {
		return nil, fmt.Errorf("batch %s: %w", batch.ID, err)
	}
	batch.BatchRootHash = hash
	batch.Status = blockchain.AnchorStatus(status)
	batch.PeriodStart = batch.PeriodStart.UTC()
	batch.PeriodEnd = batch.PeriodEnd.UTC()

	return &batch, nil
}
