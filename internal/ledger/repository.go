package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgerrors "trustcore/pkg/errors"
)

type Repository interface {
	CreateEvent(ctx context.Context, event *Event) error
	GetLedgerEvent(ctx context.Context, id string) (*Event, error)
	// CreateAllocations writes all rows or none.
	CreateAllocations(ctx context.Context, allocations []Allocation) ([]Allocation, error)
	ListAllocations(ctx context.Context, ledgerEventID string) ([]Allocation, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) CreateEvent(ctx context.Context, event *Event) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	event.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO ledger_events (id, amount, currency, description, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(ctx, query, event.ID, event.Amount, event.Currency, event.Description, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create ledger event: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetLedgerEvent(ctx context.Context, id string) (*Event, error) {
	query := `
		SELECT id, amount, currency, COALESCE(description, ''), created_at
		FROM ledger_events
		WHERE id = $1
	`

	var event Event
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&event.ID, &event.Amount, &event.Currency, &event.Description, &event.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("ledger event '%s' not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger event: %w", err)
	}

	return &event, nil
}

func (r *PostgresRepository) CreateAllocations(ctx context.Context, allocations []Allocation) ([]Allocation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO ledger_allocations (id, ledger_event_id, bucket, percent, amount, rule_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	now := time.Now().UTC()
	created := make([]Allocation, 0, len(allocations))
	for _, a := range allocations {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		a.CreatedAt = now

		var ruleID *string
		if a.RuleID != "" {
			ruleID = &a.RuleID
		}

		if _, err := tx.ExecContext(ctx, query,
			a.ID, a.LedgerEventID, a.Bucket, a.Percent, a.Amount, ruleID, a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to create allocation for bucket %s: %w", a.Bucket, err)
		}
		created = append(created, a)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit allocations: %w", err)
	}

	return created, nil
}

func (r *PostgresRepository) ListAllocations(ctx context.Context, ledgerEventID string) ([]Allocation, error) {
	query := `
		SELECT id, ledger_event_id, bucket, percent, amount, COALESCE(rule_id, ''), created_at
		FROM ledger_allocations
		WHERE ledger_event_id = $1
		ORDER BY created_at ASC, bucket ASC
	`

	rows, err := r.db.QueryContext(ctx, query, ledgerEventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocations: %w", err)
	}
	defer rows.Close()

	allocations := []Allocation{}
	for rows.Next() {
		var a Allocation
		if err := rows.Scan(&a.ID, &a.LedgerEventID, &a.Bucket, &a.Percent, &a.Amount, &a.RuleID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan allocation: %w", err)
		}
		allocations = append(allocations, a)
	}

	return allocations, rows.Err()
}
