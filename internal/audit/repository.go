package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	pkgerrors "trustcore/pkg/errors"
)

type Repository interface {
	Append(ctx context.Context, entry *Entry) error
	Get(ctx context.Context, id string) (*Entry, error)
	// ListWindow returns entries with start <= created_at < end ordered by creation time.
	ListWindow(ctx context.Context, start, end time.Time) ([]Entry, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Append(ctx context.Context, entry *Entry) error {
	meta, err := json.Marshal(entry.Meta)
	if err != nil {
		return pkgerrors.Validationf("audit meta is not serializable: %v", err)
	}

	query := `
		INSERT INTO audit_logs (id, entity_type, entity_id, action, actor, meta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = r.db.ExecContext(ctx, query,
		entry.ID, entry.EntityType, entry.EntityID,
		entry.Action, entry.Actor, meta, entry.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return pkgerrors.ErrConflict.WithCause(err).WithDetail("message", fmt.Sprintf("audit log '%s' already exists", entry.ID))
		}
		return fmt.Errorf("failed to append audit log: %w", err)
	}

	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Entry, error) {
	query := `
		SELECT id, entity_type, entity_id, action, actor, meta, created_at
		FROM audit_logs
		WHERE id = $1
	`

	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("audit log '%s' not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit log: %w", err)
	}

	return entry, nil
}

func (r *PostgresRepository) ListWindow(ctx context.Context, start, end time.Time) ([]Entry, error) {
	query := `
		SELECT id, entity_type, entity_id, action, actor, meta, created_at
		FROM audit_logs
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit logs: %w", err)
	}

	return entries, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		entry Entry
		meta  []byte
	)
	if err := row.Scan(
		&entry.ID, &entry.EntityType, &entry.EntityID,
		&entry.Action, &entry.Actor, &meta, &entry.CreatedAt,
	); err != nil {
		return nil, err
	}

	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &entry.Meta); err != nil {
			return nil, fmt.Errorf("failed to decode meta for %s: %w", entry.ID, err)
		}
	}
	entry.CreatedAt = entry.CreatedAt.UTC()

	return &entry, nil
}
