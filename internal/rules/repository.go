package rules

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	pkgerrors "trustcore/pkg/errors"
)

type Repository interface {
	// ListRules returns rules in insertion order.
	ListRules(ctx context.Context, filter Filter) ([]Rule, error)
	GetRule(ctx context.Context, id string) (*Rule, error)
	// GetRuleByName returns nil, nil when no rule has that name.
	GetRuleByName(ctx context.Context, name string) (*Rule, error)
	CreateRule(ctx context.Context, rule *Rule) error
	UpdateStatus(ctx context.Context, id string, status Status) error
	IncrementExecution(ctx context.Context, id string) error
}

type PostgresRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &PostgresRepository{db: db}
}

const selectRule = `
	SELECT id, name, COALESCE(description, ''), condition, actions, priority, status,
		execution_count, last_executed_at, created_at, updated_at
	FROM trust_rules
`

func (r *PostgresRepository) ListRules(ctx context.Context, filter Filter) ([]Rule, error) {
	query := selectRule
	args := []interface{}{}
	if filter.Status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	rules := []Rule{}
	for rows.Next() {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, *rule)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}

	return rules, nil
}

func (r *PostgresRepository) GetRule(ctx context.Context, id string) (*Rule, error) {
	rule, err := scanRule(r.db.QueryRowContext(ctx, selectRule+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("rule '%s' not found", id))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

func (r *PostgresRepository) GetRuleByName(ctx context.Context, name string) (*Rule, error) {
	rule, err := scanRule(r.db.QueryRowContext(ctx, selectRule+` WHERE name = $1`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule by name: %w", err)
	}
	return rule, nil
}

func (r *PostgresRepository) CreateRule(ctx context.Context, rule *Rule) error {
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	conditionJSON, err := json.Marshal(rule.Condition)
	if err != nil {
		return fmt.Errorf("failed to encode condition: %w", err)
	}
	actionsJSON, err := json.Marshal(rule.Actions)
	if err != nil {
		return fmt.Errorf("failed to encode actions: %w", err)
	}

	query := `
		INSERT INTO trust_rules (id, name, description, condition, actions, priority, status, execution_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9)
	`

	_, err = r.db.ExecContext(ctx, query,
		rule.ID, rule.Name, rule.Description, conditionJSON, actionsJSON,
		rule.Priority, string(rule.Status), rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return pkgerrors.ErrConflict.WithCause(err).WithDetail("message", fmt.Sprintf("rule with name '%s' already exists", rule.Name))
		}
		return fmt.Errorf("failed to create rule: %w", err)
	}

	return nil
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status Status) error {
	query := `UPDATE trust_rules SET status = $1, updated_at = $2 WHERE id = $3`

	res, err := r.db.ExecContext(ctx, query, string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update rule status: %w", err)
	}
	return requireAffected(res, id)
}

func (r *PostgresRepository) IncrementExecution(ctx context.Context, id string) error {
	query := `
		UPDATE trust_rules
		SET execution_count = execution_count + 1, last_executed_at = $1
		WHERE id = $2
	`

	res, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to increment rule execution: %w", err)
	}
	return requireAffected(res, id)
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return pkgerrors.ErrNotFound.WithDetail("message", fmt.Sprintf("rule '%s' not found", id))
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row scanner) (*Rule, error) {
	var (
		rule          Rule
		status        string
		conditionJSON []byte
		actionsJSON   []byte
		lastExecuted  sql.NullTime
	)
	if err := row.Scan(
		&rule.ID, &rule.Name, &rule.Description, &conditionJSON, &actionsJSON,
		&rule.Priority, &status, &rule.ExecutionCount, &lastExecuted,
		&rule.CreatedAt, &rule.UpdatedAt,
	); err != nil {
		return nil, err
	}

	rule.Status = Status(status)
	if lastExecuted.Valid {
		t := lastExecuted.Time.UTC()
		rule.LastExecutedAt = &t
	}
	if err := json.Unmarshal(conditionJSON, &rule.Condition); err != nil {
		return nil, fmt.Errorf("failed to decode condition for rule %s: %w", rule.ID, err)
	}
	if err := json.Unmarshal(actionsJSON, &rule.Actions); err != nil {
		return nil, fmt.Errorf("failed to decode actions for rule %s: %w", rule.ID, err)
	}

	return &rule, nil
}
