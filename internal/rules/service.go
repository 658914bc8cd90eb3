package rules

import (
	"context"
	"fmt"

	"trustcore/internal/action"
	"trustcore/internal/audit"
	"trustcore/internal/condition"
	"trustcore/internal/constants"
	"trustcore/internal/logger"
	pkgerrors "trustcore/pkg/errors"
)

const (
	AuditActionCreated       = "rule.created"
	AuditActionStatusChanged = "rule.status_changed"
)

// AuditRecorder is the part of *audit.Recorder the service writes to.
type AuditRecorder interface {
	Record(ctx context.Context, entityType, entityID, action, actor string, meta map[string]interface{}) (*audit.Entry, error)
}

type Service struct {
	repo      Repository
	engine    *Engine
	evaluator *condition.Evaluator
	audit     AuditRecorder
	logger    logger.Logger
}

type ServiceOption func(*Service)

func WithAudit(recorder AuditRecorder) ServiceOption {
	return func(s *Service) {
		s.audit = recorder
	}
}

func NewService(repo Repository, engine *Engine, evaluator *condition.Evaluator, log logger.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		repo:      repo,
		engine:    engine,
		evaluator: evaluator,
		logger:    log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) CreateRule(ctx context.Context, req CreateRuleRequest, actor string) (*Rule, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = StatusActive
	}

	rule := &Rule{
		Name:        req.Name,
		Description: req.Description,
		Condition:   req.Condition,
		Actions:     req.Actions,
		Priority:    req.Priority,
		Status:      status,
	}

	if err := s.repo.CreateRule(ctx, rule); err != nil {
		if pkgerrors.IsConflict(err) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}

	s.logger.InfowCtx(ctx, "Rule created",
		"rule_id", rule.ID,
		"rule_name", rule.Name,
		"priority", rule.Priority,
	)
	s.recordAudit(ctx, rule.ID, AuditActionCreated, actor, map[string]interface{}{
		"name":     rule.Name,
		"priority": rule.Priority,
		"status":   string(rule.Status),
		"actions":  actionTypes(rule.Actions),
	})

	return rule, nil
}

func (s *Service) GetRule(ctx context.Context, id string) (*Rule, error) {
	rule, err := s.repo.GetRule(ctx, id)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return rule, nil
}

func (s *Service) ListRules(ctx context.Context, filter Filter) ([]Rule, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, pkgerrors.Validationf("invalid status filter %q", filter.Status)
	}
	rules, err := s.repo.ListRules(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	return rules, nil
}

// SetStatus activates or deactivates a rule. Setting the current status is a no-op.
func (s *Service) SetStatus(ctx context.Context, id string, status Status, actor string) (*Rule, error) {
	if !status.Valid() {
		return nil, pkgerrors.Validationf("status must be %q or %q", StatusActive, StatusInactive)
	}

	rule, err := s.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule.Status == status {
		return rule, nil
	}

	previous := rule.Status
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil, err
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	rule.Status = status

	s.logger.InfowCtx(ctx, "Rule status changed",
		"rule_id", id,
		"from", previous,
		"to", status,
	)
	s.recordAudit(ctx, id, AuditActionStatusChanged, actor, map[string]interface{}{
		"from": string(previous),
		"to":   string(status),
	})

	return rule, nil
}

// ValidateCondition reports every structural problem in tree.
func (s *Service) ValidateCondition(tree condition.Tree) []string {
	if tree.Root == nil {
		return []string{"condition is required"}
	}
	return s.evaluator.Validate(tree.Root)
}

func (s *Service) Evaluate(ctx context.Context, event map[string]interface{}, dryRun bool) ([]EvaluationResult, error) {
	if event == nil {
		return nil, pkgerrors.Validationf("event is required")
	}
	return s.engine.EvaluateAllRules(ctx, event, dryRun)
}

func (s *Service) EvaluateByID(ctx context.Context, id string, event map[string]interface{}, dryRun bool) (*EvaluationResult, error) {
	if event == nil {
		return nil, pkgerrors.Validationf("event is required")
	}
	rule, err := s.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}
	result := s.engine.EvaluateRule(ctx, rule, event, dryRun)
	return &result, nil
}

// SeedResult counts what Seed changed.
type SeedResult struct {
	Created    int `json:"created"`
	Reconciled int `json:"reconciled"`
	Unchanged  int `json:"unchanged"`
}

// Seed creates rules that do not exist by name and reconciles the status of those that do.
// Conditions and actions of existing rules are never rewritten.
func (s *Service) Seed(ctx context.Context, defs []CreateRuleRequest) (SeedResult, error) {
	var res SeedResult
	for i, def := range defs {
		existing, err := s.repo.GetRuleByName(ctx, def.Name)
		if err != nil {
			return res, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
		}

		if existing == nil {
			if _, err := s.CreateRule(ctx, def, constants.SeedAuditActor); err != nil {
				return res, fmt.Errorf("seed rule %d (%s): %w", i, def.Name, err)
			}
			res.Created++
			continue
		}

		want := def.Status
		if want == "" {
			want = StatusActive
		}
		if existing.Status == want {
			res.Unchanged++
			continue
		}
		if _, err := s.SetStatus(ctx, existing.ID, want, constants.SeedAuditActor); err != nil {
			return res, fmt.Errorf("seed rule %d (%s): %w", i, def.Name, err)
		}
		res.Reconciled++
	}
	return res, nil
}

func (s *Service) validateRequest(req CreateRuleRequest) error {
	if req.Name == "" {
		return pkgerrors.Validationf("name is required")
	}
	if req.Status != "" && !req.Status.Valid() {
		return pkgerrors.Validationf("status must be %q or %q", StatusActive, StatusInactive)
	}

	if errs := s.ValidateCondition(req.Condition); len(errs) > 0 {
		return pkgerrors.Validationf("invalid condition: %s", errs[0]).WithDetail("errors", errs)
	}

	if len(req.Actions) == 0 {
		return pkgerrors.Validationf("at least one action is required")
	}
	for i, a := range req.Actions {
		if err := action.Validate(a); err != nil {
			return pkgerrors.Validationf("action[%d]: %s", i, pkgerrors.Message(err))
		}
	}

	return nil
}

func (s *Service) recordAudit(ctx context.Context, ruleID, auditAction, actor string, meta map[string]interface{}) {
	if s.audit == nil {
		return
	}
	if _, err := s.audit.Record(ctx, constants.AuditEntityTypeRule, ruleID, auditAction, actor, meta); err != nil {
		s.logger.ErrorwCtx(ctx, "Failed to record rule audit entry",
			"rule_id", ruleID,
			"action", auditAction,
			"error", err,
		)
	}
}

func actionTypes(actions action.List) []string {
	out := make([]string, 0, len(actions))
	for _, a := range actions {
		out = append(out, string(action.TypeName(a)))
	}
	return out
}
