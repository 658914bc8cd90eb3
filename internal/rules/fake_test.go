package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"trustcore/internal/action"
	"trustcore/internal/audit"
	"trustcore/internal/condition"
	"trustcore/internal/logger"
	"trustcore/pkg/errors"
)

type memoryRepository struct {
	mu      sync.Mutex
	rules   []*Rule
	listErr error
	seq     int
}

func (m *memoryRepository) ListRules(_ context.Context, filter Filter) ([]Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := []Rule{}
	for _, r := range m.rules {
		if filter.Status == "" || r.Status == filter.Status {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memoryRepository) GetRule(_ context.Context, id string) (*Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rules {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, errors.ErrNotFound.WithDetail("message", fmt.Sprintf("rule '%s' not found", id))
}

func (m *memoryRepository) GetRuleByName(_ context.Context, name string) (*Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rules {
		if r.Name == name {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memoryRepository) CreateRule(_ context.Context, rule *Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rules {
		if r.Name == rule.Name {
			return errors.ErrConflict.WithDetail("message", fmt.Sprintf("rule with name '%s' already exists", rule.Name))
		}
	}
	if rule.ID == "" {
		m.seq++
		rule.ID = fmt.Sprintf("rule-%d", m.seq)
	}
	cp := *rule
	m.rules = append(m.rules, &cp)
	return nil
}

func (m *memoryRepository) UpdateStatus(_ context.Context, id string, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rules {
		if r.ID == id {
			r.Status = status
			return nil
		}
	}
	return errors.ErrNotFound
}

func (m *memoryRepository) IncrementExecution(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rules {
		if r.ID == id {
			r.ExecutionCount++
			return nil
		}
	}
	return errors.ErrNotFound
}

func (m *memoryRepository) executionCount(id string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rules {
		if r.ID == id {
			return r.ExecutionCount
		}
	}
	return -1
}

type executedAction struct {
	ruleID string
	typ    action.Type
	dryRun bool
}

// recordingExecutor succeeds for every action except webhooks whose url contains "fail".
type recordingExecutor struct {
	mu    sync.Mutex
	calls []executedAction
	panic bool
}

func (e *recordingExecutor) Execute(_ context.Context, a action.Action, ec action.ExecutionContext) action.Result {
	e.mu.Lock()
	e.calls = append(e.calls, executedAction{ruleID: ec.RuleID, typ: a.Type(), dryRun: ec.DryRun})
	e.mu.Unlock()

	if e.panic {
		panic("executor blew up")
	}
	if hook, ok := a.(*action.WebhookAction); ok && hook.URL == "https://fail.example.com" {
		return action.Result{Type: a.Type(), Success: false, Error: "Webhook returned status 500", Metadata: map[string]interface{}{}}
	}
	return action.Result{Type: a.Type(), Success: true, Metadata: map[string]interface{}{}}
}

type recordedAudit struct {
	entityID string
	action   string
	actor    string
	meta     map[string]interface{}
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []recordedAudit
}

func (f *fakeAudit) Record(_ context.Context, entityType, entityID, auditAction, actor string, meta map[string]interface{}) (*audit.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, recordedAudit{entityID: entityID, action: auditAction, actor: actor, meta: meta})
	return &audit.Entry{EntityType: entityType, EntityID: entityID, Action: auditAction}, nil
}

func mustTree(t interface{ Fatalf(string, ...interface{}) }, s string) condition.Tree {
	var tree condition.Tree
	if err := json.Unmarshal([]byte(s), &tree); err != nil {
		t.Fatalf("bad condition %s: %v", s, err)
	}
	return tree
}

func mustActions(t interface{ Fatalf(string, ...interface{}) }, s string) action.List {
	var l action.List
	if err := json.Unmarshal([]byte(s), &l); err != nil {
		t.Fatalf("bad actions %s: %v", s, err)
	}
	return l
}

type fixture struct {
	repo     *memoryRepository
	executor *recordingExecutor
	audit    *fakeAudit
	engine   *Engine
	service  *Service
}

func newFixture() *fixture {
	f := &fixture{
		repo:     &memoryRepository{},
		executor: &recordingExecutor{},
		audit:    &fakeAudit{},
	}
	evaluator := condition.NewEvaluator(nil)
	f.engine = NewEngine(f.repo, evaluator, f.executor, logger.NopLogger())
	f.service = NewService(f.repo, f.engine, evaluator, logger.NopLogger(), WithAudit(f.audit))
	return f
}
