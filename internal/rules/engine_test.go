package rules

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustcore/internal/action"
	"trustcore/pkg/errors"
)

const webhookAction = `{"type":"webhook","url":"https://hooks.example.com/trust"}`

func largeAmountRule(t *testing.T, status Status) *Rule {
	return &Rule{
		ID:        "rule-large",
		Name:      "large-amount",
		Condition: mustTree(t, `{"field":"amount","operator":"gt","value":1000}`),
		Actions:   mustActions(t, webhookAction),
		Status:    status,
	}
}

func TestEvaluateRule_Scenarios(t *testing.T) {
	tests := []struct {
		name         string
		status       Status
		event        map[string]interface{}
		dryRun       bool
		wantMatched  bool
		wantExecuted bool
		wantResults  int
	}{
		{name: "matching event", status: StatusActive, event: map[string]interface{}{"amount": 1500.0}, wantMatched: true, wantExecuted: true, wantResults: 1},
		{name: "non matching event", status: StatusActive, event: map[string]interface{}{"amount": 500.0}},
		{name: "inactive rule", status: StatusInactive, event: map[string]interface{}{"amount": 1500.0}},
		{name: "inactive rule under dry-run", status: StatusInactive, event: map[string]interface{}{"amount": 1500.0}, dryRun: true, wantMatched: true, wantExecuted: true, wantResults: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			rule := largeAmountRule(t, tt.status)
			require.NoError(t, f.repo.CreateRule(context.Background(), rule))

			result := f.engine.EvaluateRule(context.Background(), rule, tt.event, tt.dryRun)

			assert.Equal(t, tt.wantMatched, result.Matched)
			assert.Equal(t, tt.wantExecuted, result.Executed)
			assert.Len(t, result.ActionResults, tt.wantResults)
			assert.Empty(t, result.Error)
			for _, r := range result.ActionResults {
				assert.True(t, r.Success)
			}
		})
	}
}

func TestEvaluateRule_ExecutionCount(t *testing.T) {
	f := newFixture()
	rule := largeAmountRule(t, StatusActive)
	rule.Actions = mustActions(t, `[`+webhookAction+`,{"type":"anchor","eventHash":"abc"},{"type":"anchor","eventHash":"def"}]`)
	require.NoError(t, f.repo.CreateRule(context.Background(), rule))

	event := map[string]interface{}{"amount": 2000.0}

	f.engine.EvaluateRule(context.Background(), rule, event, false)
	assert.Equal(t, int64(1), f.repo.executionCount(rule.ID), "one increment per match, not per action")

	f.engine.EvaluateRule(context.Background(), rule, event, true)
	assert.Equal(t, int64(1), f.repo.executionCount(rule.ID), "dry-run does not count")

	f.engine.EvaluateRule(context.Background(), rule, map[string]interface{}{"amount": 1.0}, false)
	assert.Equal(t, int64(1), f.repo.executionCount(rule.ID), "no match does not count")
}

func TestEvaluateRule_ActionFailuresAreIndependent(t *testing.T) {
	f := newFixture()
	rule := largeAmountRule(t, StatusActive)
	rule.Actions = mustActions(t, `[
		{"type":"webhook","url":"https://fail.example.com"},
		{"type":"anchor","eventHash":"abc"},
		{"type":"teleport"}
	]`)
	require.NoError(t, f.repo.CreateRule(context.Background(), rule))

	result := f.engine.EvaluateRule(context.Background(), rule, map[string]interface{}{"amount": 5000.0}, false)

	require.Len(t, result.ActionResults, 3)
	assert.False(t, result.ActionResults[0].Success)
	assert.True(t, result.ActionResults[1].Success)
	assert.Equal(t, []action.Type{action.TypeWebhook, action.TypeAnchor, "teleport"},
		[]action.Type{f.executor.calls[0].typ, f.executor.calls[1].typ, f.executor.calls[2].typ},
		"actions run in declaration order")
	assert.True(t, result.Executed)
}

func TestEvaluateRule_Errors(t *testing.T) {
	t.Run("in without array", func(t *testing.T) {
		f := newFixture()
		rule := largeAmountRule(t, StatusActive)
		rule.Condition = mustTree(t, `{"field":"tier","operator":"in","value":"gold"}`)

		result := f.engine.EvaluateRule(context.Background(), rule, map[string]interface{}{"tier": "gold"}, false)
		assert.False(t, result.Matched)
		assert.NotEmpty(t, result.Error)
		assert.Empty(t, f.executor.calls)
	})

	t.Run("panic in action", func(t *testing.T) {
		f := newFixture()
		f.executor.panic = true
		rule := largeAmountRule(t, StatusActive)

		result := f.engine.EvaluateRule(context.Background(), rule, map[string]interface{}{"amount": 5000.0}, false)
		assert.False(t, result.Matched)
		assert.False(t, result.Executed)
		assert.Contains(t, result.Error, "executor blew up")
	})

	t.Run("missing condition", func(t *testing.T) {
		f := newFixture()
		rule := &Rule{ID: "r", Status: StatusActive}
		result := f.engine.EvaluateRule(context.Background(), rule, map[string]interface{}{}, false)
		assert.Equal(t, "rule has no condition", result.Error)
	})

	t.Run("nil rule", func(t *testing.T) {
		f := newFixture()
		var result EvaluationResult
		require.NotPanics(t, func() {
			result = f.engine.EvaluateRule(context.Background(), nil, map[string]interface{}{"amount": 5000.0}, true)
		})
		assert.False(t, result.Matched)
		assert.Equal(t, "rule is required", result.Error)
		assert.Empty(t, f.executor.calls)
	})
}

func TestEvaluateAllRules(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	always := `{"field":"kind","operator":"exists"}`

	for _, r := range []*Rule{
		{Name: "low", Priority: 1, Status: StatusActive},
		{Name: "high-a", Priority: 10, Status: StatusActive},
		{Name: "disabled", Priority: 100, Status: StatusInactive},
		{Name: "high-b", Priority: 10, Status: StatusActive},
		{Name: "mid", Priority: 5, Status: StatusActive},
	} {
		r.Condition = mustTree(t, always)
		r.Actions = mustActions(t, `{"type":"anchor","eventHash":"abc"}`)
		require.NoError(t, f.repo.CreateRule(ctx, r))
	}

	event := map[string]interface{}{"kind": "transfer"}

	results, err := f.engine.EvaluateAllRules(ctx, event, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"high-a", "high-b", "mid", "low"}, names(results))
	for _, r := range results {
		assert.True(t, r.Matched, "no early termination after the first match")
	}

	results, err = f.engine.EvaluateAllRules(ctx, event, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"disabled", "high-a", "high-b", "mid", "low"}, names(results))

	f.repo.listErr = assert.AnError
	_, err = f.engine.EvaluateAllRules(ctx, event, false)
	assert.Equal(t, http.StatusInternalServerError, errors.ToHTTPStatus(err))
}

func names(results []EvaluationResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.RuleName
	}
	return out
}
