package rules

import (
	"context"
	stderrors "errors"
	"sort"
	"time"

	"trustcore/internal/action"
	"trustcore/internal/condition"
	"trustcore/internal/logger"
	"trustcore/pkg/errors"
	"trustcore/pkg/logging"
	"trustcore/pkg/metrics"
	"trustcore/pkg/tracing"
)

const tracerName = "trustcore/rules"

// Executor runs a single action. *action.Dispatcher satisfies it.
type Executor interface {
	Execute(ctx context.Context, a action.Action, ec action.ExecutionContext) action.Result
}

type Engine struct {
	repo      Repository
	evaluator *condition.Evaluator
	executor  Executor
	logger    logger.Logger
}

func NewEngine(repo Repository, evaluator *condition.Evaluator, executor Executor, log logger.Logger) *Engine {
	return &Engine{
		repo:      repo,
		evaluator: evaluator,
		executor:  executor,
		logger:    log,
	}
}

// EvaluateRule matches one rule against event and runs its actions in order on a match.
// Inactive rules only evaluate under dry-run. Failures are reported in the result.
func (e *Engine) EvaluateRule(ctx context.Context, rule *Rule, event map[string]interface{}, dryRun bool) (result EvaluationResult) {
	if rule == nil {
		return EvaluationResult{Error: "rule is required"}
	}

	start := time.Now()
	result = EvaluationResult{RuleID: rule.ID, RuleName: rule.Name}

	ctx, span := tracing.StartSpan(ctx, tracerName, "rules.evaluate_rule")
	defer span.End()
	ctx = logging.WithRuleID(ctx, rule.ID)

	defer func() {
		if r := recover(); r != nil {
			err := errors.RecoverPanic(r)
			e.logger.ErrorwCtx(ctx, "Panic recovered during rule evaluation", "error", err)
			result.Matched = false
			result.Executed = false
			result.ActionResults = nil
			result.Error = err.Error()
		}

		result.Duration = time.Since(start)
		result.DurationMs = float64(result.Duration.Microseconds()) / 1000
		if result.Error != "" {
			tracing.RecordError(span, stderrors.New(result.Error))
		}
		metrics.ObserveRuleEvaluation(outcomeLabel(result), dryRun, result.Duration)
	}()

	if !dryRun && rule.Status != StatusActive {
		return result
	}

	if rule.Condition.Root == nil {
		result.Error = "rule has no condition"
		return result
	}

	matched, err := e.evaluator.Evaluate(ctx, rule.Condition.Root, event)
	if err != nil {
		e.logger.WarnwCtx(ctx, "Rule condition could not be evaluated", "error", err)
		result.Error = errors.Message(err)
		return result
	}
	if !matched {
		return result
	}

	result.Matched = true
	result.Executed = true
	result.ActionResults = make([]action.Result, 0, len(rule.Actions))

	ec := action.ExecutionContext{Event: event, RuleID: rule.ID, DryRun: dryRun}
	for _, a := range rule.Actions {
		res := e.executor.Execute(ctx, a, ec)
		if !res.Success {
			e.logger.WarnwCtx(ctx, "Rule action failed",
				"action_type", res.Type,
				"error", res.Error,
			)
		}
		result.ActionResults = append(result.ActionResults, res)
	}

	if !dryRun {
		if err := e.repo.IncrementExecution(ctx, rule.ID); err != nil {
			e.logger.ErrorwCtx(ctx, "Failed to increment rule execution count", "error", err)
		}
	}

	return result
}

// EvaluateAllRules evaluates every eligible rule in descending priority order. Rules with equal
// priority keep repository order, and a match never stops later rules from being evaluated.
func (e *Engine) EvaluateAllRules(ctx context.Context, event map[string]interface{}, dryRun bool) ([]EvaluationResult, error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "rules.evaluate_all")
	defer span.End()

	filter := Filter{Status: StatusActive}
	if dryRun {
		filter = Filter{}
	}

	rules, err := e.repo.ListRules(ctx, filter)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, errors.Wrap(err, errors.ErrInternal)
	}

	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})

	if !dryRun {
		metrics.SetActiveRules(len(rules))
	}

	results := make([]EvaluationResult, 0, len(rules))
	for i := range rules {
		results = append(results, e.EvaluateRule(ctx, &rules[i], event, dryRun))
	}

	return results, nil
}

func outcomeLabel(r EvaluationResult) string {
	switch {
	case r.Error != "":
		return "error"
	case r.Matched:
		return "matched"
	default:
		return "unmatched"
	}
}
