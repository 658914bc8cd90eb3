package condition

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"trustcore/pkg/cel"
	"trustcore/pkg/errors"
)

// RootField binds the whole event for the expr operator.
const RootField = "$"

type Evaluator struct {
	cel      *cel.Evaluator
	patterns sync.Map // pattern -> *regexp.Regexp
}

// NewEvaluator returns an evaluator. celEval may be nil, in which case expr leaves fail to evaluate.
func NewEvaluator(celEval *cel.Evaluator) *Evaluator {
	return &Evaluator{cel: celEval}
}

// Evaluate matches a condition tree against an event. An error is returned only for
// conditions that cannot be evaluated at all: unknown operators or logic, and in/nin
// without an array value.
func (e *Evaluator) Evaluate(ctx context.Context, cond Condition, event map[string]interface{}) (bool, error) {
	switch c := cond.(type) {
	case *Leaf:
		return e.evaluateLeaf(ctx, c, event)
	case *Group:
		return e.evaluateGroup(ctx, c, event)
	case nil:
		return false, errors.Validationf("condition is required")
	default:
		return false, errors.ErrUnknownType.WithDetail("message", fmt.Sprintf("unknown condition node %T", cond))
	}
}

func (e *Evaluator) evaluateGroup(ctx context.Context, g *Group, event map[string]interface{}) (bool, error) {
	switch g.Logic {
	case And:
		for _, child := range g.Conditions {
			ok, err := e.Evaluate(ctx, child, event)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case Or:
		for _, child := range g.Conditions {
			ok, err := e.Evaluate(ctx, child, event)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, errors.ErrUnknownType.WithDetail("message", fmt.Sprintf("unknown logic %q", g.Logic))
	}
}

func (e *Evaluator) evaluateLeaf(ctx context.Context, l *Leaf, event map[string]interface{}) (bool, error) {
	if l.Operator == OpExpr {
		return e.evaluateExpr(ctx, l, event), nil
	}

	if !l.Operator.Supported() {
		return false, errors.ErrUnknownType.WithDetail("message", fmt.Sprintf("unsupported operator %q", l.Operator))
	}

	expected := l.Value
	if !l.HasValue {
		expected = Undefined
	}

	ok, err := e.applyOperator(l.Operator, ResolveField(event, l.Field), expected)
	if err != nil {
		return false, errors.Validationf("%s: %v", l.Field, err)
	}
	return ok, nil
}

// evaluateExpr fails closed: evaluation errors are a non-match.
func (e *Evaluator) evaluateExpr(ctx context.Context, l *Leaf, event map[string]interface{}) bool {
	expression, ok := l.Value.(string)
	if !ok || e.cel == nil {
		return false
	}

	scope := event
	if l.Field != RootField {
		nested, ok := ResolveField(event, l.Field).(map[string]interface{})
		if !ok {
			return false
		}
		scope = nested
	}

	matched, err := e.cel.Evaluate(ctx, expression, scope)
	return err == nil && matched
}

func (e *Evaluator) regexp(pattern string) (*regexp.Regexp, error) {
	if cached, ok := e.patterns.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	e.patterns.Store(pattern, re)
	return re, nil
}
