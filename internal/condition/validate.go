package condition

import (
	"fmt"
	"regexp"
)

// Validate checks the structure of a condition tree and returns every problem found.
// An empty result means the condition is well formed.
func (e *Evaluator) Validate(cond Condition) []string {
	errs := []string{}
	e.validate(cond, "condition", &errs)
	return errs
}

// Validate checks structure without compiling expr leaves.
func Validate(cond Condition) []string {
	return (&Evaluator{}).Validate(cond)
}

func (e *Evaluator) validate(cond Condition, path string, errs *[]string) {
	switch c := cond.(type) {
	case nil:
		*errs = append(*errs, fmt.Sprintf("%s: condition is required", path))
	case *Group:
		if c.Logic != And && c.Logic != Or {
			*errs = append(*errs, fmt.Sprintf("%s: logic must be AND or OR, got %q", path, c.Logic))
		}
		if len(c.Conditions) == 0 {
			*errs = append(*errs, fmt.Sprintf("%s: conditions must contain at least one condition", path))
		}
		for i, child := range c.Conditions {
			e.validate(child, fmt.Sprintf("%s.conditions[%d]", path, i), errs)
		}
	case *Leaf:
		e.validateLeaf(c, path, errs)
	default:
		*errs = append(*errs, fmt.Sprintf("%s: unknown condition node %T", path, cond))
	}
}

func (e *Evaluator) validateLeaf(l *Leaf, path string, errs *[]string) {
	if l.Field == "" {
		*errs = append(*errs, fmt.Sprintf("%s: field is required", path))
	}
	if l.Operator == "" {
		*errs = append(*errs, fmt.Sprintf("%s: operator is required", path))
		return
	}
	if !l.Operator.Supported() {
		*errs = append(*errs, fmt.Sprintf("%s: unsupported operator %q", path, l.Operator))
		return
	}
	if !l.Operator.NeedsValue() {
		return
	}
	if !l.HasValue {
		*errs = append(*errs, fmt.Sprintf("%s: value is required for operator %q", path, l.Operator))
		return
	}

	switch l.Operator {
	case OpIn, OpNin:
		if _, ok := l.Value.([]interface{}); !ok {
			*errs = append(*errs, fmt.Sprintf("%s: value must be an array for operator %q", path, l.Operator))
		}
	case OpMatches, OpNotMatches:
		pattern, ok := l.Value.(string)
		if !ok {
			*errs = append(*errs, fmt.Sprintf("%s: value must be a regular expression string", path))
		} else if _, err := regexp.Compile(pattern); err != nil {
			*errs = append(*errs, fmt.Sprintf("%s: invalid regular expression: %v", path, err))
		}
	case OpExpr:
		expression, ok := l.Value.(string)
		if !ok {
			*errs = append(*errs, fmt.Sprintf("%s: value must be an expression string", path))
		} else if e.cel != nil {
			if err := e.cel.ValidateExpression(expression); err != nil {
				*errs = append(*errs, fmt.Sprintf("%s: %v", path, err))
			}
		}
	}
}
