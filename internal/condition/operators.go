package condition

import (
	"fmt"
	"reflect"
	"strings"
)

func (e *Evaluator) applyOperator(op Operator, actual, expected interface{}) (bool, error) {
	switch op {
	case OpEq:
		return strictEqual(actual, expected), nil
	case OpNe:
		return !strictEqual(actual, expected), nil
	case OpGt, OpLt, OpGte, OpLte:
		return compare(op, actual, expected), nil
	case OpIn:
		return evaluateIn(op, actual, expected)
	case OpNin:
		in, err := evaluateIn(op, actual, expected)
		return !in, err
	case OpContains:
		contains, ok := evaluateContains(actual, expected)
		return ok && contains, nil
	case OpNotContains:
		contains, ok := evaluateContains(actual, expected)
		return !ok || !contains, nil
	case OpMatches:
		matched, ok := e.evaluateMatches(actual, expected)
		return ok && matched, nil
	case OpNotMatches:
		matched, ok := e.evaluateMatches(actual, expected)
		return !ok || !matched, nil
	case OpExists:
		return exists(actual), nil
	case OpNotExists:
		return !exists(actual), nil
	default:
		return false, fmt.Errorf("unsupported operator %q", op)
	}
}

func exists(v interface{}) bool {
	return v != nil && !IsUndefined(v)
}

// strictEqual compares scalars of the same kind. Objects and arrays never compare equal.
func strictEqual(a, b interface{}) bool {
	if IsUndefined(a) || IsUndefined(b) {
		return IsUndefined(a) && IsUndefined(b)
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if an, ok := toFloat64(a); ok {
		bn, ok := toFloat64(b)
		return ok && an == bn
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return false
	}
}

// compare orders numbers with numbers and strings with strings; any other pairing is false.
func compare(op Operator, actual, expected interface{}) bool {
	var cmp int
	if an, ok := toFloat64(actual); ok {
		en, ok := toFloat64(expected)
		if !ok {
			return false
		}
		switch {
		case an < en:
			cmp = -1
		case an > en:
			cmp = 1
		}
	} else if as, ok := actual.(string); ok {
		es, ok := expected.(string)
		if !ok {
			return false
		}
		cmp = strings.Compare(as, es)
	} else {
		return false
	}

	switch op {
	case OpGt:
		return cmp > 0
	case OpLt:
		return cmp < 0
	case OpGte:
		return cmp >= 0
	default:
		return cmp <= 0
	}
}

func evaluateIn(op Operator, actual, expected interface{}) (bool, error) {
	list, ok := expected.([]interface{})
	if !ok {
		return false, fmt.Errorf("operator %q requires an array value, got %T", op, expected)
	}
	for _, item := range list {
		if strictEqual(actual, item) {
			return true, nil
		}
	}
	return false, nil
}

// evaluateContains reports ok=false when the field is neither a string nor an array.
func evaluateContains(actual, expected interface{}) (contains bool, ok bool) {
	switch av := actual.(type) {
	case string:
		s, isString := expected.(string)
		return isString && strings.Contains(av, s), true
	case []interface{}:
		for _, item := range av {
			if strictEqual(item, expected) {
				return true, true
			}
		}
		return false, true
	default:
		return false, false
	}
}

// evaluateMatches reports ok=false for non-string fields and for patterns that do not compile.
func (e *Evaluator) evaluateMatches(actual, expected interface{}) (matched bool, ok bool) {
	s, isString := actual.(string)
	if !isString {
		return false, false
	}
	pattern, isString := expected.(string)
	if !isString {
		return false, false
	}
	re, err := e.regexp(pattern)
	if err != nil {
		return false, false
	}
	return re.MatchString(s), true
}

func toFloat64(v interface{}) (float64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}
