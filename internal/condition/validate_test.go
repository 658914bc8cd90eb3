package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustcore/pkg/cel"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cond Condition
		want []string
	}{
		{
			name: "valid leaf",
			cond: leaf("amount", OpGt, 1.0),
			want: []string{},
		},
		{
			name: "existence operators need no value",
			cond: &Group{Logic: Or, Conditions: []Condition{
				&Leaf{Field: "a", Operator: OpExists},
				&Leaf{Field: "b", Operator: OpNotExists},
			}},
			want: []string{},
		},
		{
			name: "nil condition",
			cond: nil,
			want: []string{"condition: condition is required"},
		},
		{
			name: "leaf problems",
			cond: &Leaf{},
			want: []string{"condition: field is required", "condition: operator is required"},
		},
		{
			name: "unsupported operator",
			cond: leaf("a", "between", 1.0),
			want: []string{`condition: unsupported operator "between"`},
		},
		{
			name: "missing value",
			cond: &Leaf{Field: "a", Operator: OpEq},
			want: []string{`condition: value is required for operator "eq"`},
		},
		{
			name: "in without array",
			cond: leaf("a", OpNin, "x"),
			want: []string{`condition: value must be an array for operator "nin"`},
		},
		{
			name: "group problems are all reported",
			cond: &Group{Logic: "XOR", Conditions: []Condition{
				&Group{Logic: And},
				&Leaf{Field: "x", Operator: OpLt},
			}},
			want: []string{
				`condition: logic must be AND or OR, got "XOR"`,
				"condition.conditions[0]: conditions must contain at least one condition",
				`condition.conditions[1]: value is required for operator "lt"`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Validate(tt.cond))
		})
	}
}

func TestValidate_RegexAndExpr(t *testing.T) {
	errs := Validate(leaf("a", OpMatches, "(["))
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "invalid regular expression")

	celEval, err := cel.NewEvaluator()
	require.NoError(t, err)
	eval := NewEvaluator(celEval)

	assert.Empty(t, eval.Validate(leaf(RootField, OpExpr, `event.amount > 1.0`)))
	assert.Len(t, eval.Validate(leaf(RootField, OpExpr, `((`)), 1)
	assert.Len(t, eval.Validate(leaf(RootField, OpExpr, 42.0)), 1)
}
