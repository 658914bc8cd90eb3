// Package condition implements the rule condition DSL: leaf comparisons on dot-path fields
// combined by AND/OR groups.
package condition

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

type Operator string

const (
	OpEq          Operator = "eq"
	OpNe          Operator = "ne"
	OpGt          Operator = "gt"
	OpLt          Operator = "lt"
	OpGte         Operator = "gte"
	OpLte         Operator = "lte"
	OpIn          Operator = "in"
	OpNin         Operator = "nin"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpMatches     Operator = "matches"
	OpNotMatches  Operator = "not_matches"
	OpExists      Operator = "exists"
	OpNotExists   Operator = "not_exists"
	// OpExpr evaluates a CEL boolean expression; the leaf's field selects the object bound as `event`.
	OpExpr Operator = "expr"
)

var supportedOperators = map[Operator]struct{}{
	OpEq: {}, OpNe: {}, OpGt: {}, OpLt: {}, OpGte: {}, OpLte: {},
	OpIn: {}, OpNin: {}, OpContains: {}, OpNotContains: {},
	OpMatches: {}, OpNotMatches: {}, OpExists: {}, OpNotExists: {},
	OpExpr: {},
}

func (o Operator) Supported() bool {
	_, ok := supportedOperators[o]
	return ok
}

func (o Operator) NeedsValue() bool {
	return o != OpExists && o != OpNotExists
}

type Logic string

const (
	And Logic = "AND"
	Or  Logic = "OR"
)

// Condition is either a *Leaf or a *Group.
type Condition interface {
	isCondition()
}

type Leaf struct {
	Field    string
	Operator Operator
	Value    interface{}
	// HasValue distinguishes an absent value from an explicit null.
	HasValue bool
}

type Group struct {
	Logic      Logic
	Conditions []Condition
}

func (*Leaf) isCondition()  {}
func (*Group) isCondition() {}

func (l *Leaf) MarshalJSON() ([]byte, error) {
	out := map[string]interface{}{
		"field":    l.Field,
		"operator": l.Operator,
	}
	if l.HasValue {
		out["value"] = l.Value
	}
	return json.Marshal(out)
}

func (g *Group) MarshalJSON() ([]byte, error) {
	conditions := g.Conditions
	if conditions == nil {
		conditions = []Condition{}
	}
	return json.Marshal(struct {
		Logic      Logic       `json:"logic"`
		Conditions []Condition `json:"conditions"`
	}{g.Logic, conditions})
}

// Parse decodes a JSON condition. Structural problems other than non-object nodes are left
// for Validate so that all of them can be reported together.
func Parse(data []byte) (Condition, error) {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid condition JSON: %w", err)
	}
	return FromValue(raw)
}

// FromValue builds a condition from a generic decoded document (JSON or YAML).
func FromValue(raw interface{}) (Condition, error) {
	return fromValue(raw, "condition")
}

func fromValue(raw interface{}, path string) (Condition, error) {
	node, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%s: expected an object, got %T", path, raw)
	}

	_, hasLogic := node["logic"]
	rawChildren, hasChildren := node["conditions"]
	if hasLogic || hasChildren {
		logic, _ := node["logic"].(string)
		group := &Group{Logic: Logic(logic)}
		if hasChildren {
			children, ok := rawChildren.([]interface{})
			if !ok {
				return nil, fmt.Errorf("%s.conditions: expected an array, got %T", path, rawChildren)
			}
			for i, child := range children {
				c, err := fromValue(child, fmt.Sprintf("%s.conditions[%d]", path, i))
				if err != nil {
					return nil, err
				}
				group.Conditions = append(group.Conditions, c)
			}
		}
		return group, nil
	}

	field, _ := node["field"].(string)
	operator, _ := node["operator"].(string)
	value, hasValue := node["value"]

	return &Leaf{
		Field:    field,
		Operator: Operator(operator),
		Value:    normalize(value),
		HasValue: hasValue,
	}, nil
}

// normalize converts YAML-decoded numbers to float64 so both document sources compare the same way.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case uint64:
		return float64(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalize(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = normalize(item)
		}
		return out
	default:
		return v
	}
}

// Tree wraps a Condition so it can be embedded in JSON and YAML documents.
type Tree struct {
	Root Condition
}

func (t Tree) MarshalJSON() ([]byte, error) {
	if t.Root == nil {
		return []byte("null"), nil
	}
	return json.Marshal(t.Root)
}

func (t *Tree) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Root = nil
		return nil
	}
	root, err := Parse(data)
	if err != nil {
		return err
	}
	t.Root = root
	return nil
}

func (t *Tree) UnmarshalYAML(node *yaml.Node) error {
	var raw interface{}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	root, err := FromValue(raw)
	if err != nil {
		return err
	}
	t.Root = root
	return nil
}
