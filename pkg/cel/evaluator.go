package cel

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// EventVariable is the name under which the evaluated event is bound.
const EventVariable = "event"

type Evaluator struct {
	env      *cel.Env
	programs sync.Map // expression -> cel.Program
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable(EventVariable, cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

func (e *Evaluator) ValidateExpression(expression string) error {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType && ast.OutputType() != cel.DynType {
		return fmt.Errorf("expression must return bool, got %v", ast.OutputType())
	}

	return nil
}

func (e *Evaluator) Evaluate(ctx context.Context, expression string, event map[string]interface{}) (bool, error) {
	program, err := e.CompileExpression(expression)
	if err != nil {
		return false, err
	}

	if event == nil {
		event = map[string]interface{}{}
	}

	result, _, err := program.ContextEval(ctx, map[string]interface{}{EventVariable: event})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}

// CompileExpression compiles once per distinct expression.
func (e *Evaluator) CompileExpression(expression string) (cel.Program, error) {
	if cached, ok := e.programs.Load(expression); ok {
		return cached.(cel.Program), nil
	}

	if err := e.ValidateExpression(expression); err != nil {
		return nil, err
	}

	ast, _ := e.env.Compile(expression)
	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	e.programs.Store(expression, program)
	return program, nil
}
