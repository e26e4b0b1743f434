package promo

import (
	"github.com/go-faster/errors"
	"github.com/google/cel-go/cel"
)

var conditionEnv = mustConditionEnv()

func mustConditionEnv() *cel.Env {
	env, err := cel.NewEnv(
		cel.Variable("subtotal", cel.DoubleType),
		cel.Variable("items", cel.IntType),
	)
	if err != nil {
		panic(err)
	}
	return env
}

type condition struct {
	expr string
	prg  cel.Program
}

func compileCondition(expr string) (*condition, error) {
	ast, issues := conditionEnv.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrap(issues.Err(), "compile condition")
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.Errorf("condition %q must be boolean, got %s", expr, ast.OutputType())
	}
	prg, err := conditionEnv.Program(ast)
	if err != nil {
		return nil, errors.Wrap(err, "build condition program")
	}
	return &condition{expr: expr, prg: prg}, nil
}

func (c *condition) eval(b Basket) (bool, error) {
	subtotal, _ := b.Subtotal.Float64()
	out, _, err := c.prg.Eval(map[string]any{
		"subtotal": subtotal,
		"items":    int64(b.Items),
	})
	if err != nil {
		return false, errors.Wrap(err, "eval condition")
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, errors.Errorf("condition %q returned %T", c.expr, out.Value())
	}
	return ok, nil
}
