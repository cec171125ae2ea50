package modifiers

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// exprEvaluator compiles When.Expr predicates once and caches the programs
type exprEvaluator struct {
	env      *cel.Env
	mu       sync.Mutex
	programs map[string]cel.Program
}

func newExprEvaluator() (*exprEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("phase", cel.StringType),
		cel.Variable("tag", cel.StringType),
		cel.Variable("tags", cel.ListType(cel.StringType)),
		cel.Variable("vars", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build expression environment: %w", err)
	}
	return &exprEvaluator{env: env, programs: make(map[string]cel.Program)}, nil
}

var (
	checkerOnce sync.Once
	checker     *exprEvaluator
	checkerErr  error
)

// CheckExpr compiles a When expression without evaluating it. Loaders use it
// to reject bad predicates before anything is aggregated.
func CheckExpr(expr string) error {
	if expr == "" {
		return nil
	}
	checkerOnce.Do(func() {
		checker, checkerErr = newExprEvaluator()
	})
	if checkerErr != nil {
		return checkerErr
	}
	return checker.Check(expr)
}

// Check compiles expr without evaluating it
func (e *exprEvaluator) Check(expr string) error {
	_, err := e.program(expr)
	return err
}

func (e *exprEvaluator) program(expr string) (cel.Program, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if prg, ok := e.programs[expr]; ok {
		return prg, nil
	}

	ast, iss := e.env.Compile(expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, iss.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	e.programs[expr] = prg
	return prg, nil
}

// Eval runs expr against the roll context
func (e *exprEvaluator) Eval(expr string, ctx Context) (bool, error) {
	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}

	vars := ctx.Vars
	if vars == nil {
		vars = map[string]any{}
	}
	out, _, err := prg.Eval(map[string]any{
		"phase": ctx.Phase,
		"tag":   ctx.Tag,
		"tags":  ctx.allTags(),
		"vars":  vars,
	})
	if err != nil {
		return false, fmt.Errorf("eval %q: %w", expr, err)
	}

	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression %q did not return a bool", expr)
	}
	return matched, nil
}
