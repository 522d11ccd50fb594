package eval

import (
	"fmt"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
)

type exprEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewExprEvaluator returns an Evaluator backed by expr-lang/expr.
func NewExprEvaluator(opts ...Option) Evaluator {
	cfg := applyOptions(opts)
	return &exprEvaluator{cache: cfg.cache, registry: cfg.registry}
}

func (e *exprEvaluator) Evaluate(env Env, expression string) (any, error) {
	program, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return program.Run(env)
}

func (e *exprEvaluator) Compile(expression string) (Program, error) {
	if expression == "" {
		return nil, wrapError(EngineExpr, "", "", ErrEmptyExpression)
	}
	if e.cache != nil {
		if cached, ok := e.cache.Get(EngineExpr + ":" + expression); ok {
			if program, ok := cached.(*exprvm.Program); ok {
				return &exprProgram{evaluator: e, program: program, expression: expression}, nil
			}
		}
	}

	options := []exprlang.Option{
		exprlang.Env(map[string]any{}),
		exprlang.AllowUndefinedVariables(),
	}
	for _, name := range e.registry.Names() {
		options = append(options, exprlang.Function(name, e.call(name)))
	}
	if e.registry != nil {
		options = append(options, exprlang.Function("call", e.dispatch))
	}
	program, err := exprlang.Compile(expression, options...)
	if err != nil {
		return nil, wrapError(EngineExpr, expression, "", err)
	}
	if e.cache != nil {
		e.cache.Set(EngineExpr+":"+expression, program)
	}
	return &exprProgram{evaluator: e, program: program, expression: expression}, nil
}

// dispatch backs call("name", args...), the spelling shared with cel and js.
func (e *exprEvaluator) dispatch(arguments ...any) (any, error) {
	if len(arguments) == 0 {
		return nil, ErrFunctionName
	}
	name, ok := arguments[0].(string)
	if !ok {
		return nil, fmt.Errorf("eval: call name must be string, got %T", arguments[0])
	}
	return e.registry.Call(name, arguments[1:]...)
}

func (e *exprEvaluator) call(name string) func(...any) (any, error) {
	return func(arguments ...any) (any, error) {
		return e.registry.Call(name, arguments...)
	}
}

type exprProgram struct {
	evaluator  *exprEvaluator
	program    *exprvm.Program
	expression string
}

func (p *exprProgram) Run(env Env) (any, error) {
	env = env.withDefaults()
	result, err := exprlang.Run(p.program, env.bindings())
	if err != nil {
		return nil, wrapError(EngineExpr, p.expression, env.Setting, err)
	}
	return result, nil
}
