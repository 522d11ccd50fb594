//go:build js_eval

package eval

import (
	"fmt"

	"github.com/dop251/goja"
)

type jsEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewJSEvaluator returns an Evaluator backed by goja.
func NewJSEvaluator(opts ...Option) Evaluator {
	cfg := applyOptions(opts)
	return &jsEvaluator{cache: cfg.cache, registry: cfg.registry}
}

func (e *jsEvaluator) Engine() string {
	return EngineJS
}

func (e *jsEvaluator) Evaluate(env Env, expression string) (any, error) {
	program, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return program.Run(env)
}

func (e *jsEvaluator) Compile(expression string) (Program, error) {
	if expression == "" {
		return nil, wrapError(EngineJS, "", "", ErrEmptyExpression)
	}
	if e.cache != nil {
		if cached, ok := e.cache.Get(EngineJS + ":" + expression); ok {
			if program, ok := cached.(*goja.Program); ok {
				return &jsProgram{evaluator: e, program: program, expression: expression}, nil
			}
		}
	}
	program, err := goja.Compile("", fmt.Sprintf("(function(){ return (%s); })()", expression), false)
	if err != nil {
		return nil, wrapError(EngineJS, expression, "", err)
	}
	if e.cache != nil {
		e.cache.Set(EngineJS+":"+expression, program)
	}
	return &jsProgram{evaluator: e, program: program, expression: expression}, nil
}

type jsProgram struct {
	evaluator  *jsEvaluator
	program    *goja.Program
	expression string
}

func (p *jsProgram) Run(env Env) (any, error) {
	env = env.withDefaults()
	vm := goja.New()
	for key, value := range env.bindings() {
		if err := vm.Set(key, value); err != nil {
			return nil, wrapError(EngineJS, p.expression, env.Setting, err)
		}
	}
	if registry := p.evaluator.registry; registry != nil {
		if err := vm.Set("call", func(name string, arguments ...any) (any, error) {
			return registry.Call(name, arguments...)
		}); err != nil {
			return nil, wrapError(EngineJS, p.expression, env.Setting, err)
		}
	}
	value, err := vm.RunProgram(p.program)
	if err != nil {
		return nil, wrapError(EngineJS, p.expression, env.Setting, err)
	}
	return value.Export(), nil
}
