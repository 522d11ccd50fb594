package eval

import (
	"sort"
	"strings"

	celgo "github.com/google/cel-go/cel"
	functions "github.com/google/cel-go/common/functions"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// NewCELEvaluator returns an Evaluator backed by cel-go. CEL type-checks
// against the declared variables, so programs are compiled per distinct set
// of state keys.
func NewCELEvaluator(opts ...Option) Evaluator {
	cfg := applyOptions(opts)
	return &celEvaluator{cache: cfg.cache, registry: cfg.registry}
}

func (e *celEvaluator) Evaluate(env Env, expression string) (any, error) {
	program, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return program.Run(env)
}

func (e *celEvaluator) Compile(expression string) (Program, error) {
	if expression == "" {
		return nil, wrapError(EngineCEL, "", "", ErrEmptyExpression)
	}
	return &celProgram{evaluator: e, expression: expression}, nil
}

func (e *celEvaluator) load(expression string, keys []string) (celgo.Program, error) {
	cacheKey := EngineCEL + ":" + strings.Join(keys, ",") + ":" + expression
	if e.cache != nil {
		if cached, ok := e.cache.Get(cacheKey); ok {
			if program, ok := cached.(celgo.Program); ok {
				return program, nil
			}
		}
	}

	opts := []celgo.EnvOption{
		celgo.Variable("now", celgo.TimestampType),
		celgo.Variable("args", celgo.DynType),
		celgo.Variable("state", celgo.DynType),
		celgo.Variable("setting", celgo.StringType),
	}
	if e.registry != nil {
		opts = append(opts, celgo.Function("call", celgo.Overload(
			"call_dyn",
			[]*celgo.Type{celgo.StringType, celgo.DynType},
			celgo.DynType,
			celgo.FunctionBinding(functions.FunctionOp(e.callBinding())),
		)))
	}
	for _, key := range keys {
		opts = append(opts, celgo.Variable(key, celgo.DynType))
	}
	env, err := celgo.NewEnv(opts...)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		e.cache.Set(cacheKey, program)
	}
	return program, nil
}

// call(name, [args...])
func (e *celEvaluator) callBinding() func(...ref.Val) ref.Val {
	return func(values ...ref.Val) ref.Val {
		if len(values) == 0 {
			return types.NewErr("eval: call requires function name")
		}
		name, ok := values[0].Value().(string)
		if !ok {
			return types.NewErr("eval: call name must be string")
		}
		var args []any
		if len(values) > 1 {
			switch list := values[1].Value().(type) {
			case []any:
				args = list
			case []ref.Val:
				for _, item := range list {
					args = append(args, item.Value())
				}
			default:
				args = []any{list}
			}
		}
		result, err := e.registry.Call(name, args...)
		if err != nil {
			return types.NewErr("%s", err.Error())
		}
		if result == nil {
			return types.NullValue
		}
		return types.DefaultTypeAdapter.NativeToValue(result)
	}
}

type celProgram struct {
	evaluator  *celEvaluator
	expression string
}

func (p *celProgram) Run(env Env) (any, error) {
	env = env.withDefaults()
	keys := stateKeys(env.State)
	program, err := p.evaluator.load(p.expression, keys)
	if err != nil {
		return nil, wrapError(EngineCEL, p.expression, env.Setting, err)
	}
	out, _, err := program.Eval(env.bindings())
	if err != nil {
		return nil, wrapError(EngineCEL, p.expression, env.Setting, err)
	}
	return out.Value(), nil
}

func stateKeys(state map[string]any) []string {
	keys := make([]string, 0, len(state))
	for key := range state {
		switch key {
		case "now", "args", "state", "setting", "call":
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
