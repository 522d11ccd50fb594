// Package eval evaluates the pull expressions used when mirroring view-state
// values back into persisted settings. Three engines are available: expr
// (default), CEL and JavaScript (goja, behind the js_eval build tag).
package eval

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

var (
	// ErrEmptyExpression is returned for blank expressions.
	ErrEmptyExpression = errors.New("eval: expression must not be empty")
	// ErrUnknownEngine is returned by New for unsupported engine names.
	ErrUnknownEngine = errors.New("eval: unknown engine")
	// ErrEngineUnavailable is returned when an engine was compiled out.
	ErrEngineUnavailable = errors.New("eval: engine unavailable in this build")
)

// Env carries the bindings visible to an expression. State keys are exposed
// as top-level identifiers; state itself is also bound as "state".
type Env struct {
	State   map[string]any
	Setting string
	Args    map[string]any
	Now     *time.Time
}

func (e Env) withDefaults() Env {
	if e.Now == nil {
		now := time.Now()
		e.Now = &now
	}
	if e.Args == nil {
		e.Args = map[string]any{}
	}
	if e.State == nil {
		e.State = map[string]any{}
	}
	return e
}

func (e Env) bindings() map[string]any {
	out := make(map[string]any, len(e.State)+4)
	for key, value := range e.State {
		out[key] = value
	}
	out["state"] = e.State
	out["args"] = e.Args
	out["now"] = *e.Now
	out["setting"] = e.Setting
	return out
}

// Evaluator executes expressions against an Env.
type Evaluator interface {
	Evaluate(env Env, expression string) (any, error)
	Compile(expression string) (Program, error)
}

// Program is a compiled, reusable expression.
type Program interface {
	Run(env Env) (any, error)
}

// Option configures engine construction.
type Option func(*config)

type config struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// WithProgramCache shares compiled programs across evaluations.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *config) {
		cfg.cache = cache
	}
}

// WithFunctionRegistry exposes registered functions to expressions.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *config) {
		if registry == nil {
			return
		}
		cfg.registry = registry.Clone()
	}
}

func applyOptions(opts []Option) config {
	cfg := config{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// New returns the evaluator for engine. An empty name selects expr.
func New(engine string, opts ...Option) (Evaluator, error) {
	switch strings.ToLower(strings.TrimSpace(engine)) {
	case "", EngineExpr:
		return NewExprEvaluator(opts...), nil
	case EngineCEL:
		return NewCELEvaluator(opts...), nil
	case EngineJS:
		evaluator := NewJSEvaluator(opts...)
		if evaluator == nil {
			return nil, fmt.Errorf("%w: %s", ErrEngineUnavailable, engine)
		}
		return evaluator, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, engine)
	}
}

// EngineName reports the engine backing e.
func EngineName(e Evaluator) string {
	switch typed := e.(type) {
	case nil:
		return "unknown"
	case *exprEvaluator:
		return EngineExpr
	case *celEvaluator:
		return EngineCEL
	case *loggedEvaluator:
		return EngineName(typed.next)
	case interface{ Engine() string }:
		return typed.Engine()
	default:
		return "custom"
	}
}
