package eval

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Function is a helper callable from expressions, either by name (expr) or
// through call("name", args...) on every engine.
type Function func(args ...any) (any, error)

var (
	ErrFunctionName    = errors.New("eval: function name must not be empty")
	ErrFunctionNil     = errors.New("eval: function is nil")
	ErrFunctionExists  = errors.New("eval: function already registered")
	ErrFunctionUnknown = errors.New("eval: function not registered")
)

// FunctionRegistry maps lowercased names to helpers. A nil registry has no
// functions.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: map[string]Function{}}
}

// Register adds fn. Names are matched case-insensitively and may only be
// registered once.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	key := strings.ToLower(strings.TrimSpace(name))
	switch {
	case key == "":
		return ErrFunctionName
	case fn == nil:
		return fmt.Errorf("%w: %s", ErrFunctionNil, name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = map[string]Function{}
	}
	if _, ok := r.functions[key]; ok {
		return fmt.Errorf("%w: %s", ErrFunctionExists, name)
	}
	r.functions[key] = fn
	return nil
}

// With returns a copy of r extended by other. Functions in other replace
// same-named ones in r.
func (r *FunctionRegistry) With(other *FunctionRegistry) *FunctionRegistry {
	out := r.Clone()
	if out == nil {
		out = NewFunctionRegistry()
	}
	if other == nil {
		return out
	}
	other.mu.RLock()
	defer other.mu.RUnlock()
	for key, fn := range other.functions {
		out.functions[key] = fn
	}
	return out
}

// Clone copies the name table.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := &FunctionRegistry{functions: make(map[string]Function, len(r.functions))}
	for key, fn := range r.functions {
		out.functions[key] = fn
	}
	return out
}

// Call runs the helper registered as name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	var fn Function
	if r != nil {
		r.mu.RLock()
		fn = r.functions[strings.ToLower(name)]
		r.mu.RUnlock()
	}
	if fn == nil {
		return nil, fmt.Errorf("%w: %s", ErrFunctionUnknown, name)
	}
	return fn(args...)
}

// Names lists registered names in sorted order.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	names := make([]string, 0, len(r.functions))
	for key := range r.functions {
		names = append(names, key)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// DefaultFunctions returns the helpers viewer sessions expose to pull
// expressions:
//
//	truthy(v)       loose boolean conversion, see Truthy
//	coalesce(a, b…) first argument that is not nil
func DefaultFunctions() *FunctionRegistry {
	r := NewFunctionRegistry()
	_ = r.Register("truthy", func(args ...any) (any, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("eval: truthy expects 1 argument, got %d", len(args))
		}
		return Truthy(args[0]), nil
	})
	_ = r.Register("coalesce", func(args ...any) (any, error) {
		for _, arg := range args {
			if arg != nil {
				return arg, nil
			}
		}
		return nil, nil
	})
	return r
}

// Truthy converts a loosely typed value the way the browser viewer treats
// setting values: nil, false, zero, NaN and "" are false, as are the
// persisted strings "false" and "0". Everything else is true.
func Truthy(value any) bool {
	switch typed := value.(type) {
	case nil:
		return false
	case bool:
		return typed
	case string:
		switch strings.TrimSpace(typed) {
		case "", "false", "0":
			return false
		}
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint() != 0
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		return f != 0 && !math.IsNaN(f)
	case reflect.Pointer, reflect.Interface:
		return !rv.IsNil()
	default:
		return true
	}
}
