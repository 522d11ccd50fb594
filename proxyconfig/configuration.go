package proxyconfig

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"
)

// Configuration describes the visualization proxies and filters available to
// the rendering subsystem. Values are treated as immutable: constructors and
// accessors hand out deep copies.
type Configuration struct {
	Name        string         `json:"name" mapstructure:"name"`
	Definitions map[string]any `json:"definitions,omitempty" mapstructure:"definitions"`
}

// New builds a Configuration, copying definitions so later caller mutations
// do not leak into resolved sessions.
func New(name string, definitions map[string]any) *Configuration {
	return &Configuration{
		Name:        name,
		Definitions: cloneMap(definitions),
	}
}

// Clone returns a deep copy of c. A nil receiver yields nil.
func (c *Configuration) Clone() *Configuration {
	if c == nil {
		return nil
	}
	return &Configuration{
		Name:        c.Name,
		Definitions: cloneMap(c.Definitions),
	}
}

// Definition returns the named definition block.
func (c *Configuration) Definition(key string) (any, bool) {
	if c == nil || c.Definitions == nil {
		return nil, false
	}
	value, ok := c.Definitions[key]
	if !ok {
		return nil, false
	}
	return cloneValue(value), true
}

//go:embed builtin.json
var builtinPayload []byte

var (
	builtinOnce sync.Once
	builtin     *Configuration
	builtinErr  error
)

// Builtin returns the compiled-in fallback configuration.
func Builtin() *Configuration {
	builtinOnce.Do(func() {
		var cfg Configuration
		if err := json.Unmarshal(builtinPayload, &cfg); err != nil {
			builtinErr = fmt.Errorf("proxyconfig: decode builtin: %w", err)
			return
		}
		builtin = &cfg
	})
	if builtinErr != nil {
		// the embedded payload is part of the build; a decode failure is a
		// programming error
		panic(builtinErr)
	}
	return builtin.Clone()
}

func cloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	out := make(map[string]any, len(src))
	for key, value := range src {
		out[key] = cloneValue(value)
	}
	return out
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return cloneMap(typed)
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = cloneValue(typed[i])
		}
		return out
	case []string:
		return append([]string(nil), typed...)
	default:
		return value
	}
}
