package proxyconfig

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadFile reads a configuration descriptor from path. The format follows
// the file extension (yaml, json, toml). Definition keys come back lowercased,
// as viper treats keys case-insensitively.
func LoadFile(path string) (*Configuration, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("proxyconfig: path is required")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("proxyconfig: reading %s: %w", path, err)
	}

	var cfg Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("proxyconfig: unmarshalling %s: %w", path, err)
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("proxyconfig: %s: name is required", path)
	}
	cfg.Definitions = normalizeMap(cfg.Definitions)
	return &cfg, nil
}

// viper hands back map[interface{}]interface{} for nested yaml in some paths
func normalizeMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	out := make(map[string]any, len(src))
	for key, value := range src {
		out[key] = normalizeValue(value)
	}
	return out
}

func normalizeValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return normalizeMap(typed)
	case map[any]any:
		out := make(map[string]any, len(typed))
		for key, inner := range typed {
			out[fmt.Sprint(key)] = normalizeValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i := range typed {
			out[i] = normalizeValue(typed[i])
		}
		return out
	default:
		return value
	}
}
