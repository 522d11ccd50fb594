package viewer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/goliatone/go-viewer/activity"
	"github.com/goliatone/go-viewer/eval"
	"github.com/goliatone/go-viewer/proxyconfig"
	"github.com/goliatone/go-viewer/settings"
	"github.com/goliatone/go-viewer/settings/redis"
	"github.com/goliatone/go-viewer/settings/sqlite"
)

// Settings backend names accepted in Config.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

var ErrUnknownBackend = errors.New("viewer: unknown settings backend")

// Config is the file form of a session's wiring.
type Config struct {
	Settings           SettingsConfig `mapstructure:"settings"`
	ProxyConfiguration string         `mapstructure:"proxy_configuration"`
	Evaluator          string         `mapstructure:"evaluator"`
	Activity           ActivityConfig `mapstructure:"activity"`

	// Functions are extra pull-expression helpers. They cannot come from a
	// file; set them on the loaded Config.
	Functions *eval.FunctionRegistry `mapstructure:"-"`
}

// SettingsConfig selects where settings are persisted.
type SettingsConfig struct {
	Backend   string `mapstructure:"backend"`
	Path      string `mapstructure:"path"`
	RedisURL  string `mapstructure:"redis_url"`
	Namespace string `mapstructure:"namespace"`
}

// ActivityConfig controls session event emission.
type ActivityConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Channel string `mapstructure:"channel"`
}

// LoadConfig reads path (yaml, json or toml) and applies defaults for
// anything it leaves out. VIEWER_ prefixed environment variables override
// file values, e.g. VIEWER_SETTINGS_BACKEND.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("settings.backend", BackendMemory)
	v.SetDefault("settings.path", "viewer.db")
	v.SetDefault("settings.namespace", "")
	v.SetDefault("settings.redis_url", "")
	v.SetDefault("proxy_configuration", "")
	v.SetDefault("evaluator", eval.EngineExpr)
	v.SetDefault("activity.enabled", true)
	v.SetDefault("activity.channel", activity.DefaultChannel)
	v.SetEnvPrefix("viewer")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("viewer: reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("viewer: unmarshalling config: %w", err)
	}
	return cfg, nil
}

// Options turns the config into session options. Backends opened here are
// closed by the session's Close through WithCloser.
func (c Config) Options(ctx context.Context) ([]Option, error) {
	var opts []Option

	backend, closer, err := c.Settings.open(ctx)
	if err != nil {
		return nil, err
	}
	if backend != nil {
		opts = append(opts, WithSettingsBackend(backend))
	}
	if closer != nil {
		opts = append(opts, WithCloser(closer))
	}

	fail := func(err error) ([]Option, error) {
		if closer != nil {
			err = errors.Join(err, closer())
		}
		return nil, err
	}

	if c.ProxyConfiguration != "" {
		proxyCfg, err := proxyconfig.LoadFile(c.ProxyConfiguration)
		if err != nil {
			return fail(err)
		}
		opts = append(opts, WithProxyConfiguration(proxyCfg))
	}

	if _, err := eval.New(c.Evaluator, eval.WithFunctionRegistry(eval.DefaultFunctions().With(c.Functions))); err != nil {
		return fail(fmt.Errorf("viewer: evaluator: %w", err))
	}
	opts = append(opts,
		WithEvaluatorEngine(c.Evaluator),
		WithFunctions(c.Functions),
		WithActivityConfig(activity.Config{Enabled: c.Activity.Enabled, Channel: c.Activity.Channel}),
	)
	return opts, nil
}

func (c SettingsConfig) open(ctx context.Context) (settings.Backend, func() error, error) {
	switch strings.ToLower(strings.TrimSpace(c.Backend)) {
	case "", BackendMemory:
		return nil, nil, nil
	case BackendSQLite:
		db, err := sqlite.Open(c.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("viewer: sqlite settings: %w", err)
		}
		backend := sqlite.New(db, c.Namespace)
		return backend, backend.Close, nil
	case BackendRedis:
		backend, err := redis.NewBackend(ctx, c.RedisURL, c.Namespace)
		if err != nil {
			return nil, nil, fmt.Errorf("viewer: redis settings: %w", err)
		}
		return backend, backend.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}
}
