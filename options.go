package viewer

import (
	"log/slog"

	"github.com/goliatone/go-viewer/activity"
	"github.com/goliatone/go-viewer/eval"
	"github.com/goliatone/go-viewer/proxyconfig"
	"github.com/goliatone/go-viewer/settings"
	"github.com/goliatone/go-viewer/urlargs"
)

// Option configures CreateSession.
type Option func(*sessionConfig)

type sessionConfig struct {
	proxyConfiguration *proxyconfig.Configuration
	factory            ProxyManagerFactory
	mounter            Mounter
	loader             urlargs.Loader
	backend            settings.Backend
	env                *Environment
	logger             *slog.Logger
	hooks              activity.Hooks
	activity           activity.Config
	actor              activity.Actor
	engine             string
	functions          *eval.FunctionRegistry
	auxiliary          any
	closers            []func() error
}

func applyOptions(opts []Option) sessionConfig {
	cfg := sessionConfig{
		factory:   NewHeadlessProxyManager,
		mounter:   HeadlessMounter{},
		logger:    slog.New(slog.DiscardHandler),
		activity:  activity.Config{Enabled: true},
		functions: eval.DefaultFunctions(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.env == nil {
		cfg.env = DefaultEnvironment()
	}
	cfg.env = cfg.env.withDefaults()
	if cfg.backend == nil {
		cfg.backend = cfg.env.Settings
	}
	return cfg
}

// WithProxyConfiguration passes an explicit configuration. It wins over the
// environment's active default and the built-in fallback.
func WithProxyConfiguration(cfg *proxyconfig.Configuration) Option {
	return func(c *sessionConfig) {
		c.proxyConfiguration = cfg
	}
}

// WithProxyManagerFactory replaces the headless proxy manager.
func WithProxyManagerFactory(factory ProxyManagerFactory) Option {
	return func(c *sessionConfig) {
		if factory != nil {
			c.factory = factory
		}
	}
}

// WithMounter replaces the headless UI root.
func WithMounter(mounter Mounter) Option {
	return func(c *sessionConfig) {
		if mounter != nil {
			c.mounter = mounter
		}
	}
}

// WithDatasetLoader routes URL-triggered loads to loader instead of the
// mounted UI root.
func WithDatasetLoader(loader urlargs.Loader) Option {
	return func(c *sessionConfig) {
		c.loader = loader
	}
}

// WithSettingsBackend persists settings in backend instead of the
// environment's default backend.
func WithSettingsBackend(backend settings.Backend) Option {
	return func(c *sessionConfig) {
		c.backend = backend
	}
}

// WithEnvironment isolates the session from DefaultEnvironment.
func WithEnvironment(env *Environment) Option {
	return func(c *sessionConfig) {
		c.env = env
	}
}

// WithLogger sets the structured logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(c *sessionConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithActivityHooks adds hooks that receive session events.
func WithActivityHooks(hooks ...activity.Hook) Option {
	return func(c *sessionConfig) {
		c.hooks = append(c.hooks, hooks...)
	}
}

// WithActivityConfig overrides emission defaults. Emission is enabled by
// default whenever hooks are present.
func WithActivityConfig(cfg activity.Config) Option {
	return func(c *sessionConfig) {
		c.activity = cfg
	}
}

// WithActor attributes session events.
func WithActor(actor activity.Actor) Option {
	return func(c *sessionConfig) {
		c.actor = actor
	}
}

// WithEvaluatorEngine selects the engine (expr, cel or js) for settings
// sync pull expressions. The default is expr.
func WithEvaluatorEngine(engine string) Option {
	return func(c *sessionConfig) {
		c.engine = engine
	}
}

// WithFunctions exposes extra helpers to pull expressions alongside
// eval.DefaultFunctions. Same-named helpers replace the defaults.
func WithFunctions(registry *eval.FunctionRegistry) Option {
	return func(c *sessionConfig) {
		c.functions = c.functions.With(registry)
	}
}

// WithAuxiliaryProvider hands an extra dependency to the view-state store.
func WithAuxiliaryProvider(aux any) Option {
	return func(c *sessionConfig) {
		c.auxiliary = aux
	}
}

// WithCloser registers fn to run on Session.Close, after the session has
// detached its listeners.
func WithCloser(fn func() error) Option {
	return func(c *sessionConfig) {
		if fn != nil {
			c.closers = append(c.closers, fn)
		}
	}
}
