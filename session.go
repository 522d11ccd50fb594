package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/goliatone/go-viewer/activity"
	"github.com/goliatone/go-viewer/eval"
	"github.com/goliatone/go-viewer/navigation"
	"github.com/goliatone/go-viewer/proxyconfig"
	"github.com/goliatone/go-viewer/settings"
	"github.com/goliatone/go-viewer/urlargs"
	"github.com/goliatone/go-viewer/viewstate"
)

// Session is a running viewer. Sessions are not torn down when another one
// is created; call Close to detach one.
type Session struct {
	id      string
	env     *Environment
	cfg     *proxyconfig.Configuration
	trace   proxyconfig.Trace
	proxy   ProxyManager
	prefs   *settings.Store
	store   *viewstate.Store
	root    UIRoot
	machine *navigation.Machine
	binding *settings.Binding
	args    *urlargs.Processor
	emitter *activity.Emitter
	actor   activity.Actor
	logger  *slog.Logger

	mu      sync.Mutex
	closed  bool
	cancels []func()
	closers []func() error
}

// CreateSession builds and wires a session mounted on container.
func CreateSession(ctx context.Context, container any, opts ...Option) (*Session, error) {
	cfg := applyOptions(opts)
	if container == nil {
		return nil, wrapSessionError("create", errors.Join(ErrContainerRequired, runClosers(cfg.closers)))
	}

	s := &Session{
		id:      uuid.Must(uuid.NewV7()).String(),
		env:     cfg.env,
		actor:   cfg.actor,
		logger:  cfg.logger,
		closers: cfg.closers,
	}
	s.logger = s.logger.With(slog.String("session", s.id))
	s.emitter = activity.NewEmitter(cfg.hooks, cfg.activity).WithLogger(s.logger)

	resolved, trace, err := cfg.env.Registry.Resolve(cfg.proxyConfiguration)
	if err != nil {
		return nil, s.abort("resolve configuration", err)
	}
	s.cfg, s.trace = resolved, trace

	s.proxy, err = cfg.factory(ctx, resolved.Clone())
	if err != nil {
		return nil, s.abort("create proxy manager", err)
	}

	s.prefs, err = settings.Open(ctx, cfg.backend,
		settings.WithDefaults(settings.DefaultValues()),
		settings.WithLogger(s.logger),
	)
	if err != nil {
		return nil, s.abort("open settings", err)
	}
	s.cancels = append(s.cancels, s.prefs.OnChange(s.onSettingChange))

	s.store = viewstate.New(viewstate.Dependencies{ProxyManager: s.proxy, Auxiliary: cfg.auxiliary}, viewstate.WithLogger(s.logger))

	s.root, err = cfg.mounter.Mount(ctx, container, s.store)
	if err != nil {
		return nil, s.abort("mount", err)
	}

	s.machine, err = navigation.NewMachine(cfg.env.History, s.store,
		navigation.WithGate(func() bool { return s.prefs.Bool(settings.NoHistory) }),
		navigation.WithLogger(s.logger),
		navigation.WithObserver(s.onTransition),
	)
	if err != nil {
		return nil, s.abort("navigation", err)
	}
	s.machine.Init()
	if err := s.prefs.Set(ctx, settings.NoHistory, false); err != nil {
		return nil, s.abort("reset noHistory", err)
	}
	unbind, err := s.machine.Bind()
	if err != nil {
		return nil, s.abort("navigation", err)
	}
	s.cancels = append(s.cancels, unbind)

	evaluator, err := eval.New(cfg.engine,
		eval.WithProgramCache(eval.NewMapCache()),
		eval.WithFunctionRegistry(cfg.functions),
	)
	if err != nil {
		return nil, s.abort("evaluator", err)
	}
	s.binding, err = s.prefs.Sync(ctx, s.store, s.syncDirectives(),
		settings.WithSyncMode(settings.SyncMirror),
		settings.WithEvaluator(eval.WithLogger(evaluator, eval.SlogLogger(s.logger))),
	)
	if err != nil {
		return nil, s.abort("sync settings", err)
	}
	s.cancels = append(s.cancels, s.binding.Close)

	loader := cfg.loader
	if loader == nil {
		loader = urlargs.LoaderFunc(s.root.AutoLoadRemotes)
	}
	s.args, err = urlargs.NewProcessor(s.prefs,
		urlargs.WithLoader(s.announce(loader)),
		urlargs.WithLogger(s.logger),
	)
	if err != nil {
		return nil, s.abort("url args", err)
	}

	s.logger.Info("viewer.session.created",
		slog.String("configuration", resolved.Name),
		slog.String("scope", trace.Selected),
	)
	s.emitter.Publish(ctx, activity.SessionCreated(s.id, s.actor, resolved.Name, trace.Selected))
	return s, nil
}

// syncDirectives binds the two settings mirrored into the view state.
func (s *Session) syncDirectives() []settings.Directive {
	directive := func(name string) settings.Directive {
		return settings.Directive{
			Setting: name,
			Push: func(ctx context.Context, value any) error {
				return s.store.Dispatch(ctx, name, value)
			},
			PullExpr: fmt.Sprintf("call(%q, %s)", "truthy", name),
		}
	}
	return []settings.Directive{
		directive(settings.CollapseDatasetPanels),
		directive(settings.SuppressBrowserWarning),
	}
}

func (s *Session) announce(next urlargs.Loader) urlargs.Loader {
	return urlargs.LoaderFunc(func(ctx context.Context, group string, resources []urlargs.Resource) error {
		names := make([]string, len(resources))
		for i, resource := range resources {
			names[i] = resource.Name
		}
		s.emitter.Publish(ctx, activity.DatasetsRequested(s.id, s.actor, group, names))
		return next.LoadRemotes(ctx, group, resources)
	})
}

func (s *Session) onSettingChange(change settings.Change) {
	old := change.OldValue
	if settings.IsUnset(old) {
		old = nil
	}
	s.emitter.Publish(context.Background(), activity.SettingUpdated(s.id, s.actor, change.Name, old, change.NewValue))
}

func (s *Session) onTransition(t navigation.Transition) {
	s.emitter.Publish(context.Background(), activity.RouteChanged(s.id, s.actor, string(t.Route), string(t.Action)))
}

// ID returns the session's UUIDv7.
func (s *Session) ID() string {
	return s.id
}

// ProxyManager returns the proxy manager built for this session.
func (s *Session) ProxyManager() ProxyManager {
	return s.proxy
}

// Store returns the view-state store.
func (s *Session) Store() *viewstate.Store {
	return s.store
}

// Settings returns the settings store.
func (s *Session) Settings() *settings.Store {
	return s.prefs
}

// Root returns the mounted UI root.
func (s *Session) Root() UIRoot {
	return s.root
}

// Configuration returns a copy of the resolved proxy configuration.
func (s *Session) Configuration() *proxyconfig.Configuration {
	return s.cfg.Clone()
}

// Trace reports which candidate configuration the session resolved.
func (s *Session) Trace() proxyconfig.Trace {
	trace := s.trace
	trace.Layers = append([]proxyconfig.Provenance(nil), s.trace.Layers...)
	return trace
}

// ProcessURLArgs reads the environment's current location and applies it:
// setting.<name> parameters become settings and paired name/url parameters
// become one batched remote load. Each call reissues the load.
func (s *Session) ProcessURLArgs(ctx context.Context) (urlargs.Result, error) {
	if err := s.checkOpen(); err != nil {
		return urlargs.Result{}, wrapSessionError("process url args", err)
	}
	result, err := s.args.Process(ctx, s.env.rawQuery())
	return result, wrapSessionError("process url args", err)
}

// AddDatasetPanel registers an embedder-provided dataset panel. Components
// must be unique.
func (s *Session) AddDatasetPanel(ctx context.Context, panel viewstate.Panel) error {
	return s.dispatch(ctx, "add dataset panel", viewstate.MutationAddPanel, panel)
}

// ShowApp switches to the application route.
func (s *Session) ShowApp(ctx context.Context) error {
	return s.dispatch(ctx, "show app", viewstate.MutationShowApp, nil)
}

// ShowLanding switches to the landing route.
func (s *Session) ShowLanding(ctx context.Context) error {
	return s.dispatch(ctx, "show landing", viewstate.MutationShowLanding, nil)
}

// GetSetting returns the setting value, its default, or settings.Unset.
func (s *Session) GetSetting(name string) any {
	return s.prefs.Get(name)
}

// SetSetting persists a setting immediately.
func (s *Session) SetSetting(ctx context.Context, name string, value any) error {
	if err := s.checkOpen(); err != nil {
		return wrapSessionError("set setting", err)
	}
	return wrapSessionError("set setting", s.prefs.Set(ctx, name, value))
}

func (s *Session) dispatch(ctx context.Context, op, mutation string, payload any) error {
	if err := s.checkOpen(); err != nil {
		return wrapSessionError(op, err)
	}
	return wrapSessionError(op, s.store.Dispatch(ctx, mutation, payload))
}

func (s *Session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}

// Close detaches the session from history and settings and runs registered
// closers. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	s.detach()
	err := runClosers(closers)
	s.logger.Debug("viewer.session.closed")
	return wrapSessionError("close", err)
}

// abort undoes a partial CreateSession.
func (s *Session) abort(op string, err error) error {
	s.detach()
	closeErr := runClosers(s.closers)
	s.closers = nil
	return wrapSessionError(op, errors.Join(err, closeErr))
}

func runClosers(closers []func() error) error {
	var errs []error
	for _, fn := range closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Session) detach() {
	s.mu.Lock()
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()
	for i := len(cancels) - 1; i >= 0; i-- {
		cancels[i]()
	}
}
