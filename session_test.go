package viewer

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"testing"

	"github.com/goliatone/go-viewer/activity"
	"github.com/goliatone/go-viewer/eval"
	"github.com/goliatone/go-viewer/navigation"
	"github.com/goliatone/go-viewer/proxyconfig"
	"github.com/goliatone/go-viewer/settings"
	"github.com/goliatone/go-viewer/urlargs"
	"github.com/goliatone/go-viewer/viewstate"
)

func newTestSession(t *testing.T, env *Environment, opts ...Option) *Session {
	t.Helper()
	if env == nil {
		env = NewEnvironment()
	}
	session, err := CreateSession(context.Background(), "root", append([]Option{WithEnvironment(env)}, opts...)...)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func currentEntry(t *testing.T, history navigation.History) navigation.Entry {
	t.Helper()
	entry, _ := history.State()
	return entry
}

func TestCreateSessionRequiresContainer(t *testing.T) {
	closed := 0
	_, err := CreateSession(context.Background(), nil, WithEnvironment(NewEnvironment()), WithCloser(func() error {
		closed++
		return nil
	}))
	if !errors.Is(err, ErrContainerRequired) {
		t.Fatalf("expected ErrContainerRequired, got %v", err)
	}
	var sessionErr *SessionError
	if !errors.As(err, &sessionErr) || sessionErr.Op != "create" {
		t.Fatalf("expected SessionError for create, got %#v", err)
	}
	if closed != 1 {
		t.Fatalf("expected closer to run once, got %d", closed)
	}
}

func TestCreateSessionResolvesConfiguration(t *testing.T) {
	env := NewEnvironment()

	session := newTestSession(t, env)
	if session.Configuration().Name != proxyconfig.Builtin().Name {
		t.Fatalf("expected builtin configuration, got %q", session.Configuration().Name)
	}
	if session.Trace().Selected != proxyconfig.ScopeBuiltin {
		t.Fatalf("expected builtin scope, got %q", session.Trace().Selected)
	}

	env.SetActiveProxyConfiguration(proxyconfig.New("paraview", nil))
	session = newTestSession(t, env)
	if session.ProxyManager().Configuration().Name != "paraview" {
		t.Fatalf("expected active configuration, got %q", session.ProxyManager().Configuration().Name)
	}

	session = newTestSession(t, env, WithProxyConfiguration(proxyconfig.New("explicit", nil)))
	if session.Configuration().Name != "explicit" || session.Trace().Selected != proxyconfig.ScopeExplicit {
		t.Fatalf("expected explicit configuration, got %q via %q", session.Configuration().Name, session.Trace().Selected)
	}

	// the active default survives being read
	if env.Registry.Active() == nil {
		t.Fatalf("expected active configuration to remain registered")
	}
}

func TestSetActiveProxyConfigurationUsesDefaultEnvironment(t *testing.T) {
	SetActiveProxyConfiguration(proxyconfig.New("global", nil))
	t.Cleanup(func() { SetActiveProxyConfiguration(nil) })

	session, err := CreateSession(context.Background(), "root")
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	defer session.Close()
	if session.Configuration().Name != "global" {
		t.Fatalf("expected global configuration, got %q", session.Configuration().Name)
	}
}

func TestProxyManagerReachesStore(t *testing.T) {
	aux := map[string]string{"k": "v"}
	session := newTestSession(t, nil, WithAuxiliaryProvider(aux))

	deps := session.Store().Dependencies()
	if deps.ProxyManager != session.ProxyManager() {
		t.Fatalf("expected store to hold the session proxy manager")
	}
	if !reflect.DeepEqual(deps.Auxiliary, aux) {
		t.Fatalf("expected auxiliary provider, got %#v", deps.Auxiliary)
	}
	if session.ID() == "" {
		t.Fatalf("expected session id")
	}
}

func TestNavigationStaysConsistent(t *testing.T) {
	env := NewEnvironment()
	session := newTestSession(t, env)
	ctx := context.Background()

	if currentEntry(t, env.History).App || session.Store().Route() != navigation.RouteLanding {
		t.Fatalf("expected landing baseline")
	}

	if err := session.ShowApp(ctx); err != nil {
		t.Fatalf("show app: %v", err)
	}
	if !currentEntry(t, env.History).App || env.History.Len() != 2 {
		t.Fatalf("expected pushed app entry, len=%d", env.History.Len())
	}

	if err := session.ShowLanding(ctx); err != nil {
		t.Fatalf("show landing: %v", err)
	}
	if currentEntry(t, env.History).App {
		t.Fatalf("expected landing entry after back")
	}
	if env.History.Len() != 2 {
		t.Fatalf("expected back to keep forward entry, len=%d", env.History.Len())
	}
}

func TestExternalNavigationUpdatesRoute(t *testing.T) {
	env := NewEnvironment()
	session := newTestSession(t, env)
	if err := session.ShowApp(context.Background()); err != nil {
		t.Fatalf("show app: %v", err)
	}

	env.History.Back()
	if session.Store().Route() != navigation.RouteLanding {
		t.Fatalf("expected landing after back, got %q", session.Store().Route())
	}
	env.History.Forward()
	if session.Store().Route() != navigation.RouteApp {
		t.Fatalf("expected app after forward, got %q", session.Store().Route())
	}
	if env.History.Len() != 2 {
		t.Fatalf("expected no extra entries, len=%d", env.History.Len())
	}
}

func TestNoHistoryIsResetOnCreate(t *testing.T) {
	backend := settings.NewMemoryBackendWith(map[string]any{settings.NoHistory: true})
	session := newTestSession(t, nil, WithSettingsBackend(backend))

	if session.GetSetting(settings.NoHistory) != false {
		t.Fatalf("expected noHistory reset, got %#v", session.GetSetting(settings.NoHistory))
	}
	stored, _ := backend.LoadAll(context.Background())
	if stored[settings.NoHistory] != false {
		t.Fatalf("expected reset to be persisted, got %#v", stored[settings.NoHistory])
	}
}

func TestNoHistoryDisablesHistory(t *testing.T) {
	env := NewEnvironment()
	session := newTestSession(t, env)
	ctx := context.Background()

	if err := session.SetSetting(ctx, settings.NoHistory, true); err != nil {
		t.Fatalf("set noHistory: %v", err)
	}
	if err := session.ShowApp(ctx); err != nil {
		t.Fatalf("show app: %v", err)
	}
	if env.History.Len() != 1 || currentEntry(t, env.History).App {
		t.Fatalf("expected history untouched, len=%d", env.History.Len())
	}
}

func TestPersistedSettingsSeedStore(t *testing.T) {
	backend := settings.NewMemoryBackendWith(map[string]any{
		settings.CollapseDatasetPanels:  true,
		settings.SuppressBrowserWarning: true,
	})
	session := newTestSession(t, nil, WithSettingsBackend(backend))

	state := session.Store().Snapshot()
	if !state.CollapseDatasetPanels || !state.SuppressBrowserWarning {
		t.Fatalf("expected persisted settings to win, got %+v", state)
	}
}

func TestStoreChangesArePersisted(t *testing.T) {
	backend := settings.NewMemoryBackend()
	session := newTestSession(t, nil, WithSettingsBackend(backend))

	if err := session.Store().Dispatch(context.Background(), viewstate.MutationSuppressBrowserWarning, true); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	stored, _ := backend.LoadAll(context.Background())
	if stored[settings.SuppressBrowserWarning] != true {
		t.Fatalf("expected mirrored setting, got %#v", stored[settings.SuppressBrowserWarning])
	}
}

func TestProcessURLArgs(t *testing.T) {
	env := NewEnvironment()
	env.Location = func() string {
		return "https://viewer.example/?name=[a,b,c]&url=[u1,u2]&setting.collapseDatasetPanels=true&setting.theme=dark"
	}
	session := newTestSession(t, env)
	ctx := context.Background()

	result, err := session.ProcessURLArgs(ctx)
	if err != nil {
		t.Fatalf("process url args: %v", err)
	}
	want := []urlargs.Resource{{Name: "a", URL: "u1"}, {Name: "b", URL: "u2"}}
	if !reflect.DeepEqual(result.Resources, want) {
		t.Fatalf("expected %v, got %v", want, result.Resources)
	}
	if session.GetSetting("theme") != "dark" {
		t.Fatalf("expected theme setting, got %#v", session.GetSetting("theme"))
	}
	if !session.Store().Snapshot().CollapseDatasetPanels {
		t.Fatalf("expected setting to reach the store")
	}

	root := session.Root().(*HeadlessRoot)
	requests := root.Requests()
	if len(requests) != 1 || requests[0].Group != urlargs.GroupResourcesFromURL || !reflect.DeepEqual(requests[0].Resources, want) {
		t.Fatalf("unexpected load requests %#v", requests)
	}

	if _, err := session.ProcessURLArgs(ctx); err != nil {
		t.Fatalf("second process: %v", err)
	}
	if len(root.Requests()) != 2 {
		t.Fatalf("expected load to be reissued, got %d", len(root.Requests()))
	}
	if session.GetSetting("theme") != "dark" {
		t.Fatalf("expected settings unchanged after second call")
	}
}

func TestProcessURLArgsUsesDatasetLoader(t *testing.T) {
	env := NewEnvironment()
	env.Location = func() string { return "name=cow&url=cow.vtp" }

	var got []urlargs.Resource
	loader := urlargs.LoaderFunc(func(_ context.Context, group string, resources []urlargs.Resource) error {
		got = resources
		return nil
	})
	session := newTestSession(t, env, WithDatasetLoader(loader))
	if _, err := session.ProcessURLArgs(context.Background()); err != nil {
		t.Fatalf("process url args: %v", err)
	}
	if len(got) != 1 || got[0].Name != "cow" {
		t.Fatalf("expected loader to receive resources, got %v", got)
	}
	if len(session.Root().(*HeadlessRoot).Requests()) != 0 {
		t.Fatalf("expected root to be bypassed")
	}
}

func TestAddDatasetPanelRejectsDuplicates(t *testing.T) {
	session := newTestSession(t, nil)
	ctx := context.Background()

	if err := session.AddDatasetPanel(ctx, viewstate.Panel{Component: "girder"}); err != nil {
		t.Fatalf("add panel: %v", err)
	}
	err := session.AddDatasetPanel(ctx, viewstate.Panel{Component: "girder"})
	if !errors.Is(err, ErrDuplicatePanel) {
		t.Fatalf("expected ErrDuplicatePanel, got %v", err)
	}
	if len(session.Store().Snapshot().Panels) != 1 {
		t.Fatalf("expected one panel")
	}
}

func TestGetSettingUnknown(t *testing.T) {
	session := newTestSession(t, nil)
	if !settings.IsUnset(session.GetSetting("nope")) {
		t.Fatalf("expected Unset for unknown setting")
	}
}

func TestSessionEmitsActivity(t *testing.T) {
	env := NewEnvironment()
	env.Location = func() string { return "name=a&url=b" }
	capture := &activity.CaptureHook{}
	session := newTestSession(t, env, WithActivityHooks(capture))
	ctx := context.Background()

	if err := session.ShowApp(ctx); err != nil {
		t.Fatalf("show app: %v", err)
	}
	if err := session.SetSetting(ctx, "theme", "dark"); err != nil {
		t.Fatalf("set setting: %v", err)
	}
	if _, err := session.ProcessURLArgs(ctx); err != nil {
		t.Fatalf("process url args: %v", err)
	}

	verbs := capture.Verbs()
	for _, verb := range []string{activity.VerbSessionCreated, activity.VerbRouteChanged, activity.VerbSettingUpdated, activity.VerbDatasetsRequested} {
		if !slices.Contains(verbs, verb) {
			t.Fatalf("expected %s in %v", verb, verbs)
		}
	}
	for _, event := range capture.Events() {
		if event.SessionID != session.ID() {
			t.Fatalf("expected session id on %s", event.Verb)
		}
		if event.Channel != activity.DefaultChannel {
			t.Fatalf("expected default channel, got %q", event.Channel)
		}
	}
}

func TestCloseDetachesSession(t *testing.T) {
	env := NewEnvironment()
	closed := 0
	session, err := CreateSession(context.Background(), "root", WithEnvironment(env), WithCloser(func() error {
		closed++
		return nil
	}))
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := session.ShowApp(context.Background()); err != nil {
		t.Fatalf("show app: %v", err)
	}

	if err := session.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if closed != 1 {
		t.Fatalf("expected closer to run once, got %d", closed)
	}

	env.History.Back()
	if session.Store().Route() != navigation.RouteApp {
		t.Fatalf("expected closed session to ignore history")
	}
	if err := session.ShowLanding(context.Background()); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	route, state := session.Store().Observers()
	if route != 0 || state != 0 {
		t.Fatalf("expected observers removed, got route=%d state=%d", route, state)
	}
}

func TestSessionsAreNotTornDown(t *testing.T) {
	env := NewEnvironment()
	first := newTestSession(t, env)
	second := newTestSession(t, env)

	if err := second.ShowApp(context.Background()); err != nil {
		t.Fatalf("show app: %v", err)
	}
	env.History.Back()
	if first.Store().Route() != navigation.RouteLanding || second.Store().Route() != navigation.RouteLanding {
		t.Fatalf("expected both sessions to observe the pop")
	}
}

func TestMountFailureAborts(t *testing.T) {
	boom := errors.New("boom")
	closed := 0
	_, err := CreateSession(context.Background(), "root",
		WithEnvironment(NewEnvironment()),
		WithMounter(MounterFunc(func(context.Context, any, *viewstate.Store) (UIRoot, error) { return nil, boom })),
		WithCloser(func() error { closed++; return nil }),
	)
	if !errors.Is(err, boom) {
		t.Fatalf("expected mount error, got %v", err)
	}
	var sessionErr *SessionError
	if !errors.As(err, &sessionErr) || sessionErr.Op != "mount" {
		t.Fatalf("expected mount SessionError, got %#v", err)
	}
	if closed != 1 {
		t.Fatalf("expected closers to run on failure, got %d", closed)
	}
}

func TestMirrorSurvivesCancelledCreateContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	session, err := CreateSession(ctx, "root", WithEnvironment(NewEnvironment()))
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	defer session.Close()
	cancel()

	if err := session.SetSetting(context.Background(), settings.CollapseDatasetPanels, true); err != nil {
		t.Fatalf("set setting: %v", err)
	}
	if !session.Store().Snapshot().CollapseDatasetPanels {
		t.Fatalf("expected setting to reach the store after cancellation")
	}

	if err := session.Store().Dispatch(context.Background(), viewstate.MutationSuppressBrowserWarning, true); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if session.GetSetting(settings.SuppressBrowserWarning) != true {
		t.Fatalf("expected store change to be persisted after cancellation")
	}
}

func TestLooseSettingValueDoesNotBlockLaterSessions(t *testing.T) {
	env := NewEnvironment()
	env.Location = func() string { return "?setting.collapseDatasetPanels=yes" }
	first := newTestSession(t, env)
	if _, err := first.ProcessURLArgs(context.Background()); err != nil {
		t.Fatalf("process url args: %v", err)
	}
	if !first.Store().Snapshot().CollapseDatasetPanels {
		t.Fatalf("expected truthy value to collapse panels")
	}

	// a non-bool value still in storage must seed, not fail
	if err := env.Settings.Save(context.Background(), settings.CollapseDatasetPanels, "yes"); err != nil {
		t.Fatalf("save: %v", err)
	}
	second, err := CreateSession(context.Background(), "root", WithEnvironment(env))
	if err != nil {
		t.Fatalf("create second session: %v", err)
	}
	defer second.Close()
	if !second.Store().Snapshot().CollapseDatasetPanels {
		t.Fatalf("expected persisted value to seed the store")
	}
}

func TestPullExpressionsUseSessionFunctions(t *testing.T) {
	calls := 0
	registry := eval.NewFunctionRegistry()
	if err := registry.Register("truthy", func(args ...any) (any, error) {
		calls++
		return eval.Truthy(args[0]), nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	for _, engine := range []string{eval.EngineExpr, eval.EngineCEL} {
		calls = 0
		session := newTestSession(t, nil, WithEvaluatorEngine(engine), WithFunctions(registry))
		if err := session.Store().Dispatch(context.Background(), viewstate.MutationCollapseDatasetPanels, true); err != nil {
			t.Fatalf("%s: dispatch: %v", engine, err)
		}
		if calls == 0 {
			t.Fatalf("%s: expected pull expressions to call the registered helper", engine)
		}
		if session.GetSetting(settings.CollapseDatasetPanels) != true {
			t.Fatalf("%s: expected mirrored setting, got %#v", engine, session.GetSetting(settings.CollapseDatasetPanels))
		}
	}
}

func TestUnknownEvaluatorEngineAborts(t *testing.T) {
	_, err := CreateSession(context.Background(), "root", WithEnvironment(NewEnvironment()), WithEvaluatorEngine("lua"))
	if !errors.Is(err, eval.ErrUnknownEngine) {
		t.Fatalf("expected ErrUnknownEngine, got %v", err)
	}
}
