// Package viewstate is the application view-state store a viewer session
// drives. It implements the contract the session needs: named commits,
// typed route observers and whole-state observers. Anything richer belongs
// to the UI layer mounted on top of it.
package viewstate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/goliatone/go-viewer/eval"
	"github.com/goliatone/go-viewer/navigation"
)

// Mutation names accepted by Commit and Dispatch.
const (
	MutationShowApp                = "showApp"
	MutationShowLanding            = "showLanding"
	MutationAddPanel               = "addPanel"
	MutationCollapseDatasetPanels  = "collapseDatasetPanels"
	MutationSuppressBrowserWarning = "suppressBrowserWarning"
)

var (
	ErrUnknownMutation = errors.New("viewstate: unknown mutation")
	ErrInvalidPayload  = errors.New("viewstate: invalid payload")
	ErrDuplicatePanel  = errors.New("viewstate: panel component already registered")
	ErrPanelRequired   = errors.New("viewstate: panel component is required")
)

// Panel describes a dataset panel contributed by an embedding application.
type Panel struct {
	Component string         `json:"component"`
	Props     map[string]any `json:"props,omitempty"`
}

// State is a snapshot of the store.
type State struct {
	Route                  navigation.Route `json:"route"`
	Panels                 []Panel          `json:"panels"`
	CollapseDatasetPanels  bool             `json:"collapseDatasetPanels"`
	SuppressBrowserWarning bool             `json:"suppressBrowserWarning"`
}

// Map flattens the state for expression evaluation.
func (s State) Map() map[string]any {
	panels := make([]any, 0, len(s.Panels))
	for _, panel := range s.Panels {
		panels = append(panels, panel.Component)
	}
	return map[string]any{
		"route":                  string(s.Route),
		"panels":                 panels,
		"collapseDatasetPanels":  s.CollapseDatasetPanels,
		"suppressBrowserWarning": s.SuppressBrowserWarning,
	}
}

// Dependencies are handed to the store at construction. Both are opaque to
// the store and exposed to UI code through Dependencies().
type Dependencies struct {
	ProxyManager any
	Auxiliary    any
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store holds the view state. Observers run after the lock is released, in
// registration order, on the committing goroutine.
type Store struct {
	mu           sync.RWMutex
	state        State
	deps         Dependencies
	logger       *slog.Logger
	routeObs     map[int]func(navigation.Route)
	stateObs     map[int]func(map[string]any)
	nextObserver int
}

// New creates a store on the landing route.
func New(deps Dependencies, opts ...Option) *Store {
	s := &Store{
		state:    State{Route: navigation.RouteLanding},
		deps:     deps,
		logger:   slog.New(slog.DiscardHandler),
		routeObs: map[int]func(navigation.Route){},
		stateObs: map[int]func(map[string]any){},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Dependencies returns what the store was built with.
func (s *Store) Dependencies() Dependencies {
	return s.deps
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.state
	out.Panels = append([]Panel(nil), s.state.Panels...)
	return out
}

// Commit applies a named mutation synchronously.
func (s *Store) Commit(name string, payload any) error {
	s.mu.Lock()
	before := s.state
	if err := s.apply(name, payload); err != nil {
		s.mu.Unlock()
		return err
	}
	after := s.state
	routeObs, stateObs := s.snapshotObservers()
	s.mu.Unlock()

	s.logger.LogAttrs(context.Background(), slog.LevelDebug, "viewstate.commit", slog.String("mutation", name))
	if before.Route != after.Route {
		for _, fn := range routeObs {
			fn(after.Route)
		}
	}
	if changed(before, after) {
		snapshot := s.Snapshot().Map()
		for _, fn := range stateObs {
			fn(snapshot)
		}
	}
	return nil
}

// Dispatch is the action entry point. Actions map one to one onto commits.
func (s *Store) Dispatch(ctx context.Context, name string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Commit(name, payload)
}

func (s *Store) apply(name string, payload any) error {
	switch name {
	case MutationShowApp:
		s.state.Route = navigation.RouteApp
	case MutationShowLanding:
		s.state.Route = navigation.RouteLanding
	case MutationAddPanel:
		panel, ok := payload.(Panel)
		if !ok {
			return fmt.Errorf("%w: %s expects Panel, got %T", ErrInvalidPayload, name, payload)
		}
		if panel.Component == "" {
			return ErrPanelRequired
		}
		for _, existing := range s.state.Panels {
			if existing.Component == panel.Component {
				return fmt.Errorf("%w: %s", ErrDuplicatePanel, panel.Component)
			}
		}
		s.state.Panels = append(append([]Panel(nil), s.state.Panels...), panel)
	case MutationCollapseDatasetPanels:
		s.state.CollapseDatasetPanels = eval.Truthy(payload)
	case MutationSuppressBrowserWarning:
		s.state.SuppressBrowserWarning = eval.Truthy(payload)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMutation, name)
	}
	return nil
}

// Route implements navigation.RouteSource.
func (s *Store) Route() navigation.Route {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Route
}

// CommitRoute implements navigation.RouteSource.
func (s *Store) CommitRoute(route navigation.Route) {
	name := MutationShowLanding
	if route == navigation.RouteApp {
		name = MutationShowApp
	}
	// both mutations are payload-free and cannot fail
	_ = s.Commit(name, nil)
}

// OnRouteChange implements navigation.RouteSource.
func (s *Store) OnRouteChange(fn func(navigation.Route)) func() {
	return s.register(func(id int) { s.routeObs[id] = fn }, func(id int) { delete(s.routeObs, id) })
}

// State returns the flattened state; it implements settings.Source.
func (s *Store) State() map[string]any {
	return s.Snapshot().Map()
}

// OnStateChange implements settings.Source.
func (s *Store) OnStateChange(fn func(map[string]any)) func() {
	return s.register(func(id int) { s.stateObs[id] = fn }, func(id int) { delete(s.stateObs, id) })
}

// Observers reports how many route and state observers are registered.
func (s *Store) Observers() (route, state int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.routeObs), len(s.stateObs)
}

func (s *Store) register(add func(int), remove func(int)) func() {
	s.mu.Lock()
	id := s.nextObserver
	s.nextObserver++
	add(id)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			remove(id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) snapshotObservers() ([]func(navigation.Route), []func(map[string]any)) {
	routeObs := make([]func(navigation.Route), 0, len(s.routeObs))
	for _, id := range sortedKeys(s.routeObs) {
		routeObs = append(routeObs, s.routeObs[id])
	}
	stateObs := make([]func(map[string]any), 0, len(s.stateObs))
	for _, id := range sortedKeys(s.stateObs) {
		stateObs = append(stateObs, s.stateObs[id])
	}
	return routeObs, stateObs
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Ints(keys)
	return keys
}

func changed(before, after State) bool {
	return before.Route != after.Route ||
		len(before.Panels) != len(after.Panels) ||
		before.CollapseDatasetPanels != after.CollapseDatasetPanels ||
		before.SuppressBrowserWarning != after.SuppressBrowserWarning
}
