package navigation

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// RouteSource exposes the route field of the application store.
type RouteSource interface {
	Route() Route
	// OnRouteChange registers fn for committed route changes.
	OnRouteChange(fn func(route Route)) (cancel func())
	// CommitRoute sets the route, notifying observers when it changes.
	CommitRoute(route Route)
}

// Transition describes a side effect the machine applied.
type Transition struct {
	Route  Route
	Action Action
	Entry  Entry
}

// Action names a history side effect.
type Action string

const (
	ActionPush    Action = "push"
	ActionBack    Action = "back"
	ActionReplace Action = "replace"
	ActionPop     Action = "pop"
)

var (
	ErrHistoryRequired = errors.New("navigation: history is required")
	ErrRoutesRequired  = errors.New("navigation: route source is required")
	ErrAlreadyBound    = errors.New("navigation: machine already bound")
)

// Option configures a Machine.
type Option func(*Machine)

// WithGate disables the route rules while gate returns true. The viewer
// wires the noHistory setting here.
func WithGate(gate func() bool) Option {
	return func(m *Machine) {
		m.disabled = gate
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithObserver receives every applied transition.
func WithObserver(fn func(Transition)) Option {
	return func(m *Machine) {
		m.observer = fn
	}
}

// Machine applies the navigation rules between a History and a RouteSource.
type Machine struct {
	history  History
	routes   RouteSource
	disabled func() bool
	logger   *slog.Logger
	observer func(Transition)

	mu      sync.Mutex
	cancels []func()
}

// NewMachine builds a machine. Nothing is observed until Bind.
func NewMachine(history History, routes RouteSource, opts ...Option) (*Machine, error) {
	if history == nil {
		return nil, ErrHistoryRequired
	}
	if routes == nil {
		return nil, ErrRoutesRequired
	}
	m := &Machine{
		history:  history,
		routes:   routes,
		disabled: func() bool { return false },
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m, nil
}

// Init replaces the current entry with the landing baseline, whatever an
// earlier page left there. Call it before Bind.
func (m *Machine) Init() {
	baseline := Entry{App: false}
	m.history.Replace(baseline)
	m.emit(Transition{Route: RouteLanding, Action: ActionReplace, Entry: baseline})
}

// Bind installs the route watcher and the pop listener. The returned func
// removes both.
func (m *Machine) Bind() (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.cancels) > 0 {
		return nil, ErrAlreadyBound
	}
	m.cancels = append(m.cancels,
		m.routes.OnRouteChange(m.onRoute),
		m.history.OnPop(m.onPop),
	)
	return m.Unbind, nil
}

// Unbind removes the listeners installed by Bind.
func (m *Machine) Unbind() {
	m.mu.Lock()
	cancels := m.cancels
	m.cancels = nil
	m.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// Enabled reports whether route rules currently apply.
func (m *Machine) Enabled() bool {
	return !m.disabled()
}

func (m *Machine) onRoute(route Route) {
	if m.disabled() {
		return
	}
	current, _ := m.history.State()
	switch {
	case route == RouteLanding && current.App:
		m.emit(Transition{Route: route, Action: ActionBack, Entry: current})
		m.history.Back()
	case route == RouteApp && !current.App:
		entry := Entry{App: true}
		m.history.Push(entry)
		m.emit(Transition{Route: route, Action: ActionPush, Entry: entry})
	}
}

func (m *Machine) onPop(entry Entry, _ bool) {
	route := entry.Route()
	m.emit(Transition{Route: route, Action: ActionPop, Entry: entry})
	m.routes.CommitRoute(route)
}

func (m *Machine) emit(t Transition) {
	m.logger.LogAttrs(context.Background(), slog.LevelDebug, "navigation.transition",
		slog.String("route", string(t.Route)),
		slog.String("action", string(t.Action)),
		slog.Bool("app", t.Entry.App),
	)
	if m.observer != nil {
		m.observer(t)
	}
}
