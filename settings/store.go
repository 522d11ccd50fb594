package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Reserved setting names.
const (
	NoHistory              = "noHistory"
	CollapseDatasetPanels  = "collapseDatasetPanels"
	SuppressBrowserWarning = "suppressBrowserWarning"
)

// Unset is returned by Get for names with neither a value nor a default.
var Unset unset

type unset struct{}

func (unset) String() string { return "<unset>" }

// IsUnset reports whether value is the Unset marker.
func IsUnset(value any) bool {
	_, ok := value.(unset)
	return ok
}

var (
	ErrBackendRequired = errors.New("settings: backend is required")
	ErrNameRequired    = errors.New("settings: name is required")
)

// DefaultValues are the defaults applied by the viewer.
func DefaultValues() map[string]any {
	return map[string]any{
		NoHistory:              false,
		CollapseDatasetPanels:  false,
		SuppressBrowserWarning: false,
	}
}

// Change describes one Set call.
type Change struct {
	Name     string
	OldValue any
	NewValue any
}

// Option configures a Store.
type Option func(*Store)

// WithDefaults merges defaults into the store's default table.
func WithDefaults(defaults map[string]any) Option {
	return func(s *Store) {
		for name, value := range defaults {
			s.defaults[name] = value
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Store is the in-memory view of persisted settings.
type Store struct {
	backend   Backend
	logger    *slog.Logger
	mu        sync.RWMutex
	values    map[string]any
	defaults  map[string]any
	listeners map[int]func(Change)
	nextID    int
}

// Open loads every persisted value from backend.
func Open(ctx context.Context, backend Backend, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}
	s := &Store{
		backend:   backend,
		logger:    slog.New(slog.DiscardHandler),
		defaults:  DefaultValues(),
		listeners: map[int]func(Change){},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	values, err := backend.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("settings: load: %w", err)
	}
	if values == nil {
		values = map[string]any{}
	}
	s.values = values
	s.logger.Debug("settings.open", slog.Int("count", len(values)))
	return s, nil
}

// Get returns the persisted value, the default, or Unset.
func (s *Store) Get(name string) any {
	if value, ok := s.Lookup(name); ok {
		return value
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if value, ok := s.defaults[name]; ok {
		return value
	}
	return Unset
}

// Lookup returns the persisted value only.
func (s *Store) Lookup(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[name]
	return value, ok
}

// Bool interprets the setting as a boolean. Strings "true"/"1" count as
// true so values assigned from URLs behave.
func (s *Store) Bool(name string) bool {
	switch typed := s.Get(name).(type) {
	case bool:
		return typed
	case string:
		value := strings.ToLower(strings.TrimSpace(typed))
		return value == "true" || value == "1"
	case float64:
		return typed != 0
	case int:
		return typed != 0
	default:
		return false
	}
}

// Set persists value immediately and notifies change listeners. Assigning
// an equal value still persists but does not notify.
func (s *Store) Set(ctx context.Context, name string, value any) error {
	if name == "" {
		return ErrNameRequired
	}
	if err := s.backend.Save(ctx, name, value); err != nil {
		return fmt.Errorf("settings: save %q: %w", name, err)
	}

	s.mu.Lock()
	old, existed := s.values[name]
	s.values[name] = value
	listeners := s.snapshotListeners()
	s.mu.Unlock()

	if existed && reflect.DeepEqual(old, value) {
		return nil
	}
	if !existed {
		old = nil
	}
	s.logger.Debug("settings.set", slog.String("name", name), slog.Any("value", value))
	change := Change{Name: name, OldValue: old, NewValue: value}
	for _, fn := range listeners {
		fn(change)
	}
	return nil
}

// Delete removes a persisted value so Get falls back to the default.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := s.backend.Delete(ctx, name); err != nil {
		return fmt.Errorf("settings: delete %q: %w", name, err)
	}
	s.mu.Lock()
	delete(s.values, name)
	s.mu.Unlock()
	return nil
}

// Names returns every persisted name, sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.values))
	for name := range s.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns a copy of the persisted values.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for name, value := range s.values {
		out[name] = value
	}
	return out
}

// OnChange registers fn for every effective Set. The returned func removes it.
func (s *Store) OnChange(fn func(Change)) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Store) snapshotListeners() []func(Change) {
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		out = append(out, s.listeners[id])
	}
	return out
}
