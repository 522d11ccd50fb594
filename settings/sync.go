package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/goliatone/go-viewer/eval"
)

// SyncMode selects whether a binding only seeds the source or keeps both
// sides mirrored.
type SyncMode int

const (
	// SyncOnce pushes persisted values into the source and stops.
	SyncOnce SyncMode = iota
	// SyncMirror additionally pulls source changes back into settings and
	// pushes later setting changes into the source.
	SyncMirror
)

func (m SyncMode) String() string {
	switch m {
	case SyncOnce:
		return "once"
	case SyncMirror:
		return "mirror"
	default:
		return "unknown"
	}
}

// Source is the external state a Store is synchronized with.
type Source interface {
	// State returns a snapshot keyed by field name.
	State() map[string]any
	// OnStateChange registers fn for every committed change.
	OnStateChange(fn func(state map[string]any)) (cancel func())
}

// Directive binds one setting to a source field. Pull reads the field from a
// state snapshot; PullExpr is an alternative evaluated with the configured
// eval engine. Push writes a setting value into the source.
type Directive struct {
	Setting  string
	Push     func(ctx context.Context, value any) error
	Pull     func(state map[string]any) (any, error)
	PullExpr string
}

var (
	ErrSourceRequired = errors.New("settings: sync source is required")
	ErrPushRequired   = errors.New("settings: directive push is required")
)

// SyncOption configures a Sync call.
type SyncOption func(*syncConfig)

type syncConfig struct {
	mode      SyncMode
	evaluator eval.Evaluator
}

// WithSyncMode selects SyncOnce (default) or SyncMirror.
func WithSyncMode(mode SyncMode) SyncOption {
	return func(cfg *syncConfig) {
		cfg.mode = mode
	}
}

// WithEvaluator sets the engine used for PullExpr directives.
func WithEvaluator(evaluator eval.Evaluator) SyncOption {
	return func(cfg *syncConfig) {
		cfg.evaluator = evaluator
	}
}

// Binding is an established synchronization. Close releases its listeners.
type Binding struct {
	mode    SyncMode
	cancels []func()
	once    sync.Once
}

// Mode reports the binding's mode.
func (b *Binding) Mode() SyncMode {
	return b.mode
}

// Close detaches the binding from both the store and the source.
func (b *Binding) Close() {
	b.once.Do(func() {
		for _, cancel := range b.cancels {
			cancel()
		}
	})
}

type boundDirective struct {
	Directive
	program eval.Program
}

// Sync seeds source from persisted settings for every directive, in order.
func (s *Store) Sync(ctx context.Context, source Source, directives []Directive, opts ...SyncOption) (*Binding, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	cfg := syncConfig{mode: SyncOnce}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	bound := make([]boundDirective, 0, len(directives))
	for _, directive := range directives {
		if directive.Setting == "" {
			return nil, ErrNameRequired
		}
		if directive.Push == nil {
			return nil, fmt.Errorf("%w: %s", ErrPushRequired, directive.Setting)
		}
		entry := boundDirective{Directive: directive}
		if directive.Pull == nil && directive.PullExpr != "" {
			if cfg.evaluator == nil {
				cfg.evaluator = eval.NewExprEvaluator()
			}
			program, err := cfg.evaluator.Compile(directive.PullExpr)
			if err != nil {
				return nil, fmt.Errorf("settings: compile pull for %q: %w", directive.Setting, err)
			}
			entry.program = program
		}
		bound = append(bound, entry)
	}

	for _, directive := range bound {
		value := s.Get(directive.Setting)
		if IsUnset(value) {
			continue
		}
		if err := directive.Push(ctx, value); err != nil {
			return nil, fmt.Errorf("settings: seed %q: %w", directive.Setting, err)
		}
	}

	binding := &Binding{mode: cfg.mode}
	s.logger.Debug("settings.sync", slog.String("mode", cfg.mode.String()), slog.Int("directives", len(bound)))
	if cfg.mode != SyncMirror {
		return binding, nil
	}

	// listeners outlive the establishing call
	ctx = context.WithoutCancel(ctx)

	byName := make(map[string]boundDirective, len(bound))
	for _, directive := range bound {
		byName[directive.Setting] = directive
	}

	binding.cancels = append(binding.cancels, source.OnStateChange(func(state map[string]any) {
		for _, directive := range bound {
			value, ok, err := directive.pull(state)
			if err != nil {
				s.logger.Warn("settings.sync.pull", slog.String("name", directive.Setting), slog.String("error", err.Error()))
				continue
			}
			if !ok || reflect.DeepEqual(s.Get(directive.Setting), value) {
				continue
			}
			if err := s.Set(ctx, directive.Setting, value); err != nil {
				s.logger.Warn("settings.sync.persist", slog.String("name", directive.Setting), slog.String("error", err.Error()))
			}
		}
	}))

	binding.cancels = append(binding.cancels, s.OnChange(func(change Change) {
		directive, ok := byName[change.Name]
		if !ok {
			return
		}
		if current, ok, _ := directive.pull(source.State()); ok && reflect.DeepEqual(current, change.NewValue) {
			return
		}
		if err := directive.Push(ctx, change.NewValue); err != nil {
			s.logger.Warn("settings.sync.push", slog.String("name", change.Name), slog.String("error", err.Error()))
		}
	}))
	return binding, nil
}

func (d boundDirective) pull(state map[string]any) (any, bool, error) {
	switch {
	case d.Pull != nil:
		value, err := d.Pull(state)
		return value, err == nil, err
	case d.program != nil:
		value, err := d.program.Run(eval.Env{State: state, Setting: d.Setting})
		return value, err == nil, err
	default:
		return nil, false, nil
	}
}
