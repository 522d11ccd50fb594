package activity

import (
	"context"
	"log/slog"
	"strings"
)

// DefaultChannel is stamped on events that do not name one.
const DefaultChannel = "viewer"

// Config controls emission.
type Config struct {
	Enabled bool
	Channel string
}

// Emitter applies defaults and forwards events to hooks. A nil Emitter is
// valid and drops everything.
type Emitter struct {
	hooks   Hooks
	enabled bool
	channel string
	logger  *slog.Logger
}

// NewEmitter builds an emitter. Emission is on only when cfg.Enabled is set
// and at least one non-nil hook is given.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	kept := make(Hooks, 0, len(hooks))
	for _, hook := range hooks {
		if hook != nil {
			kept = append(kept, hook)
		}
	}
	return &Emitter{
		hooks:   kept,
		enabled: cfg.Enabled && len(kept) > 0,
		channel: channel,
		logger:  slog.New(slog.DiscardHandler),
	}
}

// WithLogger returns the emitter after setting the logger used for hook
// failures in Publish.
func (e *Emitter) WithLogger(logger *slog.Logger) *Emitter {
	if e != nil && logger != nil {
		e.logger = logger
	}
	return e
}

// Enabled reports whether Emit does anything.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled
}

// Channel returns the default channel.
func (e *Emitter) Channel() string {
	if e == nil {
		return DefaultChannel
	}
	return e.channel
}

// Emit forwards the event and returns hook errors.
func (e *Emitter) Emit(ctx context.Context, event Event) error {
	if !e.Enabled() {
		return nil
	}
	if strings.TrimSpace(event.Channel) == "" {
		event.Channel = e.channel
	}
	return e.hooks.Notify(ctx, event)
}

// Publish emits from observer callbacks that have no error path; failures
// are logged.
func (e *Emitter) Publish(ctx context.Context, event Event) {
	if err := e.Emit(ctx, event); err != nil {
		e.logger.Warn("activity.publish.failed", slog.String("verb", event.Verb), slog.Any("error", err))
	}
}
