package eval

import (
	"context"
	"log/slog"
	"time"
)

// LogEvent describes one evaluation attempt.
type LogEvent struct {
	Engine   string
	Expr     string
	Setting  string
	Duration time.Duration
	Err      error
}

// Logger records evaluation attempts.
type Logger interface {
	LogEvaluation(LogEvent)
}

// LoggerFunc adapts a function to Logger.
type LoggerFunc func(LogEvent)

func (f LoggerFunc) LogEvaluation(event LogEvent) {
	if f != nil {
		f(event)
	}
}

// SlogLogger emits evaluation events at debug level, or warn on failure.
func SlogLogger(logger *slog.Logger) Logger {
	if logger == nil {
		return LoggerFunc(nil)
	}
	return LoggerFunc(func(event LogEvent) {
		level := slog.LevelDebug
		attrs := []slog.Attr{
			slog.String("engine", event.Engine),
			slog.String("expr", event.Expr),
			slog.String("setting", event.Setting),
			slog.Duration("duration", event.Duration),
		}
		if event.Err != nil {
			level = slog.LevelWarn
			attrs = append(attrs, slog.String("error", event.Err.Error()))
		}
		logger.LogAttrs(context.Background(), level, "eval.evaluate", attrs...)
	})
}

// WithLogger wraps next so every evaluation is timed and reported.
func WithLogger(next Evaluator, logger Logger) Evaluator {
	if next == nil || logger == nil {
		return next
	}
	return &loggedEvaluator{next: next, logger: logger}
}

type loggedEvaluator struct {
	next   Evaluator
	logger Logger
}

func (e *loggedEvaluator) Evaluate(env Env, expression string) (any, error) {
	start := time.Now()
	value, err := e.next.Evaluate(env, expression)
	e.logger.LogEvaluation(LogEvent{
		Engine:   EngineName(e.next),
		Expr:     expression,
		Setting:  env.Setting,
		Duration: time.Since(start),
		Err:      err,
	})
	return value, err
}

func (e *loggedEvaluator) Compile(expression string) (Program, error) {
	program, err := e.next.Compile(expression)
	if err != nil {
		return nil, err
	}
	return &loggedProgram{evaluator: e, next: program, expression: expression}, nil
}

type loggedProgram struct {
	evaluator  *loggedEvaluator
	next       Program
	expression string
}

func (p *loggedProgram) Run(env Env) (any, error) {
	start := time.Now()
	value, err := p.next.Run(env)
	p.evaluator.logger.LogEvaluation(LogEvent{
		Engine:   EngineName(p.evaluator.next),
		Expr:     p.expression,
		Setting:  env.Setting,
		Duration: time.Since(start),
		Err:      err,
	})
	return value, err
}
