package urlargs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/goliatone/go-viewer/eval"
)

const (
	// SettingPrefix marks query keys that assign settings.
	SettingPrefix = "setting."
	// GroupResourcesFromURL labels the batched load request.
	GroupResourcesFromURL = "resources from url"

	KeyName = "name"
	KeyURL  = "url"
)

// Resource is one dataset to load remotely.
type Resource struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// SettingSetter receives setting assignments.
type SettingSetter interface {
	Set(ctx context.Context, name string, value any) error
}

// Loader starts a batched remote load. Implementations should return once
// the work is dispatched; completion is not tracked by the caller.
type Loader interface {
	LoadRemotes(ctx context.Context, group string, resources []Resource) error
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, group string, resources []Resource) error

func (f LoaderFunc) LoadRemotes(ctx context.Context, group string, resources []Resource) error {
	return f(ctx, group, resources)
}

// Result summarises one Process call.
type Result struct {
	Settings  map[string]any
	Resources []Resource
	Dropped   int
}

var ErrSettingsRequired = errors.New("urlargs: setting setter is required")

// Processor applies query parameters.
type Processor struct {
	settings SettingSetter
	loader   Loader
	logger   *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithLoader sets the dataset loader. Without one, resources are reported in
// the Result but not dispatched.
func WithLoader(loader Loader) Option {
	return func(p *Processor) {
		p.loader = loader
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProcessor builds a Processor.
func NewProcessor(settings SettingSetter, opts ...Option) (*Processor, error) {
	if settings == nil {
		return nil, ErrSettingsRequired
	}
	p := &Processor{settings: settings, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p, nil
}

// Process parses rawQuery and applies it. Every call re-issues the load
// request; setting assignments are idempotent.
func (p *Processor) Process(ctx context.Context, rawQuery string) (Result, error) {
	params := Parse(rawQuery)
	result := Result{Settings: map[string]any{}}

	for _, key := range params.Keys() {
		name, ok := strings.CutPrefix(key, SettingPrefix)
		if !ok || name == "" {
			continue
		}
		param, _ := params.Get(key)
		value := param.Value()
		if err := p.settings.Set(ctx, name, value); err != nil {
			return result, fmt.Errorf("urlargs: set %q: %w", name, err)
		}
		result.Settings[name] = value
	}

	result.Resources, result.Dropped = Pair(params)
	if len(result.Resources) == 0 {
		return result, nil
	}
	if result.Dropped > 0 {
		p.logger.Warn("urlargs.pair.truncated", slog.Int("paired", len(result.Resources)), slog.Int("dropped", result.Dropped))
	}
	if p.loader == nil {
		return result, nil
	}
	p.logger.Info("urlargs.load", slog.String("group", GroupResourcesFromURL), slog.Int("count", len(result.Resources)))
	if err := p.loader.LoadRemotes(ctx, GroupResourcesFromURL, result.Resources); err != nil {
		return result, fmt.Errorf("urlargs: load remotes: %w", err)
	}
	return result, nil
}

// Pair zips the name and url parameters, stopping at the shorter sequence.
// dropped counts the unmatched entries of the longer one. Nothing is paired
// unless both parameters carry a truthy value, so "?name=&url=x" loads
// nothing.
func Pair(params Params) (resources []Resource, dropped int) {
	nameParam, okName := params.Get(KeyName)
	urlParam, okURL := params.Get(KeyURL)
	if !okName || !okURL || !eval.Truthy(nameParam.Value()) || !eval.Truthy(urlParam.Value()) {
		return nil, 0
	}
	names := nameParam.Strings()
	urls := urlParam.Strings()

	n := min(len(names), len(urls))
	resources = make([]Resource, 0, n)
	for i := 0; i < n; i++ {
		resources = append(resources, Resource{Name: names[i], URL: urls[i]})
	}
	return resources, max(len(names), len(urls)) - n
}
