package viewer

import (
	"strings"
	"sync"

	"github.com/goliatone/go-viewer/navigation"
	"github.com/goliatone/go-viewer/proxyconfig"
	"github.com/goliatone/go-viewer/settings"
)

// Environment is the page-wide context sessions share: the active proxy
// configuration, the navigation history, the current location and the
// default settings backend.
type Environment struct {
	Registry *proxyconfig.Registry
	History  navigation.History
	// Location returns the current URL or bare query string.
	Location func() string
	// Settings is used when a session is not given a backend.
	Settings settings.Backend
}

// NewEnvironment returns an isolated environment with in-memory history and
// settings and an empty location.
func NewEnvironment() *Environment {
	return &Environment{
		Registry: proxyconfig.NewRegistry(),
		History:  navigation.NewMemoryHistory(),
		Location: func() string { return "" },
		Settings: settings.NewMemoryBackend(),
	}
}

var defaultEnvironment = sync.OnceValue(NewEnvironment)

// DefaultEnvironment returns the process-wide environment.
func DefaultEnvironment() *Environment {
	return defaultEnvironment()
}

// SetActiveProxyConfiguration registers cfg as the active default of the
// default environment. Sessions created afterwards without an explicit
// configuration use it. Passing nil clears it.
func SetActiveProxyConfiguration(cfg *proxyconfig.Configuration) {
	DefaultEnvironment().SetActiveProxyConfiguration(cfg)
}

// SetActiveProxyConfiguration registers cfg as this environment's active
// default.
func (e *Environment) SetActiveProxyConfiguration(cfg *proxyconfig.Configuration) {
	e.Registry.SetActive(cfg)
}

func (e *Environment) withDefaults() *Environment {
	out := *e
	if out.Registry == nil {
		out.Registry = proxyconfig.NewRegistry()
	}
	if out.History == nil {
		out.History = navigation.NewMemoryHistory()
	}
	if out.Location == nil {
		out.Location = func() string { return "" }
	}
	if out.Settings == nil {
		out.Settings = settings.NewMemoryBackend()
	}
	return &out
}

// rawQuery extracts the query from the current location. A value without a
// scheme or "?" is taken to be the query itself.
func (e *Environment) rawQuery() string {
	location := e.Location()
	if idx := strings.IndexByte(location, '?'); idx >= 0 {
		location = location[idx+1:]
	} else if strings.Contains(location, "://") || strings.HasPrefix(location, "/") {
		return ""
	}
	if idx := strings.IndexByte(location, '#'); idx >= 0 {
		location = location[:idx]
	}
	return location
}
