package proxyconfig

import "sync"

// Registry holds the active default configuration. Reads never clear it.
type Registry struct {
	mu     sync.RWMutex
	active *Configuration
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// SetActive replaces the active default. Passing nil clears it.
func (r *Registry) SetActive(cfg *Configuration) {
	r.mu.Lock()
	r.active = cfg.Clone()
	r.mu.Unlock()
}

// Active returns a copy of the active default, or nil.
func (r *Registry) Active() *Configuration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active.Clone()
}

// Resolve resolves explicit against the registry and the built-in fallback.
func (r *Registry) Resolve(explicit *Configuration) (*Configuration, Trace, error) {
	return ResolveWithTrace(explicit, r.Active(), Builtin())
}
