package viewer

import (
	"context"
	"sync"

	"github.com/goliatone/go-viewer/proxyconfig"
	"github.com/goliatone/go-viewer/urlargs"
	"github.com/goliatone/go-viewer/viewstate"
)

// ProxyManager is the rendering subsystem a session drives. The session only
// needs the configuration it was built from; UI code reaches the concrete
// type through the view-state store dependencies.
type ProxyManager interface {
	Configuration() *proxyconfig.Configuration
}

// ProxyManagerFactory instantiates a proxy manager from a resolved
// configuration.
type ProxyManagerFactory func(ctx context.Context, cfg *proxyconfig.Configuration) (ProxyManager, error)

// UIRoot is the mounted UI tree. AutoLoadRemotes is its remote-loading entry
// point; it starts the loads and returns without waiting for them.
type UIRoot interface {
	AutoLoadRemotes(ctx context.Context, group string, resources []urlargs.Resource) error
}

// Mounter attaches a UI root to a host container.
type Mounter interface {
	Mount(ctx context.Context, container any, store *viewstate.Store) (UIRoot, error)
}

// MounterFunc adapts a function to Mounter.
type MounterFunc func(ctx context.Context, container any, store *viewstate.Store) (UIRoot, error)

func (f MounterFunc) Mount(ctx context.Context, container any, store *viewstate.Store) (UIRoot, error) {
	return f(ctx, container, store)
}

// HeadlessProxyManager keeps the configuration and nothing else. It is the
// default when no factory is supplied.
type HeadlessProxyManager struct {
	cfg *proxyconfig.Configuration
}

// NewHeadlessProxyManager is a ProxyManagerFactory.
func NewHeadlessProxyManager(_ context.Context, cfg *proxyconfig.Configuration) (ProxyManager, error) {
	return &HeadlessProxyManager{cfg: cfg.Clone()}, nil
}

func (m *HeadlessProxyManager) Configuration() *proxyconfig.Configuration {
	return m.cfg.Clone()
}

// LoadRequest is one AutoLoadRemotes call seen by a HeadlessRoot.
type LoadRequest struct {
	Group     string
	Resources []urlargs.Resource
}

// HeadlessRoot records load requests instead of rendering.
type HeadlessRoot struct {
	Container any
	Store     *viewstate.Store

	mu       sync.Mutex
	requests []LoadRequest
}

func (r *HeadlessRoot) AutoLoadRemotes(_ context.Context, group string, resources []urlargs.Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, LoadRequest{Group: group, Resources: append([]urlargs.Resource(nil), resources...)})
	return nil
}

// Requests returns the recorded load requests.
func (r *HeadlessRoot) Requests() []LoadRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]LoadRequest(nil), r.requests...)
}

// HeadlessMounter mounts a HeadlessRoot. It is the default Mounter.
type HeadlessMounter struct{}

func (HeadlessMounter) Mount(_ context.Context, container any, store *viewstate.Store) (UIRoot, error) {
	return &HeadlessRoot{Container: container, Store: store}, nil
}
