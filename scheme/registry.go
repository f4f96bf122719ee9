package scheme

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// InstanceID identifies one live webview instance. Backends obtain one per
// view they host and key registrations by it.
type InstanceID uint64

var instanceCounter atomic.Uint64

// NewInstance allocates a fresh instance id.
func NewInstance() InstanceID {
	return InstanceID(instanceCounter.Add(1))
}

// Registry maps (webview instance, scheme name) to a registered resolver and
// constructs the per-request snapshot/executor pair on dispatch. It is safe
// for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	resolvers map[InstanceID]map[string]Resolver
	logger    *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		resolvers: make(map[InstanceID]map[string]Resolver),
		logger:    logger,
	}
}

// Register binds a resolver for a scheme name on the given instance,
// replacing any previous binding. Schemes registered after a navigation is
// already in flight simply take effect on the next dispatch.
func (r *Registry) Register(inst InstanceID, name string, res Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.resolvers[inst]
	if !ok {
		m = make(map[string]Resolver)
		r.resolvers[inst] = m
	}
	m[name] = res
}

// Deregister removes the resolver for a scheme name on the given instance.
func (r *Registry) Deregister(inst InstanceID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.resolvers[inst]; ok {
		delete(m, name)
		if len(m) == 0 {
			delete(r.resolvers, inst)
		}
	}
}

// DeregisterInstance drops every registration for a destroyed instance.
func (r *Registry) DeregisterInstance(inst InstanceID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.resolvers, inst)
}

// Schemes returns the scheme names registered for an instance.
func (r *Registry) Schemes(inst InstanceID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m := r.resolvers[inst]
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	return names
}

// Lookup returns the resolver for (instance, scheme name), if registered.
func (r *Registry) Lookup(inst InstanceID, name string) (Resolver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.resolvers[inst]
	if !ok {
		return nil, false
	}
	res, ok := m[name]
	return res, ok
}

// Dispatch hands one intercepted request to its resolver, synchronously on
// the calling goroutine. The backend must already have admitted the native
// handle for id to its table. Dispatch reports false when no resolver is
// registered, in which case the caller declines the request and the toolkit
// falls back to its own unsupported-scheme behavior.
func (r *Registry) Dispatch(inst InstanceID, name string, req Request, be Backend, id string) bool {
	res, ok := r.Lookup(inst, name)
	if !ok {
		r.logger.Debug("no resolver registered, declining",
			"instance", uint64(inst),
			"scheme", name,
		)
		return false
	}

	r.logger.Debug("dispatching request",
		"instance", uint64(inst),
		"scheme", name,
		"request_id", id,
		"method", req.Method(),
		"url", req.URL(),
	)

	res(req, NewExecutor(id, be, r.logger))
	return true
}
