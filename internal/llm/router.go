package llm

import (
	"context"
	"fmt"
	"time"
)

// EngineRouter maps engine names to gateway backends with a default engine
// used for calls that do not pick one explicitly. It satisfies Gateway itself,
// so pipelines can hold a router without knowing about engines.
type EngineRouter struct {
	backends map[string]Gateway
	def      string
}

// NewEngineRouter creates a router with registered backends and a default engine.
func NewEngineRouter(backends map[string]Gateway, def string) *EngineRouter {
	return &EngineRouter{backends: backends, def: def}
}

// Route returns the backend for the given engine name, falling back to the default.
func (r *EngineRouter) Route(engine string) (Gateway, error) {
	if backend, ok := r.backends[engine]; ok {
		return backend, nil
	}
	if backend, ok := r.backends[r.def]; ok {
		return backend, nil
	}
	return nil, fmt.Errorf("no llm backend for engine %q", engine)
}

// Has reports whether a backend is registered for the given engine name.
func (r *EngineRouter) Has(engine string) bool {
	_, ok := r.backends[engine]
	return ok
}

// Engines returns the names of all registered backends.
func (r *EngineRouter) Engines() []string {
	names := make([]string, 0, len(r.backends))
	for k := range r.backends {
		names = append(names, k)
	}
	return names
}

// Complete dispatches to the default engine.
func (r *EngineRouter) Complete(ctx context.Context, systemPrompt, userContent string, timeout time.Duration) (string, error) {
	backend, err := r.Route(r.def)
	if err != nil {
		return "", err
	}
	return backend.Complete(ctx, systemPrompt, userContent, timeout)
}
