package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// ProviderFactory builds a provider for a resolved model name. The
// registry resolves the model before the factory runs, so a factory
// never sees an empty one.
type ProviderFactory func(ctx context.Context, model string) (Provider, error)

type registration struct {
	defaultModel string
	factory      ProviderFactory
}

// Registry maps provider names to factories, each carrying the model to
// fall back to when a caller names none.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registration
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registration)}
}

// Register adds a provider under name. defaultModel is used whenever
// Get is called without an explicit model.
func (r *Registry) Register(name, defaultModel string, f ProviderFactory) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = registration{defaultModel: defaultModel, factory: f}
}

// Get builds a provider. An empty model falls back to the registered
// default; a registration with neither is an error.
func (r *Registry) Get(ctx context.Context, name string, model string) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	reg, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown ai provider: %s", name)
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = reg.defaultModel
	}
	if model == "" {
		return nil, fmt.Errorf("no model configured for ai provider %s", name)
	}
	return reg.factory(ctx, model)
}
