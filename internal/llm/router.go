package llm

import (
	"fmt"
	"sort"
	"sync"
)

// Router manages LLM providers and routing
type Router struct {
	providers       map[string]Provider
	factories       map[string]ProviderFactory
	defaultProvider string
	mu              sync.RWMutex
}

// NewRouter creates a new LLM router
func NewRouter(defaultProvider string) *Router {
	return &Router{
		providers:       make(map[string]Provider),
		factories:       make(map[string]ProviderFactory),
		defaultProvider: defaultProvider,
	}
}

// RegisterProvider registers an LLM provider
func (r *Router) RegisterProvider(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.Name()] = provider
}

// RegisterFactory registers a provider that is built on first use
func (r *Router) RegisterFactory(name string, factory ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// GetProvider returns a configured provider by name, or the default provider
// when name is empty
func (r *Router) GetProvider(name string) (Provider, error) {
	if name == "" {
		name = r.defaultProvider
	}

	r.mu.RLock()
	p, ok := r.providers[name]
	factory, hasFactory := r.factories[name]
	r.mu.RUnlock()

	if !ok && hasFactory {
		r.mu.Lock()
		p = r.build(name, factory)
		r.mu.Unlock()
		ok = true
	}

	if !ok {
		return nil, fmt.Errorf("provider not found: %s", name)
	}
	if !p.IsConfigured() {
		return nil, fmt.Errorf("provider not configured: %s", name)
	}
	return p, nil
}

// build returns the provider for name, running factory once. r.mu must be held.
func (r *Router) build(name string, factory ProviderFactory) Provider {
	if p, ok := r.providers[name]; ok {
		return p
	}
	p := factory()
	r.providers[name] = p
	return p
}

// buildPending materializes every factory that has not been used yet
func (r *Router) buildPending() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, factory := range r.factories {
		r.build(name, factory)
	}
}

// Default returns the default provider
func (r *Router) Default() (Provider, error) {
	return r.GetProvider("")
}

// DefaultProvider returns the default provider name
func (r *Router) DefaultProvider() string {
	return r.defaultProvider
}

// ListProviders returns the sorted names of configured providers
func (r *Router) ListProviders() []string {
	r.buildPending()

	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]string, 0, len(r.providers))
	for name, p := range r.providers {
		if p.IsConfigured() {
			providers = append(providers, name)
		}
	}
	sort.Strings(providers)
	return providers
}

// ProviderInfo contains information about an LLM provider
type ProviderInfo struct {
	Name       string `json:"name"`
	Model      string `json:"model"`
	Default    bool   `json:"default"`
	Configured bool   `json:"configured"`
}

// GetProvidersInfo returns information about all registered providers
func (r *Router) GetProvidersInfo() []ProviderInfo {
	r.buildPending()

	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ProviderInfo, 0, len(r.providers))
	for name, p := range r.providers {
		infos = append(infos, ProviderInfo{
			Name:       name,
			Model:      p.DefaultModel(),
			Default:    name == r.defaultProvider,
			Configured: p.IsConfigured(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}
