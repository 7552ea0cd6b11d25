package providers

import (
	"errors"
	"sort"
	"sync"
)

var (
	// ErrProviderNotFound is returned when a provider is not registered
	ErrProviderNotFound = errors.New("provider not found")

	// ErrProviderAlreadyRegistered is returned when trying to register a duplicate provider
	ErrProviderAlreadyRegistered = errors.New("provider already registered")
)

// Registry manages provider instances by name
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	primary   string
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// RegisterProvider registers a provider instance. The first registered provider is primary.
func (r *Registry) RegisterProvider(provider Provider) error {
	if provider == nil {
		return errors.New("provider cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := provider.Name()
	if name == "" {
		return errors.New("provider name cannot be empty")
	}
	if _, exists := r.providers[name]; exists {
		return ErrProviderAlreadyRegistered
	}

	r.providers[name] = provider
	if r.primary == "" {
		r.primary = name
	}
	return nil
}

// GetProvider retrieves a provider by name
func (r *Registry) GetProvider(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[name]
	if !exists {
		return nil, ErrProviderNotFound
	}
	return provider, nil
}

// Primary returns the first registered provider
func (r *Registry) Primary() (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.primary == "" {
		return nil, ErrProviderNotFound
	}
	return r.providers[r.primary], nil
}

// ListProviders returns all registered provider names, sorted
func (r *Registry) ListProviders() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
