// Package provider defines the adapter contract for recognition backends and
// the registry that holds them in priority order.
package provider

import (
	"context"
	"sync"

	"github.com/pocketledger/expense-cli/internal/model"
)

// Request is the canonical recognition request handed to an adapter. Payload
// carries raw image bytes, raw audio bytes, or UTF-8 text depending on the
// input method; adapters encode it (e.g. base64 data URI) as their wire
// format requires.
type Request struct {
	Method  model.InputMethod
	Payload []byte
}

// Text returns the payload as a string, for text-bearing input methods.
func (r Request) Text() string {
	return string(r.Payload)
}

// Provider is the common contract every backend adapter implements. Handle
// must be safe for concurrent use; adapters hold no per-call mutable state.
type Provider interface {
	// Name returns the provider identifier used in config and routing.
	Name() string
	// Descriptor returns the static metadata for this provider.
	Descriptor() model.ProviderDescriptor
	// Handle translates the request into the provider's wire format, calls
	// the backend, and coerces the reply into the standardized shape.
	// Failures are always a *Error.
	Handle(ctx context.Context, req Request) (*model.StandardizedResult, error)
}

// Registry holds the registered providers. It is populated once at startup
// from credential configuration and read-only afterwards; registration order
// is priority order.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]Provider
	ordered []Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Provider)}
}

// Register adds a provider. Later registrations of the same name replace the
// earlier one but keep its priority position.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[p.Name()]; !exists {
		r.ordered = append(r.ordered, p)
	} else {
		for i, existing := range r.ordered {
			if existing.Name() == p.Name() {
				r.ordered[i] = p
				break
			}
		}
	}
	r.byName[p.Name()] = p
}

// Get returns a provider by name, or nil.
func (r *Registry) Get(name string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[name]
}

// List returns all providers in priority order.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Capable returns the providers supporting the given input method, in
// priority order.
func (r *Registry) Capable(m model.InputMethod) []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Provider
	for _, p := range r.ordered {
		if p.Descriptor().Supports(m) {
			out = append(out, p)
		}
	}
	return out
}

// Descriptors returns the static metadata for every registered provider, in
// priority order.
func (r *Registry) Descriptors() []model.ProviderDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.ProviderDescriptor, 0, len(r.ordered))
	for _, p := range r.ordered {
		out = append(out, p.Descriptor())
	}
	return out
}
