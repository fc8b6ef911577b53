// Package provider holds the live directory of backend provider plugins
// and the protocol translation layer that converts universal tool
// descriptions to and from each backend's native function-calling format.
package provider

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/quilltap/quilltap/pkg/plugin"
)

// Sentinel errors for registry preconditions. Duplicate registration and
// asking for a capability a provider does not have are caller bugs, not
// runtime conditions to recover from.
var (
	ErrAlreadyRegistered  = errors.New("provider already registered")
	ErrNotRegistered      = errors.New("provider not registered")
	ErrNoImageCapability  = errors.New("provider does not declare image generation")
	ErrNoImageFactory     = errors.New("provider does not implement an image backend factory")
	ErrNoEmbeddingFactory = errors.New("provider does not implement an embedding backend factory")
)

// BackendCapability selects providers by what their backends can do.
type BackendCapability string

const (
	BackendChat            BackendCapability = "chat"
	BackendImageGeneration BackendCapability = "image-generation"
	BackendEmbeddings      BackendCapability = "embeddings"
	BackendWebSearch       BackendCapability = "web-search"
)

// Registry is the process-wide directory of provider plugins. Unlike the
// plugin registry it holds live factory objects, registered exactly once at
// startup from the fixed list of available providers.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]plugin.Provider
	regErrors map[string]string
	logger    *slog.Logger
}

// NewRegistry returns an empty provider registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		providers: make(map[string]plugin.Provider),
		regErrors: make(map[string]string),
		logger:    logger,
	}
}

// Register adds one provider. Registering the same key twice is a
// programming error and is reported as such.
func (r *Registry) Register(p plugin.Provider) error {
	key := p.Metadata().Key
	if key == "" {
		return fmt.Errorf("provider has empty metadata key")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[key]; exists {
		return fmt.Errorf("%w: %q", ErrAlreadyRegistered, key)
	}
	r.providers[key] = p
	r.logger.Info("registered provider", "key", key)
	return nil
}

// Initialize clears the registry and registers each provider in turn.
// Failures are recorded per provider instead of aborting the batch,
// mirroring the scanner's isolation policy.
func (r *Registry) Initialize(providers []plugin.Provider) {
	r.mu.Lock()
	r.providers = make(map[string]plugin.Provider, len(providers))
	r.regErrors = make(map[string]string)
	r.mu.Unlock()

	for _, p := range providers {
		if err := r.Register(p); err != nil {
			key := p.Metadata().Key
			r.logger.Error("provider registration failed", "key", key, "error", err)
			r.mu.Lock()
			r.regErrors[key] = err.Error()
			r.mu.Unlock()
		}
	}
}

// Has reports whether the named provider is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.providers[name]
	return ok
}

// Get returns the named provider plugin.
func (r *Registry) Get(name string) (plugin.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Names returns all registered provider keys, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Metadata returns the named provider's metadata.
func (r *Registry) Metadata(name string) (plugin.ProviderMetadata, bool) {
	p, ok := r.Get(name)
	if !ok {
		return plugin.ProviderMetadata{}, false
	}
	return p.Metadata(), true
}

// Capabilities returns the named provider's capability flags.
func (r *Registry) Capabilities(name string) (plugin.ProviderCapabilities, bool) {
	p, ok := r.Get(name)
	if !ok {
		return plugin.ProviderCapabilities{}, false
	}
	return p.Capabilities(), true
}

// AttachmentSupport returns the named provider's attachment support record.
func (r *Registry) AttachmentSupport(name string) (plugin.AttachmentSupport, bool) {
	p, ok := r.Get(name)
	if !ok {
		return plugin.AttachmentSupport{}, false
	}
	return p.AttachmentSupport(), true
}

// ConfigRequirements returns what the named provider needs configured.
func (r *Registry) ConfigRequirements(name string) (plugin.ConfigRequirements, bool) {
	p, ok := r.Get(name)
	if !ok {
		return plugin.ConfigRequirements{}, false
	}
	return p.ConfigRequirements(), true
}

// ByCapability returns metadata for every provider whose backends support
// the capability, sorted by key.
func (r *Registry) ByCapability(c BackendCapability) []plugin.ProviderMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []plugin.ProviderMetadata
	for _, p := range r.providers {
		caps := p.Capabilities()
		match := false
		switch c {
		case BackendChat:
			match = caps.Chat
		case BackendImageGeneration:
			match = caps.ImageGeneration
		case BackendEmbeddings:
			match = caps.Embeddings
		case BackendWebSearch:
			match = caps.WebSearch
		}
		if match {
			out = append(out, p.Metadata())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// ImageConstraints returns the named provider's image generation limits,
// or nil when the provider is unknown, lacks the capability, or does not
// publish constraints. It never returns an error.
func (r *Registry) ImageConstraints(name string) *plugin.ImageConstraints {
	p, ok := r.Get(name)
	if !ok || !p.Capabilities().ImageGeneration {
		return nil
	}
	constrained, ok := p.(plugin.ImageConstrained)
	if !ok {
		return nil
	}
	return constrained.ImageConstraints()
}

// NewChatBackend instantiates a chat backend from the named provider.
func (r *Registry) NewChatBackend(name, baseURL string) (plugin.ChatBackend, error) {
	p, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	return p.NewChatBackend(baseURL)
}

// NewImageBackend instantiates an image backend. The provider must both
// declare the image-generation capability and implement the image factory;
// the two preconditions fail with distinct errors.
func (r *Registry) NewImageBackend(name, baseURL string) (plugin.ImageBackend, error) {
	p, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	if !p.Capabilities().ImageGeneration {
		return nil, fmt.Errorf("%w: %q", ErrNoImageCapability, name)
	}
	factory, ok := p.(plugin.ImageFactory)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoImageFactory, name)
	}
	return factory.NewImageBackend(baseURL)
}

// NewEmbeddingBackend instantiates an embedding backend from providers
// that implement the optional embedding factory.
func (r *Registry) NewEmbeddingBackend(name, baseURL string) (plugin.EmbeddingBackend, error) {
	p, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	factory, ok := p.(plugin.EmbeddingFactory)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoEmbeddingFactory, name)
	}
	return factory.NewEmbeddingBackend(baseURL)
}

// RegistrationErrors returns per-provider failures from the last
// Initialize call.
func (r *Registry) RegistrationErrors() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.regErrors))
	for k, v := range r.regErrors {
		out[k] = v
	}
	return out
}
