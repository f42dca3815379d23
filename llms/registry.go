package llms

import (
	"fmt"

	"github.com/kestrelai/swarmkit/config"
	"github.com/kestrelai/swarmkit/registry"
)

// Factory builds a Provider from its configuration. Concrete providers
// register a Factory under their config.LLMProviderConfig.Type string.
type Factory func(cfg config.LLMProviderConfig) (Provider, error)

// Registry maps provider type strings ("openai", ...) to Factory
// functions, generalized via registry.BaseRegistry.
type Registry struct {
	factories *registry.BaseRegistry[Factory]
}

// NewRegistry constructs a Registry pre-populated with the bundled
// reference adapter.
func NewRegistry() *Registry {
	r := &Registry{factories: registry.NewBaseRegistry[Factory]()}
	_ = r.factories.Register("openai", func(cfg config.LLMProviderConfig) (Provider, error) {
		return NewOpenAIProvider(cfg), nil
	})
	return r
}

// RegisterFactory adds or overrides a provider factory for typeName.
func (r *Registry) RegisterFactory(typeName string, factory Factory) error {
	_ = r.factories.Remove(typeName)
	return r.factories.Register(typeName, factory)
}

// Build instantiates the Provider configured by cfg.
func (r *Registry) Build(cfg config.LLMProviderConfig) (Provider, error) {
	factory, ok := r.factories.Get(cfg.Type)
	if !ok {
		return nil, fmt.Errorf("llms: no provider factory registered for type %q", cfg.Type)
	}
	return factory(cfg)
}
