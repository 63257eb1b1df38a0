package llm

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/soyeahso/sprout/internal/config"
	"github.com/soyeahso/sprout/internal/logging"
)

// Registry maps model names onto provider clients. Resolve tries, in
// order: the provider registered under that exact name, an alias, the
// longest matching prefix, and the fallback provider.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]Client
	aliases  map[string]string
	prefixes map[string]string
	fallback string
	log      *logging.Logger
}

func NewRegistry(log *logging.Logger) *Registry {
	return &Registry{
		clients:  map[string]Client{},
		aliases:  map[string]string{},
		prefixes: map[string]string{},
		log:      log.Sub("llm"),
	}
}

func (r *Registry) Register(name string, client Client) {
	r.mu.Lock()
	r.clients[name] = client
	r.mu.Unlock()
	r.log.Info().Str("provider", name).Msg("model provider registered")
}

// Alias routes one exact model name to provider.
func (r *Registry) Alias(model, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[model] = provider
}

// Prefix routes model names beginning with prefix to provider.
func (r *Registry) Prefix(prefix, provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes[prefix] = provider
}

func (r *Registry) SetFallback(provider string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = provider
}

// candidates lists provider names for model, most specific first.
func (r *Registry) candidates(model string) []string {
	names := []string{model, r.aliases[model]}
	var best string
	for prefix := range r.prefixes {
		if len(prefix) > len(best) && strings.HasPrefix(model, prefix) {
			best = prefix
		}
	}
	if best != "" {
		names = append(names, r.prefixes[best])
	}
	return append(names, r.fallback)
}

func (r *Registry) Resolve(model string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.candidates(model) {
		if c, ok := r.clients[name]; ok && name != "" {
			return c, nil
		}
	}
	return nil, fmt.Errorf("no model provider for %q", model)
}

// List returns the registered provider names in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.clients))
}

// NewRegistryFromConfig builds a Registry for the configured provider.
// The "mock" provider answers every request with a canned reply and is
// meant for offline demos and smoke tests.
func NewRegistryFromConfig(cfg config.ModelConfig, log *logging.Logger) *Registry {
	reg := NewRegistry(log)

	switch cfg.Provider {
	case "mock":
		reg.Register("mock", &MockClient{ProviderName: "mock"})
		reg.SetFallback("mock")
	default:
		if cfg.APIKey == "" {
			reg.log.Warn().Msg("no API key configured; claude provider not registered")
			return reg
		}
		reg.Register("claude", NewClaudeAPIClient(cfg.APIKey, cfg.Model, cfg.Endpoint))
		reg.Prefix("claude-", "claude")
		reg.SetFallback("claude")
		for _, alias := range []string{"sonnet", "opus", "haiku"} {
			reg.Alias(alias, "claude")
		}
	}
	return reg
}
