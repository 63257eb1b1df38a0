package plugin

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/soyeahso/sprout/internal/hooks"
	"github.com/soyeahso/sprout/internal/logging"
)

type entry struct {
	plugin  Plugin
	started bool
}

// Registry owns the plugin lifecycle: Init in registration order, Close in
// reverse.
type Registry struct {
	mu      sync.Mutex
	entries []*entry
	hooks   *hooks.Manager
	log     *logging.Logger
}

func NewRegistry(hm *hooks.Manager, log *logging.Logger) *Registry {
	return &Registry{hooks: hm, log: log.Sub("plugins")}
}

func (r *Registry) find(id string) *entry {
	i := slices.IndexFunc(r.entries, func(e *entry) bool { return e.plugin.ID() == id })
	if i < 0 {
		return nil
	}
	return r.entries[i]
}

// Register queues p for InitAll. IDs must be unique.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.find(p.ID()) != nil {
		return fmt.Errorf("plugin %s already registered", p.ID())
	}
	r.entries = append(r.entries, &entry{plugin: p})
	r.log.Debug().Str("id", p.ID()).Msg("plugin registered")
	return nil
}

// InitAll starts every plugin not yet running. On the first failure the
// running plugins are stopped again.
func (r *Registry) InitAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.started {
			continue
		}
		id := e.plugin.ID()
		if err := e.plugin.Init(ctx, API{Hooks: r.hooks, Log: r.log.With("plugin", id)}); err != nil {
			r.stopAll()
			return fmt.Errorf("init plugin %s: %w", id, err)
		}
		e.started = true
		r.log.Info().Str("id", id).Msg("plugin started")
	}
	return nil
}

func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopAll()
}

func (r *Registry) stopAll() {
	for _, e := range slices.Backward(r.entries) {
		if !e.started {
			continue
		}
		e.started = false
		if err := e.plugin.Close(); err != nil {
			r.log.Error().Err(err).Str("id", e.plugin.ID()).Msg("plugin close failed")
		}
	}
}

// Get returns the plugin registered as id, or nil.
func (r *Registry) Get(id string) Plugin {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e := r.find(id); e != nil {
		return e.plugin
	}
	return nil
}

// Info is the status line reported for one plugin.
type Info struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Started     bool   `json:"started"`
}

func (r *Registry) Info() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Info, len(r.entries))
	for i, e := range r.entries {
		out[i] = Info{ID: e.plugin.ID(), Description: e.plugin.Description(), Started: e.started}
	}
	return out
}
