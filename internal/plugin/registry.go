package plugin

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/logstash-plugins/go-output-example/internal/config"
)

// Registration describes a registered output.
type Registration struct {
	Name        string
	Description string
	Schema      []config.Setting
	Factory     Factory
}

// Registry maps output names to their factories. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	outputs map[string]Registration
}

// DefaultRegistry is the registry outputs add themselves to from init.
var DefaultRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{outputs: make(map[string]Registration)}
}

// RegisterOutput makes an output available by name.
// It panics if name is empty, factory is nil or name is already taken.
func (r *Registry) RegisterOutput(name, description string, schema []config.Setting, factory Factory) {
	if name == "" {
		panic("plugin: RegisterOutput with empty name")
	}
	if factory == nil {
		panic("plugin: RegisterOutput factory is nil for " + name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.outputs[name]; dup {
		panic("plugin: RegisterOutput called twice for " + name)
	}
	r.outputs[name] = Registration{
		Name:        name,
		Description: description,
		Schema:      slices.Clone(schema),
		Factory:     factory,
	}
}

// Lookup returns the registration for name.
func (r *Registry) Lookup(name string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.outputs[name]
	return reg, ok
}

// Names returns every registered output name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.outputs))
}

// New validates cfg against the output's schema and constructs it.
// An empty ctx.ID is replaced with a generated one.
func (r *Registry) New(name string, cfg *config.Configuration, ctx Context) (Output, error) {
	reg, ok := r.Lookup(name)
	if !ok {
		return nil, &config.ConfigurationError{
			Setting: "output.type",
			Reason:  fmt.Sprintf("no output registered as %q", name),
		}
	}
	if err := config.Validate(cfg, reg.Schema); err != nil {
		return nil, fmt.Errorf("plugin: %s: %w", name, err)
	}
	if ctx.ID == "" {
		ctx.ID = uuid.NewString()
	}
	out, err := reg.Factory(cfg, ctx)
	if err != nil {
		return nil, fmt.Errorf("plugin: %s: %w", name, err)
	}
	return out, nil
}

// RegisterOutput registers an output in DefaultRegistry.
func RegisterOutput(name, description string, schema []config.Setting, factory Factory) {
	DefaultRegistry.RegisterOutput(name, description, schema, factory)
}
