package config

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Tailen/brickblock/pipeline"
	"github.com/Tailen/brickblock/schema"
)

// Registry maps names to steps and schemas so that pipelines can be described
// by name in YAML and restored from snapshots. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	steps   map[string]pipeline.Step
	schemas map[string]schema.Schema
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		steps:   make(map[string]pipeline.Step),
		schemas: make(map[string]schema.Schema),
	}
}

// Register wraps raw with pipeline.Wrap and registers the resulting step.
func (r *Registry) Register(raw any) error {
	s, err := pipeline.Wrap(raw)
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	return r.RegisterStep(s)
}

// RegisterStep adds a step under its Name, overwriting any existing step with
// that name. The step's input and output schemas are registered as well.
func (r *Registry) RegisterStep(s pipeline.Step) error {
	if s == nil || s.Name() == "" {
		return errors.New("register step: step must have a name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sc := range []schema.Schema{s.InputSchema(), s.OutputSchema()} {
		if sc == nil {
			continue
		}
		if err := r.putSchema(sc); err != nil {
			return fmt.Errorf("register step %q: %w", s.Name(), err)
		}
	}
	r.steps[s.Name()] = s
	return nil
}

// RegisterSchema adds a schema under its Name. Registering a different schema
// under a name already in use is an error.
func (r *Registry) RegisterSchema(s schema.Schema) error {
	if s == nil {
		return errors.New("register schema: schema is nil")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.putSchema(s)
}

func (r *Registry) putSchema(s schema.Schema) error {
	if prev, ok := r.schemas[s.Name()]; ok && prev != s {
		return fmt.Errorf("schema name %q already bound to a different schema", s.Name())
	}
	r.schemas[s.Name()] = s
	return nil
}

// Step returns the step registered under name.
func (r *Registry) Step(name string) (pipeline.Step, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.steps[name]
	return s, ok
}

// MustStep returns the step for name, or panics if not found.
func (r *Registry) MustStep(name string) pipeline.Step {
	s, ok := r.Step(name)
	if !ok {
		panic(fmt.Sprintf("config: step %q not registered", name))
	}
	return s
}

// Schema returns the schema registered under name.
func (r *Registry) Schema(name string) (schema.Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[name]
	return s, ok
}

// Names returns all registered step names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.steps))
	for n := range r.steps {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
