package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Tailen/brickblock/pipeline"
)

// BuildPipeline builds a pipeline.Pipeline from config and registry. Step and
// schema names in config must be registered. opts are applied after the
// config's own mode and id, so a caller may add a logger or observer.
func BuildPipeline(reg *Registry, cfg *PipelineConfig, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	mode, err := pipeline.ParseMode(cfg.Mode)
	if err != nil {
		return nil, err
	}
	all := []pipeline.Option{pipeline.WithMode(mode)}
	if cfg.ID != "" {
		all = append(all, pipeline.WithID(cfg.ID))
	}
	p := pipeline.New(cfg.Name, append(all, opts...)...)

	if cfg.Input != "" {
		s, ok := reg.Schema(cfg.Input)
		if !ok {
			return nil, fmt.Errorf("input schema %q not in registry", cfg.Input)
		}
		p.WithInputSchema(s)
	}
	if cfg.Output != "" {
		s, ok := reg.Schema(cfg.Output)
		if !ok {
			return nil, fmt.Errorf("output schema %q not in registry", cfg.Output)
		}
		p.WithOutputSchema(s)
	}

	units := make([]any, 0, len(cfg.Steps))
	for i, ref := range cfg.Steps {
		if ref.Name == "" {
			return nil, fmt.Errorf("step %d: name required", i)
		}
		step, ok := reg.Step(ref.Name)
		if !ok {
			return nil, fmt.Errorf("step %d: %q not in registry", i, ref.Name)
		}
		if ref.Label != "" {
			if step, err = withLabel(step, ref.Label); err != nil {
				return nil, fmt.Errorf("step %d (%q): %w", i, ref.Name, err)
			}
		}
		units = append(units, step)
	}
	if err := p.Append(units...); err != nil {
		return nil, fmt.Errorf("append steps: %w", err)
	}
	return p, nil
}

func withLabel(s pipeline.Step, label string) (pipeline.Step, error) {
	switch v := s.(type) {
	case *pipeline.FunctionStep:
		return v.WithLabel(label), nil
	case *pipeline.ModuleStep:
		return v.WithLabel(label), nil
	}
	return nil, fmt.Errorf("%T does not support labels", s)
}

// BuildAllPipelines builds a pipeline.Pipeline for each entry in multi. Keys are pipeline names.
// If a pipeline config's Name is empty, the map key is used as the pipeline name.
func BuildAllPipelines(reg *Registry, multi *MultiPipelineConfig, opts ...pipeline.Option) (map[string]*pipeline.Pipeline, error) {
	if multi == nil {
		return nil, errors.New("MultiPipelineConfig is nil")
	}
	keys := make([]string, 0, len(multi.Pipelines))
	for k := range multi.Pipelines {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]*pipeline.Pipeline, len(keys))
	for _, name := range keys {
		cfg := multi.Pipelines[name]
		if cfg.Name == "" {
			cfg.Name = name
		}
		p, err := BuildPipeline(reg, &cfg, opts...)
		if err != nil {
			return nil, fmt.Errorf("pipeline %q: %w", name, err)
		}
		out[name] = p
	}
	return out, nil
}
