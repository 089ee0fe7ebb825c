package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/Tailen/brickblock/schema"
)

// Module is a progress-reporting unit of work. OnProgressStart is called with
// the step input before Run, OnProgressEnd with the step output after it; the
// returned strings are human-readable progress messages.
type Module interface {
	OnProgressStart(ctx context.Context, input any) (string, error)
	Run(ctx context.Context, input any) (any, error)
	OnProgressEnd(ctx context.Context, output any) (string, error)
}

// ModuleFactory creates a fresh Module for each invocation of a step.
type ModuleFactory func() Module

// ModuleStep is the step variant used by module-mode pipelines.
type ModuleStep struct {
	name    string
	label   string
	in      schema.Schema
	out     schema.Schema
	factory ModuleFactory
}

// NewModuleStep returns a module step whose modules are built by factory.
func NewModuleStep(name string, in, out schema.Schema, factory ModuleFactory) *ModuleStep {
	return &ModuleStep{name: name, in: in, out: out, factory: factory}
}

// WithLabel returns a copy of the step with a display label.
func (s *ModuleStep) WithLabel(label string) *ModuleStep {
	c := *s
	c.label = label
	return &c
}

func (s *ModuleStep) Kind() Kind { return KindModule }
func (s *ModuleStep) Name() string { return s.name }
func (s *ModuleStep) InputSchema() schema.Schema { return s.in }
func (s *ModuleStep) OutputSchema() schema.Schema { return s.out }

func (s *ModuleStep) Label() string {
	if s.label != "" {
		return s.label
	}
	return s.name
}

var errNilModule = errors.New("module factory returned nil")

// Instantiate creates the module for one invocation.
func (s *ModuleStep) Instantiate() (Module, error) {
	if s.factory == nil {
		return nil, errNilModule
	}
	m := s.factory()
	if m == nil {
		return nil, errNilModule
	}
	return m, nil
}

// violation describes why the step does not satisfy the module contract, or
// returns "" when it does.
func (s *ModuleStep) violation() string {
	switch {
	case s == nil:
		return "step is nil"
	case s.factory == nil:
		return "no module factory"
	case s.in == nil || s.out == nil:
		return "input and output schemas must be declared"
	}
	return ""
}

// finish reconstructs a plain mapping returned by Run into the output schema.
func (s *ModuleStep) finish(out any) (any, error) {
	m, ok := out.(map[string]any)
	if !ok {
		return out, nil
	}
	v, err := s.out.New(m)
	if err != nil {
		return nil, TypeErr(fmt.Errorf("%s: %w", s.Label(), err))
	}
	return v, nil
}

// Blocking runs a fresh module through its hooks and Run, discarding the
// progress messages.
func (s *ModuleStep) Blocking() func(input any) (any, error) {
	run := s.Suspending()
	return func(input any) (any, error) {
		return run(context.Background(), input)
	}
}

// Suspending runs a fresh module through OnProgressStart, Run and
// OnProgressEnd without emitting events. A hook error fails the step.
func (s *ModuleStep) Suspending() func(ctx context.Context, input any) (any, error) {
	return func(ctx context.Context, input any) (any, error) {
		m, err := s.Instantiate()
		if err != nil {
			return nil, err
		}
		if _, err := m.OnProgressStart(ctx, input); err != nil {
			return nil, err
		}
		out, err := m.Run(ctx, input)
		if err != nil {
			return nil, err
		}
		if out, err = s.finish(out); err != nil {
			return nil, err
		}
		if _, err := m.OnProgressEnd(ctx, out); err != nil {
			return nil, err
		}
		return out, nil
	}
}

// TypedModule is a Module with typed input and output; use ModuleOf to
// register one.
type TypedModule[In, Out any] interface {
	OnProgressStart(ctx context.Context, input In) (string, error)
	Run(ctx context.Context, input In) (Out, error)
	OnProgressEnd(ctx context.Context, output Out) (string, error)
}

// ModuleOf returns a module step for typed modules. In and Out must be struct
// types; their schemas become the step's input and output schemas.
func ModuleOf[In, Out any](name string, factory func() TypedModule[In, Out]) *ModuleStep {
	in, out := schema.MustFor[In](), schema.MustFor[Out]()
	return NewModuleStep(name, in, out, func() Module {
		m := factory()
		if m == nil {
			return nil
		}
		return &typedModule[In, Out]{label: name, in: in, out: out, m: m}
	})
}

type typedModule[In, Out any] struct {
	label string
	in    schema.Schema
	out   schema.Schema
	m     TypedModule[In, Out]
}

func (t *typedModule[In, Out]) OnProgressStart(ctx context.Context, input any) (string, error) {
	v, err := adapt[In](t.in, t.label, input)
	if err != nil {
		return "", err
	}
	return t.m.OnProgressStart(ctx, v)
}

func (t *typedModule[In, Out]) Run(ctx context.Context, input any) (any, error) {
	v, err := adapt[In](t.in, t.label, input)
	if err != nil {
		return nil, err
	}
	return t.m.Run(ctx, v)
}

func (t *typedModule[In, Out]) OnProgressEnd(ctx context.Context, output any) (string, error) {
	v, err := adapt[Out](t.out, t.label, output)
	if err != nil {
		return "", err
	}
	return t.m.OnProgressEnd(ctx, v)
}
