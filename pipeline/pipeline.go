package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Tailen/brickblock/schema"
)

// Mode tags a pipeline as holding plain function steps or progress-reporting
// module steps. It is fixed at creation.
type Mode int

const (
	ModeFunction Mode = iota
	ModeModule
)

func (m Mode) String() string {
	if m == ModeModule {
		return "module"
	}
	return "function"
}

// ParseMode parses "function" or "module". The empty string is ModeFunction.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "function":
		return ModeFunction, nil
	case "module":
		return ModeModule, nil
	}
	return ModeFunction, fmt.Errorf("unknown pipeline mode %q (use \"function\" or \"module\")", s)
}

// Pipeline is an ordered chain of steps with resolved boundary schemas. Build
// it once with New, WithInputSchema, WithOutputSchema and Append; afterwards it
// is only read, so compiled units and streams may run concurrently.
type Pipeline struct {
	name     string
	id       string
	mode     Mode
	in       schema.Schema
	out      schema.Schema
	steps    []Step
	logger   *slog.Logger
	observer Observer
}

// Option configures a Pipeline at creation.
type Option func(*Pipeline)

// WithID sets the pipeline identifier instead of a generated UUID.
func WithID(id string) Option {
	return func(p *Pipeline) { p.id = id }
}

// WithMode selects function or module mode.
func WithMode(m Mode) Option {
	return func(p *Pipeline) { p.mode = m }
}

// WithLogger sets the logger used for step timings and warnings.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithObserver attaches hooks called around each context-aware run.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// New returns an empty pipeline in function mode unless WithMode says otherwise.
func New(name string, opts ...Option) *Pipeline {
	p := &Pipeline{name: name, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	if p.id == "" {
		p.id = uuid.NewString()
	}
	return p
}

func (p *Pipeline) Name() string { return p.name }
func (p *Pipeline) ID() string { return p.id }
func (p *Pipeline) Mode() Mode { return p.mode }
func (p *Pipeline) InputSchema() schema.Schema { return p.in }
func (p *Pipeline) OutputSchema() schema.Schema { return p.out }
func (p *Pipeline) Len() int { return len(p.steps) }

// Steps returns a copy of the registered steps in order.
func (p *Pipeline) Steps() []Step {
	out := make([]Step, len(p.steps))
	copy(out, p.steps)
	return out
}

// WithInputSchema sets the input schema. A side that is already resolved, by
// an earlier call or by inference on Append, is never replaced.
func (p *Pipeline) WithInputSchema(s schema.Schema) *Pipeline {
	if s == nil {
		return p
	}
	if p.in != nil {
		p.logger.Warn("input schema already resolved; ignoring", "pipeline", p.name, "schema", s.Name(), "resolved", p.in.Name())
		return p
	}
	p.in = s
	return p
}

// WithOutputSchema sets the output schema, first write wins as for WithInputSchema.
func (p *Pipeline) WithOutputSchema(s schema.Schema) *Pipeline {
	if s == nil {
		return p
	}
	if p.out != nil {
		p.logger.Warn("output schema already resolved; ignoring", "pipeline", p.name, "schema", s.Name(), "resolved", p.out.Name())
		return p
	}
	p.out = s
	return p
}

// Append registers units in order. In function mode each unit is passed
// through Wrap; in module mode each must be a *ModuleStep. Nothing is appended
// unless every unit is accepted. Unresolved boundary schemas are then inferred
// from the first and last steps.
func (p *Pipeline) Append(units ...any) error {
	if len(units) == 0 {
		return nil
	}
	steps := make([]Step, 0, len(units))
	for i, u := range units {
		idx := len(p.steps) + i
		s, err := p.accept(idx, u)
		if err != nil {
			return err
		}
		steps = append(steps, s)
	}
	p.steps = append(p.steps, steps...)
	if p.in == nil {
		p.in = p.steps[0].InputSchema()
	}
	if p.out == nil {
		p.out = p.steps[len(p.steps)-1].OutputSchema()
	}
	return nil
}

func (p *Pipeline) accept(idx int, u any) (Step, error) {
	if p.mode == ModeModule {
		ms, ok := u.(*ModuleStep)
		if !ok {
			return nil, &InvalidStepTypeError{Index: idx, Name: unitName(u), Mode: p.mode, Reason: fmt.Sprintf("%T is not a module step", u)}
		}
		if reason := ms.violation(); reason != "" {
			return nil, &InvalidStepTypeError{Index: idx, Name: unitName(u), Mode: p.mode, Reason: reason}
		}
		return ms, nil
	}
	s, err := Wrap(u)
	if err != nil {
		return nil, err
	}
	if s.Kind() != KindFunction {
		return nil, &InvalidStepTypeError{Index: idx, Name: s.Label(), Mode: p.mode, Reason: "module steps need a module-mode pipeline"}
	}
	if s.InputSchema() == nil || s.OutputSchema() == nil {
		return nil, &SchemaInferenceError{Label: s.Label(), Reason: "input and output schemas must be declared"}
	}
	return s, nil
}

func unitName(u any) string {
	if ms, ok := u.(*ModuleStep); ok && ms == nil {
		return "<nil>"
	}
	if s, ok := u.(Step); ok {
		return s.Label()
	}
	return fmt.Sprintf("%T", u)
}

// InputSchemaDescriptor describes the input schema, or returns nil if unresolved.
func (p *Pipeline) InputSchemaDescriptor() map[string]any {
	if p.in == nil {
		return nil
	}
	return p.in.Descriptor()
}

// OutputSchemaDescriptor describes the output schema, or returns nil if unresolved.
func (p *Pipeline) OutputSchemaDescriptor() map[string]any {
	if p.out == nil {
		return nil
	}
	return p.out.Descriptor()
}
