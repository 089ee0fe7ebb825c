package pipeline

import (
	"context"
	"fmt"

	"github.com/Tailen/brickblock/schema"
)

// Status is the outcome tag of a Result.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Result is the structured outcome of Build and BuildContext. Err holds the
// failure behind Message and is not serialized.
type Result struct {
	Status  Status         `json:"status"`
	Result  map[string]any `json:"result"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
}

const (
	msgSuccess        = "Pipeline built successfully."
	msgOutputMismatch = "Output schema mismatch. The output did not match the expected model schema."
)

func failed(msg string, err error) Result {
	return Result{Status: StatusFailed, Message: msg, Err: err}
}

// Build validates input against the input schema, runs the blocking compiled
// unit and checks the result against the output schema. It never returns an
// error or panics because of a step: every failure is reported in the Result.
func (p *Pipeline) Build(input map[string]any) Result {
	return p.build(input, func(in any) (any, error) {
		u, err := p.ToFunction()
		if err != nil {
			return nil, err
		}
		return u.Call(in)
	})
}

// BuildContext is Build using the context-aware compiled unit.
func (p *Pipeline) BuildContext(ctx context.Context, input map[string]any) Result {
	return p.build(input, func(in any) (any, error) {
		u, err := p.ToContextFunction()
		if err != nil {
			return nil, err
		}
		return u.Call(ctx, in)
	})
}

func (p *Pipeline) build(input map[string]any, call func(any) (any, error)) Result {
	if len(p.steps) == 0 {
		return failed(fmt.Sprintf("Pipeline build error: %v", ErrNoSteps), ErrNoSteps)
	}
	in, err := p.in.New(input)
	if err != nil {
		return failed(fmt.Sprintf("Input data validation error: %v", err), &InputValidationError{Err: err})
	}
	out, err := guard(call, in)
	if err != nil {
		return failed(classify(err), err)
	}
	if !p.out.Is(out) {
		return failed(msgOutputMismatch, fmt.Errorf("%w: got %T, want %s", ErrOutputSchemaMismatch, out, p.out.Name()))
	}
	data, err := p.out.Dump(out)
	if err != nil {
		return failed(fmt.Sprintf("Error validating output model: %v", err), err)
	}
	return Result{Status: StatusSuccess, Result: data, Message: msgSuccess}
}

// guard turns a panic raised during call into an error.
func guard(call func(any) (any, error), in any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return call(in)
}

func classify(err error) string {
	switch {
	case IsTypeError(err):
		return fmt.Sprintf("Type error during pipeline execution: %v", err)
	case IsValueError(err):
		return fmt.Sprintf("Value error during pipeline execution: %v", err)
	default:
		return fmt.Sprintf("Unexpected error during pipeline execution: %v", err)
	}
}

// Run executes the pipeline and returns the raw output. Unlike Build, failures
// are returned as errors and panics are not recovered. Module-mode pipelines
// run through RunModules.
func (p *Pipeline) Run(ctx context.Context, input any) (any, error) {
	if p.mode == ModeModule {
		return p.RunModules(ctx, input)
	}
	u, err := p.ToContextFunction()
	if err != nil {
		return nil, err
	}
	in, err := p.coerceInput(input)
	if err != nil {
		return nil, err
	}
	return u.Call(ctx, in)
}

// coerceInput builds the input schema instance from a mapping or from another
// struct instance; mappings take priority. Other values pass through.
func (p *Pipeline) coerceInput(input any) (any, error) {
	if p.in == nil {
		return input, nil
	}
	var (
		v   any
		err error
	)
	switch {
	case isMapping(input):
		v, err = p.in.New(input.(map[string]any))
	case schema.IsInstance(input):
		v, err = schema.Coerce(p.in, input)
	default:
		return input, nil
	}
	if err != nil {
		return nil, &InputValidationError{Err: err}
	}
	return v, nil
}

func isMapping(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}
