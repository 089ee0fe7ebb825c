package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSteps is returned when a pipeline with no registered steps is compiled, built or streamed.
	ErrNoSteps = errors.New("pipeline has no steps")

	// ErrOutputSchemaMismatch is wrapped in Result.Err when the final value of
	// a build is not an instance of the output schema.
	ErrOutputSchemaMismatch = errors.New("output schema mismatch")

	// ErrInvalidStepType matches every *InvalidStepTypeError.
	ErrInvalidStepType = errors.New("invalid step type")

	// ErrSchemaInference matches every *SchemaInferenceError.
	ErrSchemaInference = errors.New("schema inference failed")
)

// TypeError marks a step failure caused by data of the wrong type.
// Steps return TypeErr(err) to have Build report it as a type error.
type TypeError struct{ Err error }

func (e *TypeError) Error() string { return e.Err.Error() }
func (e *TypeError) Unwrap() error { return e.Err }

// TypeErr marks err as a type-level fault.
func TypeErr(err error) error { return &TypeError{Err: err} }

// IsTypeError reports whether err was marked with TypeErr.
func IsTypeError(err error) bool { return errors.As(err, new(*TypeError)) }

// ValueError marks a step failure caused by an unacceptable value.
// Steps return ValueErr(err) to have Build report it as a value error.
type ValueError struct{ Err error }

func (e *ValueError) Error() string { return e.Err.Error() }
func (e *ValueError) Unwrap() error { return e.Err }

// ValueErr marks err as a value-level fault.
func ValueErr(err error) error { return &ValueError{Err: err} }

// IsValueError reports whether err was marked with ValueErr.
func IsValueError(err error) bool { return errors.As(err, new(*ValueError)) }

// StepError wraps any failure returned (or panicked) by a step with its position.
// Unmarked failures are the "unexpected" category.
type StepError struct {
	Index int
	Label string
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Label, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// InputValidationError is returned when raw input cannot be constructed as the input schema.
type InputValidationError struct{ Err error }

func (e *InputValidationError) Error() string { return "input validation: " + e.Err.Error() }
func (e *InputValidationError) Unwrap() error { return e.Err }

// InvalidStepTypeError is returned when a unit does not satisfy the step
// contract required by the pipeline's mode.
type InvalidStepTypeError struct {
	Index  int
	Name   string
	Mode   Mode
	Reason string
}

func (e *InvalidStepTypeError) Error() string {
	return fmt.Sprintf("step %d (%s): not a valid %s step: %s", e.Index, e.Name, e.Mode, e.Reason)
}

func (e *InvalidStepTypeError) Is(target error) bool { return target == ErrInvalidStepType }

// SchemaInferenceError is returned by Wrap when no input or output schema can
// be determined for a raw callable.
type SchemaInferenceError struct {
	Label  string
	Reason string
}

func (e *SchemaInferenceError) Error() string {
	return fmt.Sprintf("cannot infer schemas for %s: %s", e.Label, e.Reason)
}

func (e *SchemaInferenceError) Is(target error) bool { return target == ErrSchemaInference }
