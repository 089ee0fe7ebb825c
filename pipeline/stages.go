// Typed constructors and standard steps for common pipeline patterns.

package pipeline

import (
	"context"
	"errors"

	"github.com/Tailen/brickblock/schema"
)

// Func returns a function step calling fn. In and Out must be struct types;
// their schemas become the step's input and output schemas. It panics
// otherwise, as it is meant for registration at init time.
func Func[In, Out any](name string, fn func(In) (Out, error)) *FunctionStep {
	return ContextFunc(name, func(_ context.Context, in In) (Out, error) { return fn(in) })
}

// ContextFunc is like Func for functions that take the run's context.
func ContextFunc[In, Out any](name string, fn func(context.Context, In) (Out, error)) *FunctionStep {
	in, out := schema.MustFor[In](), schema.MustFor[Out]()
	return NewFunctionStep(name, in, out, func(ctx context.Context, input any) (any, error) {
		v, err := adapt[In](in, name, input)
		if err != nil {
			return nil, err
		}
		return fn(ctx, v)
	})
}

// Identity returns a step that passes a T through unchanged.
// Useful as a placeholder or an observer boundary.
func Identity[T any](name string) *FunctionStep {
	return Func(name, func(v T) (T, error) { return v, nil })
}

// Tap returns a step that calls fn(ctx, v) then passes v through unchanged.
// Use for logging, metrics, or side effects without changing the value.
func Tap[T any](name string, fn func(context.Context, T)) *FunctionStep {
	return ContextFunc(name, func(ctx context.Context, v T) (T, error) {
		fn(ctx, v)
		return v, nil
	})
}

// Validate returns a step that passes v through only if predicate(v) is true.
// Otherwise it fails with a value error carrying errMsg.
func Validate[T any](name string, predicate func(T) bool, errMsg string) *FunctionStep {
	if errMsg == "" {
		errMsg = "validation failed"
	}
	return Func(name, func(v T) (T, error) {
		if !predicate(v) {
			return v, ValueErr(errors.New(errMsg))
		}
		return v, nil
	})
}
