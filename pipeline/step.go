package pipeline

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"runtime"
	"strings"

	"github.com/Tailen/brickblock/schema"
)

// Kind tags the two step variants. A pipeline holds steps of one kind only,
// matching its Mode.
type Kind int

const (
	KindFunction Kind = iota
	KindModule
)

func (k Kind) String() string {
	if k == KindModule {
		return "module"
	}
	return "function"
}

// Step is one unit of work in a pipeline: it consumes an instance of its input
// schema and produces an instance of its output schema.
type Step interface {
	Kind() Kind
	// Name is the identifier the step is registered under (see config.Registry).
	Name() string
	// Label is the display name used in logs and events.
	Label() string
	InputSchema() schema.Schema
	OutputSchema() schema.Schema
	// Blocking returns the step as a plain call.
	Blocking() func(input any) (any, error)
	// Suspending returns the step as a context-aware call that honours cancellation.
	Suspending() func(ctx context.Context, input any) (any, error)
}

// CallFunc is the type-erased body of a function step.
type CallFunc func(ctx context.Context, input any) (any, error)

// FunctionStep wraps a callable with its declared input and output schemas.
type FunctionStep struct {
	name  string
	label string
	in    schema.Schema
	out   schema.Schema
	call  CallFunc
}

// NewFunctionStep returns a function step running call. Use Func or ContextFunc
// to build one from a typed Go function.
func NewFunctionStep(name string, in, out schema.Schema, call CallFunc) *FunctionStep {
	return &FunctionStep{name: name, in: in, out: out, call: call}
}

// WithLabel returns a copy of the step with a display label.
func (s *FunctionStep) WithLabel(label string) *FunctionStep {
	c := *s
	c.label = label
	return &c
}

func (s *FunctionStep) Kind() Kind { return KindFunction }
func (s *FunctionStep) Name() string { return s.name }
func (s *FunctionStep) InputSchema() schema.Schema { return s.in }
func (s *FunctionStep) OutputSchema() schema.Schema { return s.out }

func (s *FunctionStep) Label() string {
	if s.label != "" {
		return s.label
	}
	return s.name
}

func (s *FunctionStep) Blocking() func(input any) (any, error) {
	return func(input any) (any, error) {
		return s.call(context.Background(), input)
	}
}

func (s *FunctionStep) Suspending() func(ctx context.Context, input any) (any, error) {
	return s.call
}

// Wrap presents a raw unit as a Step. A non-nil Step is returned unchanged. A
// named Go function of shape func(In) Out, func(In) (Out, error) or
// func(context.Context, In) (Out, error), with In and Out struct types, becomes
// a FunctionStep named after the function. Function literals have no stable
// name and must go through Func or NewFunctionStep. Anything else fails with
// *SchemaInferenceError.
func Wrap(raw any) (Step, error) {
	switch v := raw.(type) {
	case nil:
		return nil, &SchemaInferenceError{Label: "<nil>", Reason: "unit is nil"}
	case Step:
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return nil, &SchemaInferenceError{Label: fmt.Sprintf("%T", v), Reason: "step is nil"}
		}
		return v, nil
	}
	return wrapFunc(reflect.ValueOf(raw))
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

func wrapFunc(fv reflect.Value) (Step, error) {
	if fv.Kind() != reflect.Func || fv.IsNil() {
		return nil, &SchemaInferenceError{Label: fv.Type().String(), Reason: "not a function or step"}
	}
	label, anonymous := funcName(fv)
	ft := fv.Type()

	withCtx := ft.NumIn() == 2 && ft.In(0) == contextType
	if ft.NumIn() != 1 && !withCtx {
		return nil, &SchemaInferenceError{Label: label, Reason: "expected a single input parameter, optionally preceded by context.Context"}
	}
	withErr := ft.NumOut() == 2 && ft.Out(1) == errorType
	if ft.NumOut() != 1 && !withErr {
		return nil, &SchemaInferenceError{Label: label, Reason: "expected a single result, optionally followed by error"}
	}

	inType := ft.In(ft.NumIn() - 1)
	in, err := schema.ForType(inType)
	if err != nil {
		return nil, &SchemaInferenceError{Label: label, Reason: "input: " + err.Error()}
	}
	out, err := schema.ForType(ft.Out(0))
	if err != nil {
		return nil, &SchemaInferenceError{Label: label, Reason: "output: " + err.Error()}
	}
	if anonymous {
		return nil, &SchemaInferenceError{Label: label, Reason: "function literal has no name; use Func or NewFunctionStep"}
	}

	call := func(ctx context.Context, input any) (any, error) {
		arg, err := coerceValue(in, label, input)
		if err != nil {
			return nil, err
		}
		args := []reflect.Value{reflect.ValueOf(arg)}
		if withCtx {
			args = append([]reflect.Value{reflect.ValueOf(ctx)}, args...)
		}
		res := fv.Call(args)
		if withErr && !res[1].IsNil() {
			return nil, res[1].Interface().(error)
		}
		return res[0].Interface(), nil
	}
	return NewFunctionStep(label, in, out, call), nil
}

// closureName matches the runtime names of function literals, such as
// "pkg.Outer.func1" or "pkg.Outer.func1.2".
var closureName = regexp.MustCompile(`\.func\d+(\.\d+)*$`)

// funcName returns the short name of a function and whether it is a literal.
func funcName(fv reflect.Value) (string, bool) {
	fn := runtime.FuncForPC(fv.Pointer())
	if fn == nil {
		return fv.Type().String(), true
	}
	full := fn.Name()
	name := full
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return strings.TrimSuffix(name, "-fm"), closureName.MatchString(full)
}

// coerceValue reconstructs input as an instance of s. Mappings and
// structurally compatible structs are accepted.
func coerceValue(s schema.Schema, label string, input any) (any, error) {
	if s.Is(input) {
		return input, nil
	}
	v, err := schema.Coerce(s, input)
	if err != nil {
		return nil, TypeErr(fmt.Errorf("%s: expected %s, got %T: %w", label, s.Name(), input, err))
	}
	return v, nil
}

// adapt is the typed form of coerceValue used by the generic constructors.
func adapt[T any](s schema.Schema, label string, input any) (T, error) {
	if v, ok := input.(T); ok {
		return v, nil
	}
	var zero T
	v, err := coerceValue(s, label, input)
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}
