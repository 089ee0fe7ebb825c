package pipeline_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/Tailen/brickblock/pipeline"
	"github.com/Tailen/brickblock/schema"
)

var errNope = errors.New("nope")

func failNope(num) (num, error) { return num{}, errNope }

func addOneCtx(_ context.Context, n num) (num, error) { return num{X: n.X + 1}, nil }

func TestIdentity(t *testing.T) {
	s := pipeline.Identity[num]("noop")
	if s.Name() != "noop" || s.Kind() != pipeline.KindFunction {
		t.Errorf("Identity: name=%q kind=%v", s.Name(), s.Kind())
	}
	if s.InputSchema() != schema.MustFor[num]() || s.OutputSchema() != schema.MustFor[num]() {
		t.Errorf("Identity: schemas %v -> %v", s.InputSchema(), s.OutputSchema())
	}

	// Instances, mappings and compatible structs all come out as num.
	for _, in := range []any{num{X: 3}, map[string]any{"x": 3}, numCopy{X: 3}} {
		out, err := s.Blocking()(in)
		if err != nil {
			t.Errorf("Identity(%v): err = %v", in, err)
		}
		if out != (num{X: 3}) {
			t.Errorf("Identity(%v): got %v", in, out)
		}
	}
}

func TestTap(t *testing.T) {
	ctx := context.WithValue(context.Background(), struct{}{}, "marker")
	var seenCtx context.Context
	var seen num
	s := pipeline.Tap("tap", func(c context.Context, v num) {
		seenCtx = c
		seen = v
	})

	out, err := s.Suspending()(ctx, num{X: 9})
	if err != nil {
		t.Fatalf("Tap: err = %v", err)
	}
	if seenCtx != ctx || seen != (num{X: 9}) {
		t.Errorf("Tap: fn called with ctx=%v input=%v", seenCtx, seen)
	}
	if out != (num{X: 9}) {
		t.Errorf("Tap: want output %v, got %v", num{X: 9}, out)
	}
}

func TestValidate_Pass(t *testing.T) {
	even := pipeline.Validate("even", func(n num) bool { return n.X%2 == 0 }, "x must be even")
	out, err := even.Blocking()(num{X: 2})
	if err != nil {
		t.Fatalf("Validate: err = %v", err)
	}
	if out != (num{X: 2}) {
		t.Errorf("Validate: got %v", out)
	}
}

func TestValidate_Fail(t *testing.T) {
	even := pipeline.Validate("even", func(n num) bool { return n.X%2 == 0 }, "x must be even")
	_, err := even.Blocking()(num{X: 3})
	if err == nil {
		t.Fatal("Validate: expected error")
	}
	if !pipeline.IsValueError(err) {
		t.Errorf("Validate: want value error, got %T", err)
	}
	if err.Error() != "x must be even" {
		t.Errorf("Validate: got %q", err)
	}

	_, err = pipeline.Validate("never", func(num) bool { return false }, "").Blocking()(num{})
	if err == nil || err.Error() != "validation failed" {
		t.Errorf("Validate default message: got %v", err)
	}
}

func TestFunc_WrongInputIsTypeError(t *testing.T) {
	s := pipeline.Identity[label]("labels")
	_, err := s.Blocking()(num{X: 1})
	if err == nil {
		t.Fatal("expected error")
	}
	if !pipeline.IsTypeError(err) || pipeline.IsValueError(err) {
		t.Errorf("want type error, got %T: %v", err, err)
	}
}

func TestWithLabel(t *testing.T) {
	s := pipeline.Identity[num]("noop")
	l := s.WithLabel("Pass through")
	if l.Label() != "Pass through" || l.Name() != "noop" {
		t.Errorf("WithLabel: label=%q name=%q", l.Label(), l.Name())
	}
	if s.Label() != "noop" {
		t.Errorf("WithLabel changed the original: %q", s.Label())
	}

	m := incStep.WithLabel("Increment")
	if m.Label() != "Increment" || incStep.Label() != "inc" {
		t.Errorf("module WithLabel: %q, original %q", m.Label(), incStep.Label())
	}
}

func TestWrap_StepUnchanged(t *testing.T) {
	s := pipeline.Identity[num]("noop")
	got, err := pipeline.Wrap(s)
	if err != nil {
		t.Fatal(err)
	}
	if got != pipeline.Step(s) {
		t.Error("Wrap(step) should return the same step")
	}
}

func TestWrap_FunctionShapes(t *testing.T) {
	for name, fn := range map[string]any{
		"plain":        addOne,
		"with error":   double,
		"with context": addOneCtx,
	} {
		s, err := pipeline.Wrap(fn)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if s.InputSchema() != schema.MustFor[num]() || s.OutputSchema() != schema.MustFor[num]() {
			t.Errorf("%s: schemas %v -> %v", name, s.InputSchema(), s.OutputSchema())
		}
		out, err := s.Suspending()(context.Background(), map[string]any{"x": 1})
		if err != nil {
			t.Errorf("%s: err = %v", name, err)
		}
		if reflect.TypeOf(out) != reflect.TypeOf(num{}) {
			t.Errorf("%s: got %T", name, out)
		}
	}
}

func TestWrap_NameFromFunction(t *testing.T) {
	s, err := pipeline.Wrap(addOneCtx)
	if err != nil {
		t.Fatal(err)
	}
	if s.Name() != "addOneCtx" {
		t.Errorf("name: got %q", s.Name())
	}
}

func TestWrap_ErrorReturned(t *testing.T) {
	s, err := pipeline.Wrap(failNope)
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.Blocking()(num{})
	if !errors.Is(err, errNope) {
		t.Errorf("want errNope, got %v", err)
	}
}

func TestWrap_Invalid(t *testing.T) {
	for name, raw := range map[string]any{
		"nil":            nil,
		"nil step":       (*pipeline.FunctionStep)(nil),
		"nil module":     (*pipeline.ModuleStep)(nil),
		"not a function": 42,
		"anonymous":      func(n num) num { return n },
		"scalar input":   func(x int) num { return num{X: x} },
		"scalar output":  func(n num) int { return n.X },
		"two inputs":     func(a, b num) num { return a },
		"no result":      func(num) {},
	} {
		_, err := pipeline.Wrap(raw)
		if !errors.Is(err, pipeline.ErrSchemaInference) {
			t.Errorf("%s: want ErrSchemaInference, got %v", name, err)
		}
		var inferErr *pipeline.SchemaInferenceError
		if !errors.As(err, &inferErr) {
			t.Errorf("%s: want *SchemaInferenceError, got %T", name, err)
		}
	}
}

func TestWrap_AnonymousNeedsName(t *testing.T) {
	_, err := pipeline.Wrap(func(n num) num { return n })
	var inferErr *pipeline.SchemaInferenceError
	if !errors.As(err, &inferErr) {
		t.Fatalf("want *SchemaInferenceError, got %v", err)
	}
	if inferErr.Reason != "function literal has no name; use Func or NewFunctionStep" {
		t.Errorf("reason: got %q", inferErr.Reason)
	}

	// The same literal is accepted once named.
	s, err := pipeline.Wrap(pipeline.Func("same", func(n num) (num, error) { return n, nil }))
	if err != nil || s.Name() != "same" {
		t.Errorf("Func: step=%v err=%v", s, err)
	}
}

func TestAppend_NilStep(t *testing.T) {
	p := pipeline.New("nil")
	err := p.Append(addOne, (*pipeline.FunctionStep)(nil))
	if !errors.Is(err, pipeline.ErrSchemaInference) {
		t.Fatalf("want ErrSchemaInference, got %v", err)
	}
	if p.Len() != 0 {
		t.Errorf("Append kept %d steps after failure", p.Len())
	}
}
