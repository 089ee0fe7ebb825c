package pipeline

import (
	"context"
	"errors"
	"time"
)

// Observer provides pre/post hooks for context-aware pipeline runs.
// BeforePipeline is called before any step runs, BeforeStep/AfterStep around
// each step (AfterStep gets the step's elapsed time) and AfterPipeline when
// the run finishes, successfully or not. A hook error aborts the run unless
// the run has already failed.
type Observer interface {
	BeforePipeline(ctx context.Context, runID, name string, input any) error
	AfterPipeline(ctx context.Context, runID string, result any, err error) error
	BeforeStep(ctx context.Context, runID string, index int, label string, input any) error
	AfterStep(ctx context.Context, runID string, index int, label string, input, output any, stepErr error, elapsed time.Duration) error
}

// MultiObserver calls each observer in order. All observers are called; their
// errors are joined.
func MultiObserver(observers ...Observer) Observer {
	list := make([]Observer, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			list = append(list, o)
		}
	}
	return multiObserver(list)
}

type multiObserver []Observer

func (m multiObserver) BeforePipeline(ctx context.Context, runID, name string, input any) error {
	var errs []error
	for _, o := range m {
		errs = append(errs, o.BeforePipeline(ctx, runID, name, input))
	}
	return errors.Join(errs...)
}

func (m multiObserver) AfterPipeline(ctx context.Context, runID string, result any, err error) error {
	var errs []error
	for _, o := range m {
		errs = append(errs, o.AfterPipeline(ctx, runID, result, err))
	}
	return errors.Join(errs...)
}

func (m multiObserver) BeforeStep(ctx context.Context, runID string, index int, label string, input any) error {
	var errs []error
	for _, o := range m {
		errs = append(errs, o.BeforeStep(ctx, runID, index, label, input))
	}
	return errors.Join(errs...)
}

func (m multiObserver) AfterStep(ctx context.Context, runID string, index int, label string, input, output any, stepErr error, elapsed time.Duration) error {
	var errs []error
	for _, o := range m {
		errs = append(errs, o.AfterStep(ctx, runID, index, label, input, output, stepErr, elapsed))
	}
	return errors.Join(errs...)
}

type runMetaKey struct{}

type runMeta struct {
	RunID, PipelineName string
	StepIndex           int
}

// RunIDFromContext returns the run id injected into the context passed to
// steps of a context-aware run.
func RunIDFromContext(ctx context.Context) (string, bool) {
	m, ok := ctx.Value(runMetaKey{}).(runMeta)
	return m.RunID, ok
}
