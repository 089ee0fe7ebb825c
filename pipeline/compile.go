package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Tailen/brickblock/schema"
)

// Unit is a pipeline compiled into a single blocking call.
type Unit struct {
	Name  string
	out   schema.Schema
	steps []Step
}

// ToFunction compiles the pipeline into a blocking unit. Every call returns an
// independent unit; the pipeline is not modified.
func (p *Pipeline) ToFunction() (*Unit, error) {
	if len(p.steps) == 0 {
		return nil, ErrNoSteps
	}
	return &Unit{Name: p.name, out: p.out, steps: p.Steps()}, nil
}

// Call threads input through every step in order.
func (u *Unit) Call(input any) (any, error) {
	data := input
	for i, s := range u.steps {
		next, err := s.Blocking()(data)
		if err != nil {
			return nil, &StepError{Index: i, Label: s.Label(), Err: err}
		}
		data = next
	}
	return normalize(u.out, data)
}

// ContextUnit is a pipeline compiled into a single context-aware call.
// Cancellation is checked before each step and the context is handed to every
// step, so a cancelled caller abandons the run at the next step boundary.
type ContextUnit struct {
	Name     string
	pipeID   string
	out      schema.Schema
	steps    []Step
	logger   *slog.Logger
	observer Observer
}

// ToContextFunction compiles the pipeline into a context-aware unit.
func (p *Pipeline) ToContextFunction() (*ContextUnit, error) {
	if len(p.steps) == 0 {
		return nil, ErrNoSteps
	}
	return &ContextUnit{
		Name:     p.name,
		pipeID:   p.id,
		out:      p.out,
		steps:    p.Steps(),
		logger:   p.logger,
		observer: p.observer,
	}, nil
}

// Call runs the unit under a fresh run id, reporting to the observer if one
// was configured.
func (u *ContextUnit) Call(ctx context.Context, input any) (any, error) {
	runID := uuid.NewString()
	log := u.logger.With("pipeline", u.Name, "pipeline_id", u.pipeID, "run_id", runID)
	start := time.Now()

	if u.observer != nil {
		if err := u.observer.BeforePipeline(ctx, runID, u.Name, input); err != nil {
			return nil, fmt.Errorf("before pipeline: %w", err)
		}
	}
	result, err := u.runSteps(ctx, log, runID, input)
	if err == nil {
		result, err = normalize(u.out, result)
	}
	if u.observer != nil {
		if postErr := u.observer.AfterPipeline(ctx, runID, result, err); postErr != nil && err == nil {
			err = fmt.Errorf("after pipeline: %w", postErr)
		}
	}
	if err != nil {
		log.Debug("pipeline failed", "elapsed", time.Since(start), "error", err)
		return nil, err
	}
	log.Debug("pipeline completed", "elapsed", time.Since(start))
	return result, nil
}

func (u *ContextUnit) runSteps(ctx context.Context, log *slog.Logger, runID string, input any) (any, error) {
	data := input
	for i, s := range u.steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		label := s.Label()
		if u.observer != nil {
			if err := u.observer.BeforeStep(ctx, runID, i, label, data); err != nil {
				return nil, fmt.Errorf("before step %d: %w", i, err)
			}
		}
		stepCtx := context.WithValue(ctx, runMetaKey{}, runMeta{RunID: runID, PipelineName: u.Name, StepIndex: i})
		start := time.Now()
		next, stepErr := s.Suspending()(stepCtx, data)
		elapsed := time.Since(start)
		log.Debug("step completed", "step", label, "elapsed", elapsed)
		if u.observer != nil {
			if postErr := u.observer.AfterStep(ctx, runID, i, label, data, next, stepErr, elapsed); postErr != nil && stepErr == nil {
				stepErr = fmt.Errorf("after step: %w", postErr)
			}
		}
		if stepErr != nil {
			return nil, &StepError{Index: i, Label: label, Err: stepErr}
		}
		data = next
	}
	return data, nil
}

// normalize re-coerces a struct result into the output schema so that
// structurally compatible results take on the declared schema's identity.
// Non-struct results are returned unchanged.
func normalize(out schema.Schema, v any) (any, error) {
	if out == nil || !schema.IsInstance(v) {
		return v, nil
	}
	res, err := schema.Coerce(out, v)
	if err != nil {
		return nil, ValueErr(fmt.Errorf("coerce result to %s: %w", out.Name(), err))
	}
	return res, nil
}
