package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const msgStreamingInactive = "SSE is not activated in the pipeline"

// Stream runs a module-mode pipeline step by step and reports progress on the
// returned channel: for each step a start, a completed and an end event, then
// one terminal End event, after which the channel is closed.
//
// Input errors and an empty pipeline are reported synchronously. A module
// failure is reported as an Exception event and the stream skips to End. A step
// that is not a module step is reported as an Exception event and skipped.
// On a function-mode pipeline an Exception event saying streaming is not active
// is emitted first and the steps are still enumerated, each yielding an
// Exception event. If ctx is cancelled the channel is closed without End.
func (p *Pipeline) Stream(ctx context.Context, input any) (<-chan Event, error) {
	if len(p.steps) == 0 {
		return nil, ErrNoSteps
	}
	data, err := p.coerceInput(input)
	if err != nil {
		return nil, err
	}
	ch := make(chan Event)
	go p.stream(ctx, data, ch)
	return ch, nil
}

func (p *Pipeline) stream(ctx context.Context, data any, ch chan<- Event) {
	defer close(ch)
	emit := func(e Event) bool {
		select {
		case ch <- e:
			return true
		case <-ctx.Done():
			return false
		}
	}
	log := p.logger.With("pipeline", p.name, "pipeline_id", p.id)

	if p.mode != ModeModule {
		log.Warn(msgStreamingInactive)
		if !emit(Event{Message: msgStreamingInactive, Status: EventException}) {
			return
		}
	}

	for i, s := range p.steps {
		if ctx.Err() != nil {
			return
		}
		ms, ok := s.(*ModuleStep)
		if !ok || ms.violation() != "" {
			msg := fmt.Sprintf("Exception: step %d (%s) is not a module step", i, s.Label())
			if !emit(Event{Message: msg, Status: EventException, Data: rawData(data)}) {
				return
			}
			continue
		}
		start := time.Now()
		next, alive, err := streamStep(ctx, ms, data, emit)
		if !alive {
			return
		}
		if err != nil {
			stepErr := &StepError{Index: i, Label: ms.Label(), Err: err}
			log.Error("module step failed", "step", ms.Label(), "error", err)
			if !emit(Event{Message: stepErr.Error(), Status: EventException, Data: eventData(data)}) {
				return
			}
			break
		}
		log.Debug("step completed", "step", ms.Label(), "elapsed", time.Since(start))
		data = next
	}
	emit(Event{Status: EventEnd})
}

// streamStep runs one module with its progress hooks. alive is false once the
// consumer has gone away.
func streamStep(ctx context.Context, ms *ModuleStep, data any, emit func(Event) bool) (next any, alive bool, err error) {
	m, err := ms.Instantiate()
	if err != nil {
		return nil, true, err
	}
	msg, err := m.OnProgressStart(ctx, data)
	if err != nil {
		return nil, true, err
	}
	if !emit(Event{Message: msg, Status: EventStart, Data: eventData(data)}) {
		return nil, false, nil
	}
	out, err := m.Run(ctx, data)
	if err != nil {
		return nil, true, err
	}
	if out, err = ms.finish(out); err != nil {
		return nil, true, err
	}
	if !emit(Event{Status: EventCompleted, Data: eventData(out)}) {
		return nil, false, nil
	}
	msg, err = m.OnProgressEnd(ctx, out)
	if err != nil {
		return nil, true, err
	}
	if !emit(Event{Message: msg, Status: EventProgressEnd, Data: eventData(out)}) {
		return nil, false, nil
	}
	return out, true, nil
}

// RunModules runs a pipeline's module steps in order without progress events
// and returns the final value. Failures are returned, not reported: a step
// that is not a valid module step yields *InvalidStepTypeError.
func (p *Pipeline) RunModules(ctx context.Context, input any) (any, error) {
	if len(p.steps) == 0 {
		return nil, ErrNoSteps
	}
	data, err := p.coerceInput(input)
	if err != nil {
		return nil, err
	}
	log := p.logger.With("pipeline", p.name, "pipeline_id", p.id)
	start := time.Now()
	for i, s := range p.steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ms, ok := s.(*ModuleStep)
		if !ok {
			return nil, &InvalidStepTypeError{Index: i, Name: s.Label(), Mode: ModeModule, Reason: fmt.Sprintf("%T is not a module step", s)}
		}
		if reason := ms.violation(); reason != "" {
			return nil, &InvalidStepTypeError{Index: i, Name: s.Label(), Mode: ModeModule, Reason: reason}
		}
		stepStart := time.Now()
		next, err := ms.Suspending()(ctx, data)
		if err != nil {
			return nil, &StepError{Index: i, Label: ms.Label(), Err: err}
		}
		log.Debug("step completed", "step", ms.Label(), "elapsed", time.Since(stepStart))
		data = next
	}
	log.Debug("pipeline completed", slog.Duration("elapsed", time.Since(start)))
	return data, nil
}
