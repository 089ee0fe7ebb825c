package observer

import (
	"context"
	"log/slog"
	"time"

	"github.com/Tailen/brickblock/pipeline"
)

// Logger is a pipeline.Observer that writes one structured record per hook.
// Step and run failures are logged at Error level, everything else at Info.
type Logger struct {
	log *slog.Logger
}

// NewLogger returns an Observer logging to log. A nil log uses slog.Default().
func NewLogger(log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{log: log}
}

// BeforePipeline implements pipeline.Observer.
func (l *Logger) BeforePipeline(ctx context.Context, runID, name string, _ any) error {
	l.log.InfoContext(ctx, "pipeline started", "pipeline", name, "run_id", runID)
	return nil
}

// AfterPipeline implements pipeline.Observer.
func (l *Logger) AfterPipeline(ctx context.Context, runID string, _ any, err error) error {
	if err != nil {
		l.log.ErrorContext(ctx, "pipeline failed", "run_id", runID, "status", StatusFailed, "error", err)
		return nil
	}
	l.log.InfoContext(ctx, "pipeline finished", "run_id", runID, "status", StatusSuccess)
	return nil
}

// BeforeStep implements pipeline.Observer.
func (l *Logger) BeforeStep(ctx context.Context, runID string, index int, label string, _ any) error {
	l.log.DebugContext(ctx, "step started", "run_id", runID, "index", index, "step", label)
	return nil
}

// AfterStep implements pipeline.Observer.
func (l *Logger) AfterStep(ctx context.Context, runID string, index int, label string, _, _ any, stepErr error, elapsed time.Duration) error {
	if stepErr != nil {
		l.log.ErrorContext(ctx, "step failed", "run_id", runID, "index", index, "step", label, "elapsed", elapsed, "error", stepErr)
		return nil
	}
	l.log.InfoContext(ctx, "step finished", "run_id", runID, "index", index, "step", label, "elapsed", elapsed)
	return nil
}

var _ pipeline.Observer = (*Logger)(nil)
