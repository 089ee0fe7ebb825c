// Package measure records per-step execution times of pipeline runs.
package measure

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Tailen/brickblock/pipeline"
)

// Measure exposes the metrics collected for each step, keyed by step label.
type Measure interface {
	AllMetrics() map[string]Metric
}

// Metric accumulates the elapsed times of one step.
type Metric interface {
	AddDuration(elapsed time.Duration)
	AddFailure()
	AVGDuration() time.Duration
	Count() int64
	Failures() int64
}

type DefaultMetric struct {
	mu       sync.Mutex
	elapsed  time.Duration
	total    int64
	failures int64
}

func (mt *DefaultMetric) AddDuration(elapsed time.Duration) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.total++
	mt.elapsed += elapsed
}

func (mt *DefaultMetric) AddFailure() {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.failures++
}

func (mt *DefaultMetric) AVGDuration() time.Duration {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.total == 0 {
		return 0
	}
	return round(time.Duration(float64(mt.elapsed) / float64(mt.total)))
}

func (mt *DefaultMetric) Count() int64 {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return mt.total
}

func (mt *DefaultMetric) Failures() int64 {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	return mt.failures
}

func round(d time.Duration) time.Duration {
	switch {
	case d > time.Hour:
		return d.Round(time.Minute)
	case d > time.Second:
		return d.Round(time.Millisecond)
	case d > time.Millisecond:
		return d.Round(time.Microsecond)
	}
	return d
}

// Recorder is a pipeline.Observer that feeds step timings into metrics.
// Attach it with pipeline.WithObserver; it is safe for concurrent runs.
type Recorder struct {
	mu      sync.Mutex
	steps   map[string]Metric
	total   *DefaultMetric
	started map[string]time.Time
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		steps:   make(map[string]Metric),
		total:   &DefaultMetric{},
		started: make(map[string]time.Time),
	}
}

func (r *Recorder) metric(label string) Metric {
	r.mu.Lock()
	defer r.mu.Unlock()
	mt, ok := r.steps[label]
	if !ok {
		mt = &DefaultMetric{}
		r.steps[label] = mt
	}
	return mt
}

// AllMetrics returns the step metrics keyed by label.
func (r *Recorder) AllMetrics() map[string]Metric {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]Metric, len(r.steps))
	for k, v := range r.steps {
		out[k] = v
	}
	return out
}

// Labels returns the labels of all measured steps, sorted.
func (r *Recorder) Labels() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.steps))
	for k := range r.steps {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Pipeline returns the metric of whole runs.
func (r *Recorder) Pipeline() Metric { return r.total }

func (r *Recorder) BeforePipeline(_ context.Context, runID, _ string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started[runID] = time.Now()
	return nil
}

func (r *Recorder) AfterPipeline(_ context.Context, runID string, _ any, err error) error {
	r.mu.Lock()
	start, ok := r.started[runID]
	delete(r.started, runID)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	r.total.AddDuration(time.Since(start))
	if err != nil {
		r.total.AddFailure()
	}
	return nil
}

func (r *Recorder) BeforeStep(context.Context, string, int, string, any) error { return nil }

func (r *Recorder) AfterStep(_ context.Context, _ string, _ int, label string, _, _ any, stepErr error, elapsed time.Duration) error {
	mt := r.metric(label)
	mt.AddDuration(elapsed)
	if stepErr != nil {
		mt.AddFailure()
	}
	return nil
}

var (
	_ Measure           = (*Recorder)(nil)
	_ pipeline.Observer = (*Recorder)(nil)
)
