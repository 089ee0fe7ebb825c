package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Tailen/brickblock/pipeline"
	"github.com/Tailen/brickblock/schema"
)

// Run statuses.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Run is the record of one context-aware pipeline run.
type Run struct {
	ID         string          `json:"run_id"`
	Pipeline   string          `json:"pipeline"`
	Status     string          `json:"status"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	Steps      []StepRun       `json:"steps"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at,omitempty"`
}

// StepRun is the record of one step inside a Run.
type StepRun struct {
	Index    int             `json:"index"`
	Label    string          `json:"label"`
	Status   string          `json:"status"`
	Input    json.RawMessage `json:"input,omitempty"`
	Output   json.RawMessage `json:"output,omitempty"`
	Error    string          `json:"error,omitempty"`
	Duration time.Duration   `json:"duration_ns"`
}

// RunStore is a pipeline.Observer keeping an in-memory record of each run and
// its steps, so runs can be inspected after the fact. Once more than limit
// runs are held, the oldest finished ones are evicted.
type RunStore struct {
	mu    sync.Mutex
	runs  map[string]*Run
	order []string
	limit int
	now   func() time.Time
}

// DefaultRunLimit is the number of runs a RunStore keeps when no limit is given.
const DefaultRunLimit = 1000

// NewRunStore returns an empty store holding at most limit runs. A limit <= 0
// uses DefaultRunLimit.
func NewRunStore(limit int) *RunStore {
	if limit <= 0 {
		limit = DefaultRunLimit
	}
	return &RunStore{runs: make(map[string]*Run), limit: limit, now: time.Now}
}

// Get returns a copy of the run with the given id.
func (s *RunStore) Get(runID string) (Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[runID]
	if !ok {
		return Run{}, false
	}
	return r.copy(), true
}

// List returns copies of all held runs, most recent first.
func (s *RunStore) List() []Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Run, 0, len(s.runs))
	for _, id := range s.order {
		out = append(out, s.runs[id].copy())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

func (r *Run) copy() Run {
	c := *r
	c.Steps = append([]StepRun(nil), r.Steps...)
	return c
}

// BeforePipeline implements pipeline.Observer. The same run id may be observed
// again; its record is then reset.
func (s *RunStore) BeforePipeline(_ context.Context, runID, name string, input any) error {
	payload, err := marshalOptional(input)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[runID]; !ok {
		s.order = append(s.order, runID)
	}
	s.runs[runID] = &Run{
		ID:        runID,
		Pipeline:  name,
		Status:    StatusRunning,
		Payload:   payload,
		StartedAt: s.now(),
	}
	s.evict()
	return nil
}

func (s *RunStore) evict() {
	for i := 0; len(s.runs) > s.limit && i < len(s.order); {
		id := s.order[i]
		if s.runs[id].Status == StatusRunning {
			i++
			continue
		}
		delete(s.runs, id)
		s.order = append(s.order[:i], s.order[i+1:]...)
	}
}

// AfterPipeline implements pipeline.Observer.
func (s *RunStore) AfterPipeline(_ context.Context, runID string, result any, err error) error {
	resultJSON, _ := marshalOptional(result)
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[runID]
	if !ok {
		return nil
	}
	r.Status = StatusSuccess
	if err != nil {
		r.Status = StatusFailed
		r.Error = err.Error()
	}
	r.Result = resultJSON
	r.FinishedAt = s.now()
	return nil
}

// BeforeStep implements pipeline.Observer.
func (s *RunStore) BeforeStep(_ context.Context, runID string, index int, label string, input any) error {
	inputJSON, err := marshalOptional(input)
	if err != nil {
		return fmt.Errorf("marshal step input: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[runID]
	if !ok {
		return nil
	}
	r.Steps = append(r.Steps, StepRun{Index: index, Label: label, Status: StatusRunning, Input: inputJSON})
	return nil
}

// AfterStep implements pipeline.Observer.
func (s *RunStore) AfterStep(_ context.Context, runID string, index int, _ string, _, output any, stepErr error, elapsed time.Duration) error {
	outputJSON, _ := marshalOptional(output)
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[runID]
	if !ok {
		return nil
	}
	for i := len(r.Steps) - 1; i >= 0; i-- {
		st := &r.Steps[i]
		if st.Index != index || st.Status != StatusRunning {
			continue
		}
		st.Status = StatusSuccess
		if stepErr != nil {
			st.Status = StatusFailed
			st.Error = stepErr.Error()
		}
		st.Output = outputJSON
		st.Duration = elapsed
		break
	}
	return nil
}

// marshalOptional encodes v as JSON, schema instances as their dumped mapping.
func marshalOptional(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	if schema.IsInstance(v) {
		m, err := schema.Dump(v)
		if err != nil {
			return nil, err
		}
		return json.Marshal(m)
	}
	return json.Marshal(v)
}

var _ pipeline.Observer = (*RunStore)(nil)
