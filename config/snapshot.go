package config

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/Tailen/brickblock/pipeline"
)

// SnapshotVersion is the snapshot format written by Snapshot. Restore rejects
// any other version.
const SnapshotVersion = 1

// ErrDeserialization matches every *DeserializationError.
var ErrDeserialization = errors.New("cannot restore pipeline snapshot")

// DeserializationError is returned by Restore when a snapshot is corrupt, has
// an unsupported version or references steps or schemas the registry cannot
// resolve.
type DeserializationError struct {
	Reason string
	Err    error
}

func (e *DeserializationError) Error() string {
	if e.Err == nil {
		return "restore snapshot: " + e.Reason
	}
	return fmt.Sprintf("restore snapshot: %s: %v", e.Reason, e.Err)
}

func (e *DeserializationError) Unwrap() error { return e.Err }

func (e *DeserializationError) Is(target error) bool { return target == ErrDeserialization }

type snapshot struct {
	Version        int `yaml:"version"`
	PipelineConfig `yaml:",inline"`
}

// Snapshot serializes p as a versioned YAML document holding its name, id,
// mode, resolved schema names and ordered step names. Steps are stored by
// name only, so every step must be registered under its Name to be restored.
func Snapshot(p *pipeline.Pipeline) ([]byte, error) {
	if p == nil {
		return nil, errors.New("snapshot: pipeline is nil")
	}
	cfg := PipelineConfig{
		Name: p.Name(),
		ID:   p.ID(),
		Mode: p.Mode().String(),
	}
	if s := p.InputSchema(); s != nil {
		cfg.Input = s.Name()
	}
	if s := p.OutputSchema(); s != nil {
		cfg.Output = s.Name()
	}
	for i, s := range p.Steps() {
		if s.Name() == "" {
			return nil, fmt.Errorf("snapshot: step %d has no name", i)
		}
		ref := StepRef{Name: s.Name()}
		if l := s.Label(); l != s.Name() {
			ref.Label = l
		}
		cfg.Steps = append(cfg.Steps, ref)
	}
	out, err := yaml.Marshal(snapshot{Version: SnapshotVersion, PipelineConfig: cfg})
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return out, nil
}

// Restore rebuilds a pipeline from a Snapshot blob, resolving steps and
// schemas through reg. It either restores the whole pipeline or fails with
// *DeserializationError.
func Restore(reg *Registry, blob []byte, opts ...pipeline.Option) (*pipeline.Pipeline, error) {
	var doc snapshot
	if err := yaml.Unmarshal(blob, &doc); err != nil {
		return nil, &DeserializationError{Reason: "corrupt snapshot", Err: err}
	}
	if doc.Version != SnapshotVersion {
		return nil, &DeserializationError{Reason: fmt.Sprintf("unsupported snapshot version %d (want %d)", doc.Version, SnapshotVersion)}
	}
	if doc.Name == "" && doc.ID == "" {
		return nil, &DeserializationError{Reason: "snapshot has no pipeline name or id"}
	}
	p, err := BuildPipeline(reg, &doc.PipelineConfig, opts...)
	if err != nil {
		return nil, &DeserializationError{Reason: "unresolvable snapshot", Err: err}
	}
	return p, nil
}
