package httpapi

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/pkg/errors"

	"github.com/Tailen/brickblock/drawer"
	"github.com/Tailen/brickblock/measure"
	"github.com/Tailen/brickblock/observer"
	"github.com/Tailen/brickblock/pipeline"
)

// maxBodyBytes bounds the JSON input accepted by the build and stream endpoints.
const maxBodyBytes = 1 << 20

// BuildHandler runs p's structured build over the JSON object in the request
// body and responds with the pipeline.Result. Failed builds are reported in
// the result with status 200, as the result carries its own status.
func BuildHandler(p *pipeline.Pipeline, log *slog.Logger) http.Handler {
	log = orDefault(log)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		input, err := decodeInput(w, r)
		if err != nil {
			writeError(w, log, http.StatusBadRequest, err)
			return
		}
		res := p.BuildContext(r.Context(), input)
		if res.Status == pipeline.StatusFailed {
			log.InfoContext(r.Context(), "build failed", "pipeline", p.Name(), "message", res.Message)
		}
		writeJSON(w, log, http.StatusOK, res)
	})
}

// StreamHandler runs p as a progress stream over the JSON object in the
// request body and writes the events as server-sent events. The stream stops
// when the client goes away.
func StreamHandler(p *pipeline.Pipeline, log *slog.Logger) http.Handler {
	log = orDefault(log)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		input, err := decodeInput(w, r)
		if err != nil {
			writeError(w, log, http.StatusBadRequest, err)
			return
		}
		events, err := p.Stream(r.Context(), input)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, pipeline.ErrNoSteps) {
				status = http.StatusInternalServerError
			}
			writeError(w, log, status, err)
			return
		}
		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		if err := pipeline.WriteFrames(w, events); err != nil {
			log.WarnContext(r.Context(), "stream aborted", "pipeline", p.Name(), "error", err)
		}
	})
}

// SchemaResponse describes a pipeline's interface.
type SchemaResponse struct {
	Name   string         `json:"name"`
	ID     string         `json:"id"`
	Mode   string         `json:"mode"`
	Input  map[string]any `json:"input"`
	Output map[string]any `json:"output"`
	Steps  []string       `json:"steps"`
}

// SchemaHandler responds with the input and output schema descriptors of p
// and the labels of its steps.
func SchemaHandler(p *pipeline.Pipeline, log *slog.Logger) http.Handler {
	log = orDefault(log)
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		steps := p.Steps()
		labels := make([]string, len(steps))
		for i, s := range steps {
			labels[i] = s.Label()
		}
		writeJSON(w, log, http.StatusOK, SchemaResponse{
			Name:   p.Name(),
			ID:     p.ID(),
			Mode:   p.Mode().String(),
			Input:  p.InputSchemaDescriptor(),
			Output: p.OutputSchemaDescriptor(),
			Steps:  labels,
		})
	})
}

// GraphHandler responds with p's step chain in DOT language, annotated with
// msr's step timings when msr is not nil.
func GraphHandler(p *pipeline.Pipeline, msr measure.Measure, log *slog.Logger) http.Handler {
	log = orDefault(log)
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		d, err := drawer.New(p)
		if err != nil {
			writeError(w, log, http.StatusInternalServerError, err)
			return
		}
		if msr != nil {
			if err := d.AddMeasure(msr); err != nil {
				writeError(w, log, http.StatusInternalServerError, err)
				return
			}
		}
		w.Header().Set("Content-Type", "text/vnd.graphviz")
		if err := d.Draw(w); err != nil {
			log.Warn("unable to write graph", "pipeline", p.Name(), "error", err)
		}
	})
}

// RunHandler responds with the recorded run named by the {id} path value.
func RunHandler(store *observer.RunStore, log *slog.Logger) http.Handler {
	log = orDefault(log)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		run, ok := store.Get(id)
		if !ok {
			writeError(w, log, http.StatusNotFound, errors.Errorf("run %q not found", id))
			return
		}
		writeJSON(w, log, http.StatusOK, run)
	})
}

// RunsHandler responds with all recorded runs, most recent first.
func RunsHandler(store *observer.RunStore, log *slog.Logger) http.Handler {
	log = orDefault(log)
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, log, http.StatusOK, store.List())
	})
}

func decodeInput(w http.ResponseWriter, r *http.Request) (map[string]any, error) {
	var input map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&input); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("request body must be a JSON object")
		}
		return nil, errors.Wrap(err, "decode request body")
	}
	if input == nil {
		return nil, errors.New("request body must be a JSON object")
	}
	return input, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, log *slog.Logger, status int, err error) {
	writeJSON(w, log, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("unable to write response", "error", err)
	}
}

func orDefault(log *slog.Logger) *slog.Logger {
	if log == nil {
		return slog.Default()
	}
	return log
}
