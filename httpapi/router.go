// Package httpapi exposes pipelines over HTTP.
//
// NewRouter mounts, for every named pipeline:
//
//	POST /{name}/build   structured build, JSON pipeline.Result
//	POST /{name}/stream  progress events as server-sent events
//	GET  /{name}/schema  input/output schema descriptors
//	GET  /{name}/graph   step chain in DOT language
//
// and, when a run store is configured, GET /runs and GET /runs/{id}.
package httpapi

import (
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/Tailen/brickblock/measure"
	"github.com/Tailen/brickblock/observer"
	"github.com/Tailen/brickblock/pipeline"
)

type routerOptions struct {
	log      *slog.Logger
	runs     *observer.RunStore
	measures map[string]measure.Measure
}

// Option configures NewRouter.
type Option func(*routerOptions)

// WithLogger sets the logger used by the handlers.
func WithLogger(log *slog.Logger) Option {
	return func(o *routerOptions) { o.log = log }
}

// WithRunStore mounts the run inspection endpoints backed by store.
func WithRunStore(store *observer.RunStore) Option {
	return func(o *routerOptions) { o.runs = store }
}

// WithMeasure annotates the graph of the named pipeline with msr's timings.
func WithMeasure(name string, msr measure.Measure) Option {
	return func(o *routerOptions) { o.measures[name] = msr }
}

// NewRouter returns a handler serving the given pipelines by name. Names must
// be usable as a single path segment and must not be "runs".
func NewRouter(pipelines map[string]*pipeline.Pipeline, opts ...Option) (http.Handler, error) {
	o := &routerOptions{measures: make(map[string]measure.Measure)}
	for _, opt := range opts {
		opt(o)
	}
	log := orDefault(o.log)

	names := make([]string, 0, len(pipelines))
	for name := range pipelines {
		names = append(names, name)
	}
	sort.Strings(names)

	mux := http.NewServeMux()
	for _, name := range names {
		p := pipelines[name]
		if p == nil {
			return nil, errors.Errorf("pipeline %q is nil", name)
		}
		if name == "" || name == "runs" || strings.ContainsAny(name, "/{} ") {
			return nil, errors.Errorf("invalid pipeline name %q", name)
		}
		prefix := "/" + name
		mux.Handle("POST "+prefix+"/build", BuildHandler(p, log))
		mux.Handle("POST "+prefix+"/stream", StreamHandler(p, log))
		mux.Handle("GET "+prefix+"/schema", SchemaHandler(p, log))
		mux.Handle("GET "+prefix+"/graph", GraphHandler(p, o.measures[name], log))
		log.Debug("pipeline mounted", "pipeline", name, "path", prefix)
	}
	if o.runs != nil {
		mux.Handle("GET /runs", RunsHandler(o.runs, log))
		mux.Handle("GET /runs/{id}", RunHandler(o.runs, log))
	}
	return mux, nil
}
