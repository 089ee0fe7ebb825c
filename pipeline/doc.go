// Package pipeline composes typed steps into a linear chain and executes it.
// Each step consumes an instance of its input schema and produces an instance
// of its output schema; the output of one step is the input of the next.
//
// A Pipeline is created in one of two modes. Function-mode pipelines hold
// FunctionSteps, built with Func, ContextFunc, NewFunctionStep or Wrap from a
// named Go function. Module-mode pipelines hold ModuleSteps, whose modules
// report human-readable progress before and after their Run.
//
//	p := pipeline.New("numbers")
//	if err := p.Append(addOne, double); err != nil {
//		return err
//	}
//	res := p.Build(map[string]any{"x": 1})
//	// res.Status == pipeline.StatusSuccess, res.Result == {"x": 4}
//
// The boundary schemas are inferred when steps are appended: the input schema
// from the first step and the output schema from the last. WithInputSchema and
// WithOutputSchema set them explicitly, but only if called before inference;
// the first write per side wins.
//
// # Executing
//
// ToFunction and ToContextFunction compile the pipeline into a blocking Unit or
// a context-aware ContextUnit. Build and BuildContext wrap them in an error
// boundary and report a Result with status, result and message instead of
// returning errors; step faults marked with TypeErr or ValueErr are reported
// by category. Run returns the raw output and propagates failures.
//
// Optional hooks (Observer) are called around context-aware runs with a run id
// per invocation: BeforePipeline, BeforeStep/AfterStep (with elapsed time) and
// AfterPipeline. Pass WithObserver to New; MultiObserver combines several.
//
// # Progress streaming
//
// Stream runs a module-mode pipeline and sends a start, completed and end
// Event per step plus a terminal End event. Event.Frame renders the
// server-sent-events wire form and WriteFrames copies a stream to a writer.
// RunModules is the same iteration without events; the progress messages
// are dropped.
package pipeline
