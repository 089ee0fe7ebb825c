// Package observer provides pipeline.Observer implementations.
//
//   - Logger: writes a structured slog record for every pipeline and step
//     hook (run id, step label, elapsed time, error).
//   - RunStore: keeps an in-memory record of recent runs and their steps,
//     with JSON-encoded inputs and outputs, for monitoring. Look runs up by
//     the id from pipeline.RunIDFromContext or list them newest first.
//
// Combine them, and measure.Recorder, with pipeline.MultiObserver.
package observer
