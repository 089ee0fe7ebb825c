// Package config provides a step registry, human-readable pipeline
// configuration and pipeline snapshots.
//
// Register steps (their schemas are registered with them), then define
// pipelines in YAML that reference those names:
//
//	numbers:
//	  name: numbers
//	  mode: function
//	  output: num
//	  steps:
//	    - addOne
//	    - name: double
//	      label: Double it
//
// Build a pipeline with BuildPipeline(registry, config). Snapshot writes the
// same structure plus a format version; Restore rebuilds the pipeline from it
// through the registry and fails with *DeserializationError when it cannot.
package config
