// Package schema turns Go struct types into the schemas that guard pipeline
// boundaries.
//
// A schema constructs instances from mappings (failing with *ValidationError on
// a missing required field or a type mismatch), dumps instances back to
// mappings, checks schema identity by concrete type, and describes itself as a
// JSON-Schema-like mapping for callers that never touch Go types:
//
//	type Input struct {
//	    X int `json:"x"`
//	}
//
//	in := schema.MustFor[Input]()
//	v, err := in.New(map[string]any{"x": 1}) // v is Input{X: 1}
//
// Fields are keyed by their json tag. A field is required unless tagged
// omitempty; null is accepted only where the Go type can hold nil (pointers,
// slices, maps and interfaces). Nested objects are checked the same way.
// Descriptors are JSON Schema documents with nested structs under $defs.
package schema
