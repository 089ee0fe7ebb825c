package schema

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// reflector keeps the root object inline and moves nested structs to $defs.
// Unknown keys are ignored by New, so additional properties are allowed.
var reflector = &jsonschema.Reflector{
	Anonymous:                 true,
	AllowAdditionalProperties: true,
	ExpandedStruct:            true,
}

// describe returns a fresh copy of the JSON Schema of s, reflected once.
func (s *structSchema) describe() (map[string]any, error) {
	s.descOnce.Do(func() {
		s.desc, s.descErr = json.Marshal(reflector.ReflectFromType(s.typ))
	})
	if s.descErr != nil {
		return nil, s.descErr
	}
	var desc map[string]any
	if err := json.Unmarshal(s.desc, &desc); err != nil {
		return nil, err
	}
	desc["title"] = s.name
	return desc, nil
}
