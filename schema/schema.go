package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

var timeType = reflect.TypeOf(time.Time{})

// Schema describes the shape of the data flowing into or out of a step.
// Instances are plain Go struct values of the schema's type.
type Schema interface {
	// Name identifies the schema in descriptors and snapshots.
	Name() string
	// New constructs an instance from a mapping. Unknown keys are ignored.
	New(data map[string]any) (any, error)
	// Dump converts an instance of this schema back into a mapping.
	Dump(v any) (map[string]any, error)
	// Is reports whether v is an instance of exactly this schema's type.
	Is(v any) bool
	// Descriptor returns a JSON-Schema-like description of the schema.
	Descriptor() map[string]any
}

// ValidationError is returned by New when data does not fit the schema.
type ValidationError struct {
	Schema string
	Err    error
}

func (e *ValidationError) Error() string { return fmt.Sprintf("%s: %v", e.Schema, e.Err) }
func (e *ValidationError) Unwrap() error { return e.Err }

type field struct {
	key      string
	index    []int
	required bool
	typ      reflect.Type
}

type structSchema struct {
	name   string
	typ    reflect.Type
	fields []field

	descOnce sync.Once
	desc     []byte
	descErr  error
}

var cache sync.Map // reflect.Type -> *structSchema

// For returns the schema of struct type T. The same T always yields the same
// Schema value, so schemas can be compared with ==.
func For[T any]() (Schema, error) {
	return ForType(reflect.TypeOf((*T)(nil)).Elem())
}

// MustFor is like For but panics if T is not a struct type.
func MustFor[T any]() Schema {
	s, err := For[T]()
	if err != nil {
		panic(err)
	}
	return s
}

// ForType returns the schema of the struct type t.
func ForType(t reflect.Type) (Schema, error) {
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("schema: %v is not a struct type", t)
	}
	if s, ok := cache.Load(t); ok {
		return s.(*structSchema), nil
	}
	name := t.Name()
	if name == "" {
		name = t.String()
	}
	s := &structSchema{name: name, typ: t, fields: fieldsOf(t, nil)}
	actual, _ := cache.LoadOrStore(t, s)
	return actual.(*structSchema), nil
}

func fieldsOf(t reflect.Type, prefix []int) []field {
	var out []field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		index := append(append([]int{}, prefix...), i)
		key, opts, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if key == "-" && opts == "" {
			continue
		}
		if sf.Anonymous && key == "" && sf.Type.Kind() == reflect.Struct {
			out = append(out, fieldsOf(sf.Type, index)...)
			continue
		}
		if key == "" {
			key = sf.Name
		}
		out = append(out, field{
			key:      key,
			index:    index,
			required: !strings.Contains(opts, "omitempty"),
			typ:      sf.Type,
		})
	}
	return out
}

func (s *structSchema) Name() string { return s.name }

func (s *structSchema) New(data map[string]any) (any, error) {
	if err := checkFields(s.fields, data, ""); err != nil {
		return nil, s.invalid(err)
	}
	ptr := reflect.New(s.typ)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.TextUnmarshallerHookFunc(),
			integralHook,
		),
		Squash:  true,
		TagName: "json",
		Result:  ptr.Interface(),
	})
	if err != nil {
		return nil, s.invalid(err)
	}
	if err := dec.Decode(data); err != nil {
		return nil, s.invalid(err)
	}
	return ptr.Elem().Interface(), nil
}

// checkFields reports the first required field of data that is missing, or
// null where its Go type cannot hold nil. Nested objects, and objects inside
// arrays and maps, are checked against their own fields.
func checkFields(fields []field, data map[string]any, prefix string) error {
	for _, f := range fields {
		path := prefix + f.key
		v, ok := data[f.key]
		if !ok {
			if f.required {
				return fmt.Errorf("field %q: field required", path)
			}
			continue
		}
		if v == nil {
			if f.required && !nilable(f.typ) {
				return fmt.Errorf("field %q: must not be null", path)
			}
			continue
		}
		if err := checkValue(f.typ, v, path); err != nil {
			return err
		}
	}
	return nil
}

func checkValue(t reflect.Type, v any, path string) error {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Struct:
		m, ok := v.(map[string]any)
		if !ok || t == timeType {
			return nil
		}
		return checkFields(fieldsOf(t, nil), m, path+".")
	case reflect.Slice, reflect.Array:
		items, ok := v.([]any)
		if !ok {
			return nil
		}
		for i, item := range items {
			if item == nil {
				continue
			}
			if err := checkValue(t.Elem(), item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case reflect.Map:
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		for k, item := range m {
			if item == nil {
				continue
			}
			if err := checkValue(t.Elem(), item, path+"."+k); err != nil {
				return err
			}
		}
	}
	return nil
}

func nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return true
	}
	return false
}

// integralHook rejects fractional numbers for integer fields instead of
// truncating them.
var integralHook mapstructure.DecodeHookFuncType = func(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.Float32 && from.Kind() != reflect.Float64 {
		return data, nil
	}
	switch to.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		f := reflect.ValueOf(data).Float()
		if f != math.Trunc(f) {
			return nil, fmt.Errorf("%v is not an integer", f)
		}
	}
	return data, nil
}

func (s *structSchema) invalid(err error) error {
	return &ValidationError{Schema: s.name, Err: err}
}

func (s *structSchema) Dump(v any) (map[string]any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	if !rv.IsValid() || rv.Type() != s.typ {
		return nil, fmt.Errorf("schema %s: cannot dump %T", s.name, v)
	}
	return dumpStruct(rv, s.fields), nil
}

func (s *structSchema) Is(v any) bool {
	return v != nil && reflect.TypeOf(v) == s.typ
}

func (s *structSchema) Descriptor() map[string]any {
	desc, err := s.describe()
	if err != nil {
		return map[string]any{"title": s.name, "type": "object"}
	}
	return desc
}

// IsInstance reports whether v is a schema instance, i.e. a struct value or a
// non-nil pointer to one.
func IsInstance(v any) bool {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	return rv.Kind() == reflect.Struct
}

// Dump converts any struct instance into a mapping using its own schema.
func Dump(v any) (map[string]any, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("schema: cannot dump %T", v)
	}
	s, err := ForType(rv.Type())
	if err != nil {
		return nil, err
	}
	return s.Dump(rv.Interface())
}

// Coerce reconstructs v as an instance of s by dumping and rebuilding it.
// Values already of s's type are returned unchanged; mappings are built directly.
func Coerce(s Schema, v any) (any, error) {
	if s.Is(v) {
		return v, nil
	}
	if m, ok := v.(map[string]any); ok {
		return s.New(m)
	}
	data, err := Dump(v)
	if err != nil {
		return nil, err
	}
	return s.New(data)
}

func dumpStruct(rv reflect.Value, fields []field) map[string]any {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		fv, err := rv.FieldByIndexErr(f.index)
		if err != nil {
			continue
		}
		out[f.key] = dumpValue(fv)
	}
	return out
}

var jsonMarshaler = reflect.TypeOf((*json.Marshaler)(nil)).Elem()

func dumpValue(rv reflect.Value) any {
	if !rv.IsValid() {
		return nil
	}
	if rv.Type().Implements(jsonMarshaler) {
		return rv.Interface()
	}
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
		return dumpValue(rv.Elem())
	case reflect.Struct:
		s, err := ForType(rv.Type())
		if err != nil {
			return rv.Interface()
		}
		return dumpStruct(rv, s.(*structSchema).fields)
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return rv.Interface()
		}
		fallthrough
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = dumpValue(rv.Index(i))
		}
		return out
	case reflect.Map:
		if rv.IsNil() {
			return nil
		}
		if rv.Type().Key().Kind() != reflect.String {
			return rv.Interface()
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = dumpValue(iter.Value())
		}
		return out
	default:
		return rv.Interface()
	}
}
