package schema_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tailen/brickblock/schema"
)

type point struct {
	X int `json:"x"`
}

type otherPoint struct {
	X int `json:"x"`
}

type order struct {
	ID      string            `json:"id"`
	Items   []point           `json:"items"`
	Note    string            `json:"note,omitempty"`
	Owner   *point            `json:"owner"`
	Labels  map[string]string `json:"labels,omitempty"`
	Created time.Time         `json:"created"`
	secret  string
}

func TestFor_SameTypeSameSchema(t *testing.T) {
	t.Parallel()

	a := schema.MustFor[point]()
	b := schema.MustFor[point]()
	assert.Equal(t, a, b)
	assert.True(t, a == b)
	assert.NotEqual(t, a, schema.MustFor[otherPoint]())
	assert.Equal(t, "point", a.Name())
}

func TestFor_NotStruct(t *testing.T) {
	t.Parallel()

	_, err := schema.For[int]()
	require.Error(t, err)
	assert.Panics(t, func() { schema.MustFor[string]() })
}

func TestNew(t *testing.T) {
	t.Parallel()

	s := schema.MustFor[point]()
	v, err := s.New(map[string]any{"x": 1, "extra": true})
	require.NoError(t, err)
	assert.Equal(t, point{X: 1}, v)
	assert.True(t, s.Is(v))
}

func TestNew_Invalid(t *testing.T) {
	t.Parallel()

	s := schema.MustFor[point]()
	tcs := map[string]map[string]any{
		"wrong type": {"x": "not-a-number"},
		"missing":    {},
		"null":       {"x": nil},
		"fraction":   {"x": 1.5},
	}
	for name, data := range tcs {
		data := data
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := s.New(data)
			require.Error(t, err)
			var verr *schema.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, "point", verr.Schema)
		})
	}
}

func TestNew_OptionalFields(t *testing.T) {
	t.Parallel()

	s := schema.MustFor[order]()
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	v, err := s.New(map[string]any{
		"id":      "o-1",
		"items":   []any{map[string]any{"x": 2}},
		"owner":   nil,
		"created": created.Format(time.RFC3339),
	})
	require.NoError(t, err)
	o := v.(order)
	assert.Equal(t, "o-1", o.ID)
	assert.Equal(t, []point{{X: 2}}, o.Items)
	assert.Nil(t, o.Owner)
	assert.True(t, created.Equal(o.Created))
}

func TestDump(t *testing.T) {
	t.Parallel()

	s := schema.MustFor[order]()
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	got, err := s.Dump(order{ID: "o-1", Items: []point{{X: 3}}, Owner: &point{X: 9}, Created: created, secret: "s"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"id":      "o-1",
		"items":   []any{map[string]any{"x": 3}},
		"note":    "",
		"owner":   map[string]any{"x": 9},
		"labels":  nil,
		"created": created,
	}, got)

	_, err = s.Dump(point{})
	assert.Error(t, err)
}

func TestCoerce(t *testing.T) {
	t.Parallel()

	s := schema.MustFor[point]()
	v, err := schema.Coerce(s, otherPoint{X: 5})
	require.NoError(t, err)
	assert.Equal(t, point{X: 5}, v)

	v, err = schema.Coerce(s, map[string]any{"x": 6})
	require.NoError(t, err)
	assert.Equal(t, point{X: 6}, v)

	same := point{X: 7}
	v, err = schema.Coerce(s, same)
	require.NoError(t, err)
	assert.Equal(t, same, v)

	_, err = schema.Coerce(s, 42)
	assert.Error(t, err)
}

func TestIsInstance(t *testing.T) {
	t.Parallel()

	assert.True(t, schema.IsInstance(point{}))
	assert.True(t, schema.IsInstance(&point{}))
	assert.False(t, schema.IsInstance(map[string]any{}))
	assert.False(t, schema.IsInstance(nil))
	assert.False(t, schema.IsInstance(3))
}

func TestNew_MissingPointerField(t *testing.T) {
	t.Parallel()

	_, err := schema.MustFor[order]().New(map[string]any{"id": "o-1", "items": nil, "created": time.Now()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `field "owner": field required`)
}

type inner struct {
	Name string `json:"name"`
}

type outer struct {
	Inner  inner            `json:"inner"`
	List   []inner          `json:"list,omitempty"`
	ByName map[string]inner `json:"by_name,omitempty"`
	Ref    *inner           `json:"ref,omitempty"`
}

func TestNew_NestedRequired(t *testing.T) {
	t.Parallel()

	s := schema.MustFor[outer]()
	tcs := map[string]struct {
		data map[string]any
		path string
	}{
		"object":  {map[string]any{"inner": map[string]any{}}, `"inner.name"`},
		"array":   {map[string]any{"inner": map[string]any{"name": "a"}, "list": []any{map[string]any{"name": "b"}, map[string]any{}}}, `"list[1].name"`},
		"map":     {map[string]any{"inner": map[string]any{"name": "a"}, "by_name": map[string]any{"k": map[string]any{"name": nil}}}, `"by_name.k.name"`},
		"pointer": {map[string]any{"inner": map[string]any{"name": "a"}, "ref": map[string]any{}}, `"ref.name"`},
	}
	for name, tc := range tcs {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := s.New(tc.data)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.path)
		})
	}

	v, err := s.New(map[string]any{"inner": map[string]any{"name": "a"}, "list": []any{map[string]any{"name": "b"}}})
	require.NoError(t, err)
	assert.Equal(t, outer{Inner: inner{Name: "a"}, List: []inner{{Name: "b"}}}, v)
}

type bag struct {
	Tags  []string       `json:"tags"`
	Attrs map[string]int `json:"attrs"`
}

type otherBag struct {
	Tags  []string       `json:"tags"`
	Attrs map[string]int `json:"attrs"`
}

func TestCoerce_NilCollections(t *testing.T) {
	t.Parallel()

	s := schema.MustFor[bag]()
	v, err := schema.Coerce(s, otherBag{})
	require.NoError(t, err)
	assert.Equal(t, bag{}, v)

	v, err = s.New(map[string]any{"tags": nil, "attrs": nil})
	require.NoError(t, err)
	assert.Equal(t, bag{}, v)

	_, err = s.New(map[string]any{"tags": nil})
	assert.Error(t, err, "attrs is required even though it may be null")
}

func TestDescriptor(t *testing.T) {
	t.Parallel()

	desc := schema.MustFor[order]().Descriptor()
	assert.Equal(t, "order", desc["title"])
	assert.Equal(t, "object", desc["type"])
	assert.ElementsMatch(t, []any{"id", "items", "owner", "created"}, desc["required"])

	props := desc["properties"].(map[string]any)
	assert.Equal(t, map[string]any{"type": "string"}, props["id"])
	assert.Equal(t, map[string]any{"type": "string", "format": "date-time"}, props["created"])
	items := props["items"].(map[string]any)
	assert.Equal(t, "array", items["type"])
	assert.Equal(t, "#/$defs/point", items["items"].(map[string]any)["$ref"])
	assert.NotContains(t, props, "secret")

	defs := desc["$defs"].(map[string]any)
	point := defs["point"].(map[string]any)
	assert.Equal(t, []any{"x"}, point["required"])

	// Each call returns an independent copy.
	desc["title"] = "changed"
	assert.Equal(t, "order", schema.MustFor[order]().Descriptor()["title"])
}
