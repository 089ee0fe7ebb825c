package httpapi_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tailen/brickblock/httpapi"
	"github.com/Tailen/brickblock/measure"
	"github.com/Tailen/brickblock/observer"
	"github.com/Tailen/brickblock/pipeline"
)

type num struct {
	X int `json:"x"`
}

type incModule struct{}

func (incModule) OnProgressStart(context.Context, num) (string, error) { return "incrementing", nil }
func (incModule) Run(_ context.Context, n num) (num, error) { return num{X: n.X + 1}, nil }
func (incModule) OnProgressEnd(context.Context, num) (string, error) { return "incremented", nil }

func newServer(t *testing.T) (*httptest.Server, *observer.RunStore) {
	t.Helper()
	runs := observer.NewRunStore(0)
	rec := measure.NewRecorder()

	numbers := pipeline.New("numbers", pipeline.WithID("p-1"), pipeline.WithObserver(pipeline.MultiObserver(runs, rec)))
	require.NoError(t, numbers.Append(pipeline.Func("double", func(n num) (num, error) { return num{X: n.X * 2}, nil })))

	inc := pipeline.ModuleOf[num, num]("inc", func() pipeline.TypedModule[num, num] { return incModule{} })
	modules := pipeline.New("modules", pipeline.WithMode(pipeline.ModeModule))
	require.NoError(t, modules.Append(inc, inc))

	h, err := httpapi.NewRouter(map[string]*pipeline.Pipeline{
		"numbers": numbers,
		"modules": modules,
	}, httpapi.WithRunStore(runs), httpapi.WithMeasure("numbers", rec))
	require.NoError(t, err)
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	return ts, runs
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestBuild(t *testing.T) {
	t.Parallel()

	ts, runs := newServer(t)
	resp := post(t, ts.URL+"/numbers/build", `{"x": 21}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var res pipeline.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, pipeline.StatusSuccess, res.Status)
	assert.Equal(t, "Pipeline built successfully.", res.Message)
	assert.EqualValues(t, 42, res.Result["x"])

	list := runs.List()
	require.Len(t, list, 1)
	assert.Equal(t, observer.StatusSuccess, list[0].Status)
}

func TestBuild_Failed(t *testing.T) {
	t.Parallel()

	ts, _ := newServer(t)
	resp := post(t, ts.URL+"/numbers/build", `{"y": 1}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res pipeline.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, pipeline.StatusFailed, res.Status)
	assert.Contains(t, res.Message, "Input data validation error")
}

func TestBuild_BadBody(t *testing.T) {
	t.Parallel()

	ts, _ := newServer(t)
	for _, body := range []string{"", "[1, 2]", "{", "null"} {
		resp := post(t, ts.URL+"/numbers/build", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestStream(t *testing.T) {
	t.Parallel()

	ts, _ := newServer(t)
	resp := post(t, ts.URL+"/modules/stream", `{"x": 1}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	frames := strings.Split(strings.TrimSuffix(string(raw), "\n\n"), "\n\n")
	require.Len(t, frames, 7)

	var first, last pipeline.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frames[0], "data: ")), &first))
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frames[6], "data: ")), &last))
	assert.Equal(t, pipeline.EventStart, first.Status)
	assert.Equal(t, "incrementing", first.Message)
	assert.Equal(t, pipeline.EventEnd, last.Status)
}

func TestStream_InvalidInput(t *testing.T) {
	t.Parallel()

	ts, _ := newServer(t)
	resp := post(t, ts.URL+"/modules/stream", `{"x": "one"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSchema(t *testing.T) {
	t.Parallel()

	ts, _ := newServer(t)
	resp, err := http.Get(ts.URL + "/numbers/schema")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sr httpapi.SchemaResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sr))
	assert.Equal(t, "numbers", sr.Name)
	assert.Equal(t, "p-1", sr.ID)
	assert.Equal(t, "function", sr.Mode)
	assert.Equal(t, []string{"double"}, sr.Steps)
	assert.NotEmpty(t, sr.Input)
	assert.NotEmpty(t, sr.Output)
}

func TestGraph(t *testing.T) {
	t.Parallel()

	ts, _ := newServer(t)
	post(t, ts.URL+"/numbers/build", `{"x": 1}`)

	resp, err := http.Get(ts.URL + "/numbers/graph")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "digraph")
	assert.Contains(t, string(body), `"1. double"`)
	assert.Contains(t, string(body), "xlabel=")
}

func TestRuns(t *testing.T) {
	t.Parallel()

	ts, runs := newServer(t)
	post(t, ts.URL+"/numbers/build", `{"x": 2}`)
	list := runs.List()
	require.Len(t, list, 1)

	resp, err := http.Get(ts.URL + "/runs/" + list[0].ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var run observer.Run
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	assert.Equal(t, "numbers", run.Pipeline)
	assert.JSONEq(t, `{"x":4}`, string(run.Result))

	missing, err := http.Get(ts.URL + "/runs/nope")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	all, err := http.Get(ts.URL + "/runs")
	require.NoError(t, err)
	defer all.Body.Close()
	var listed []observer.Run
	require.NoError(t, json.NewDecoder(all.Body).Decode(&listed))
	assert.Len(t, listed, 1)
}

func TestRouting(t *testing.T) {
	t.Parallel()

	ts, _ := newServer(t)
	resp, err := http.Get(ts.URL + "/numbers/build")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp2 := post(t, ts.URL+"/unknown/build", `{}`)
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestNewRouter_InvalidName(t *testing.T) {
	t.Parallel()

	p := pipeline.New("x")
	for _, name := range []string{"", "runs", "a/b", "{x}"} {
		_, err := httpapi.NewRouter(map[string]*pipeline.Pipeline{name: p})
		assert.Error(t, err, name)
	}
	_, err := httpapi.NewRouter(map[string]*pipeline.Pipeline{"nil": nil})
	assert.Error(t, err)
}
