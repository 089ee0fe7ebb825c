package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/Tailen/brickblock/pipeline"
)

// FetchRequest is the input of a Fetch step.
type FetchRequest struct {
	URL string `json:"url"`
}

// FetchResponse is the output of a Fetch step. JSON holds the decoded body
// when the response is a JSON object.
type FetchResponse struct {
	URL        string         `json:"url"`
	StatusCode int            `json:"status_code"`
	Body       string         `json:"body"`
	JSON       map[string]any `json:"json,omitempty"`
}

// Fetch returns a function step named "fetch" that performs an HTTP GET to
// the request's URL with the run's context and fails on a non-2xx status. If
// client is nil, http.DefaultClient is used.
func Fetch(client *http.Client) *pipeline.FunctionStep {
	if client == nil {
		client = http.DefaultClient
	}
	return pipeline.ContextFunc("fetch", func(ctx context.Context, in FetchRequest) (FetchResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.URL, nil)
		if err != nil {
			return FetchResponse{}, errors.Wrap(err, "fetch: new request")
		}
		resp, err := client.Do(req)
		if err != nil {
			return FetchResponse{}, errors.Wrapf(err, "fetch %q", in.URL)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return FetchResponse{}, pipeline.ValueErr(errors.Errorf("fetch %q: status %d", in.URL, resp.StatusCode))
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return FetchResponse{}, errors.Wrapf(err, "fetch %q: read body", in.URL)
		}
		out := FetchResponse{URL: in.URL, StatusCode: resp.StatusCode, Body: string(body)}
		var obj map[string]any
		if json.Unmarshal(body, &obj) == nil {
			out.JSON = obj
		}
		return out, nil
	})
}
