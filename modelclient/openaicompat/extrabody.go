package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
)

type extraBodyKey struct{}

// withExtraBody attaches the grammar payload to ctx so extraBodyRoundTripper
// can merge it into the outgoing request body. The value never crosses a
// goroutine boundary beyond the single ChatCompletion call that set it.
func withExtraBody(ctx context.Context, body any) context.Context {
	return context.WithValue(ctx, extraBodyKey{}, body)
}

// extraBodyRoundTripper merges a per-request extra body (carried via
// context) into the outgoing JSON payload before delegating to the wrapped
// transport. This is how the grammar constraint's extra_body-shaped payload
// reaches an OpenAI-compatible endpoint, since go-openai's request struct
// has no field for it.
type extraBodyRoundTripper struct {
	next http.RoundTripper
}

func newExtraBodyHTTPClient() *http.Client {
	return &http.Client{Transport: &extraBodyRoundTripper{next: http.DefaultTransport}}
}

// RoundTrip implements http.RoundTripper.
func (rt *extraBodyRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	extra := req.Context().Value(extraBodyKey{})
	if extra == nil || req.Body == nil {
		return rt.next.RoundTrip(req)
	}

	raw, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	_ = req.Body.Close()

	var merged map[string]any
	if err := json.Unmarshal(raw, &merged); err != nil {
		// Body wasn't a JSON object; send it through unmodified rather than
		// fail the call over an unrelated request shape.
		req.Body = io.NopCloser(bytes.NewReader(raw))
		req.ContentLength = int64(len(raw))
		return rt.next.RoundTrip(req)
	}
	merged["extra_body"] = extra

	out, err := json.Marshal(merged)
	if err != nil {
		return nil, err
	}
	req.Body = io.NopCloser(bytes.NewReader(out))
	req.ContentLength = int64(len(out))
	return rt.next.RoundTrip(req)
}
