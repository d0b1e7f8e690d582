package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func TestExtraBodyRoundTripperMergesGrammarPayload(t *testing.T) {
	var capturedBody []byte
	rt := &extraBodyRoundTripper{next: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedBody, _ = io.ReadAll(req.Body)
		return &http.Response{StatusCode: 200, Body: io.NopCloser(bytes.NewReader(nil))}, nil
	})}

	body := []byte(`{"model":"gpt-4o-mini"}`)
	req, err := http.NewRequest(http.MethodPost, "http://example.test/v1/chat/completions", bytes.NewReader(body))
	require.NoError(t, err)
	req = req.WithContext(withExtraBody(req.Context(), map[string]any{"structured_outputs": map[string]any{"type": "grammar"}}))

	_, err = rt.RoundTrip(req)
	require.NoError(t, err)

	var merged map[string]any
	require.NoError(t, json.Unmarshal(capturedBody, &merged))
	require.Equal(t, "gpt-4o-mini", merged["model"])
	require.Contains(t, merged, "extra_body")
}

func TestExtraBodyRoundTripperPassesThroughWithoutContextValue(t *testing.T) {
	var called bool
	rt := &extraBodyRoundTripper{next: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		called = true
		return &http.Response{StatusCode: 200, Body: io.NopCloser(bytes.NewReader(nil))}, nil
	})}

	req, err := http.NewRequest(http.MethodPost, "http://example.test", bytes.NewReader([]byte(`{}`)))
	require.NoError(t, err)

	_, err = rt.RoundTrip(req)
	require.NoError(t, err)
	require.True(t, called)
}
