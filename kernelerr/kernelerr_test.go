package kernelerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKernelErrorWrapsCause(t *testing.T) {
	cause := errors.New("connection refused")

	err := NewKernelError(3, "model_call", "chat completion failed", cause)

	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "turn=3")
	require.Contains(t, err.Error(), "model_call")
}

func TestToolExecutionErrorAs(t *testing.T) {
	err := NewToolExecutionError("search", "call_1", "backend_unavailable", "backend down", nil)

	var te *ToolExecutionError
	require.True(t, errors.As(err, &te))
	require.Equal(t, "search", te.ToolName)
}

func TestClassifyProviderErrorPreservesExisting(t *testing.T) {
	original := NewProviderError(ProviderRateLimited, "rate limited", nil)

	classified := ClassifyProviderError(original)

	require.Same(t, original, classified)
}

func TestClassifyProviderErrorDefaultsUnknown(t *testing.T) {
	classified := ClassifyProviderError(errors.New("boom"))

	require.Equal(t, ProviderUnknown, classified.Kind)
}

func TestBundleErrorIncludesPath(t *testing.T) {
	err := NewBundleError("/bundles/demo/bundle.yaml", "missing field: name", nil)

	require.Contains(t, err.Error(), "/bundles/demo/bundle.yaml")
}
