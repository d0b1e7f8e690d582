package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentkernel/structured-agents/modelclient"
	"github.com/agentkernel/structured-agents/types"
)

type stubClient struct {
	response modelclient.Response
}

func (s stubClient) ChatCompletion(context.Context, modelclient.Request) (modelclient.Response, error) {
	return s.response, nil
}

func TestFromBundleAssemblesAgentWithInjectedClient(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
name: demo
model: gpt-4o-mini
initial_context:
  system_prompt: be helpful
max_turns: 3
`)

	content := "hello there"
	a, err := FromBundle(context.Background(), dir, FromBundleOptions{
		Client: stubClient{response: modelclient.Response{Content: &content}},
	})

	require.NoError(t, err)
	require.NotNil(t, a)

	result, err := a.Run(context.Background(), "hi")
	require.NoError(t, err)
	require.Equal(t, types.TerminationNoToolCalls, result.TerminationReason)
	require.Equal(t, "hello there", *result.FinalMessage.Content)
}

func TestFromBundlePropagatesManifestErrors(t *testing.T) {
	_, err := FromBundle(context.Background(), filepath.Join(t.TempDir(), "missing"), FromBundleOptions{})
	require.Error(t, err)
}

func TestResolveClientRequiresModelNameWhenNoClientSupplied(t *testing.T) {
	os.Unsetenv(envBaseURL)
	os.Unsetenv(envAPIKey)

	manifest := &Manifest{Model: ModelSpec{}}

	_, err := resolveClient(FromBundleOptions{}, manifest)

	require.Error(t, err)
}
