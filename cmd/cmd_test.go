// File: cmd/cmd_test.go
package cmd

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	json "github.com/json-iterator/go"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvoss9k/tabpilot/api/schemas"
	"github.com/mvoss9k/tabpilot/internal/config"
	"github.com/mvoss9k/tabpilot/internal/observability"
)

const testPage = `<!DOCTYPE html>
<html><head><title>Start</title></head>
<body>
  <main>
    <h1>Welcome</h1>
    <p>The answer to the task is forty two.</p>
    <a href="/next">Continue</a>
  </main>
</body></html>`

// resetGlobals clears the shared viper and logger state a command execution
// leaves behind.
func resetGlobals(t *testing.T) {
	t.Helper()
	viper.Reset()
	observability.ResetForTest()
	t.Cleanup(func() {
		viper.Reset()
		observability.ResetForTest()
	})
	t.Setenv("TABPILOT_LOGGER_LEVEL", "error")
}

func newPageServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testPage))
	}))
	t.Cleanup(server.Close)
	return server
}

// newModelServer fakes a chat-completions endpoint that always replies with
// the given decision JSON.
func newModelServer(t *testing.T, decision string, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		reply := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": decision}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		out, err := json.Marshal(reply)
		require.NoError(t, err)
		w.Write(out)
	}))
	t.Cleanup(server.Close)
	return server
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommandWiring(t *testing.T) {
	resetGlobals(t)

	root := NewRootCommand()
	assert.Equal(t, "tabpilot", root.Use)
	assert.Equal(t, Version, root.Version)
	require.NotNil(t, root.PersistentFlags().Lookup("config"))

	names := make([]string, 0, 2)
	for _, sub := range root.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "run")
	assert.Contains(t, names, "extract")
}

func TestExtractCommandJSON(t *testing.T) {
	resetGlobals(t)
	server := newPageServer(t)

	out, err := execute(t, "extract", "--url", server.URL, "--json")
	require.NoError(t, err)

	var obs schemas.Observation
	require.NoError(t, json.Unmarshal([]byte(out), &obs))
	assert.Equal(t, server.URL, obs.URL)
	assert.Equal(t, "Start", obs.Title)
	assert.Contains(t, obs.Content, "forty two")
	assert.NotEmpty(t, obs.ContentHash)
	assert.NotEmpty(t, obs.Markup, "balanced quality keeps the outline")
}

func TestExtractCommandQualityFlag(t *testing.T) {
	resetGlobals(t)
	server := newPageServer(t)

	out, err := execute(t, "extract", "--url", server.URL, "--json", "--quality", "fast")
	require.NoError(t, err)

	var obs schemas.Observation
	require.NoError(t, json.Unmarshal([]byte(out), &obs))
	assert.Empty(t, obs.Markup, "fast quality skips the outline")
	assert.Empty(t, obs.Chunks)
}

func TestExtractCommandSummary(t *testing.T) {
	resetGlobals(t)
	server := newPageServer(t)

	out, err := execute(t, "extract", "--url", server.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Title:  Start")
	assert.Contains(t, out, "Tokens:")
	assert.Contains(t, out, "forty two")
}

func TestRunCommandDone(t *testing.T) {
	resetGlobals(t)
	page := newPageServer(t)
	var calls atomic.Int32
	model := newModelServer(t,
		`{"thought":"the page already answers the task","action":{"type":"done","summary":"The answer is forty two."}}`,
		&calls)

	t.Setenv("TABPILOT_LLM_API_KEY", "test-key")
	t.Setenv("TABPILOT_LLM_ENDPOINT", model.URL)
	t.Setenv("TABPILOT_AGENT_STEP_DELAY", "1ms")

	out, err := execute(t, "run", "--static", "--task", "find the answer", "--url", page.URL)
	require.NoError(t, err)

	var run schemas.Run
	require.NoError(t, json.Unmarshal([]byte(out), &run))
	assert.Equal(t, schemas.StatusDone, run.Status)
	require.Len(t, run.Steps, 1)
	assert.Equal(t, schemas.ActionDone, run.Steps[0].Action.Type)
	require.NotNil(t, run.Steps[0].Result)
	assert.True(t, run.Steps[0].Result.Success)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRunCommandMaxStepsFlag(t *testing.T) {
	resetGlobals(t)
	page := newPageServer(t)
	model := newModelServer(t,
		`{"thought":"keep looking","action":{"type":"scroll","direction":"down"}}`,
		nil)

	t.Setenv("TABPILOT_LLM_API_KEY", "test-key")
	t.Setenv("TABPILOT_LLM_ENDPOINT", model.URL)
	t.Setenv("TABPILOT_AGENT_STEP_DELAY", "1ms")

	out, err := execute(t, "run", "--static", "--task", "scroll forever",
		"--url", page.URL, "--max-steps", "3")
	require.NoError(t, err)

	var run schemas.Run
	require.NoError(t, json.Unmarshal([]byte(out), &run))
	assert.Equal(t, schemas.StatusStopped, run.Status)
	assert.Equal(t, "max steps", run.StopReason)
	assert.Len(t, run.Steps, 3)
	assert.Equal(t, 3, run.MaxSteps, "flag must override the configured default")
}

func TestRunCommandErroredExit(t *testing.T) {
	resetGlobals(t)
	page := newPageServer(t)
	model := newModelServer(t, `I would rather chat about the weather.`, nil)

	t.Setenv("TABPILOT_LLM_API_KEY", "test-key")
	t.Setenv("TABPILOT_LLM_ENDPOINT", model.URL)

	out, err := execute(t, "run", "--static", "--task", "find the answer", "--url", page.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run errored")
	// The terminal run record is still printed for inspection.
	assert.Contains(t, out, `"errored"`)
}

func TestRunCommandRequiresFlags(t *testing.T) {
	resetGlobals(t)
	_, err := execute(t, "run", "--url", "https://example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task")
}

func TestResolveConfigValidates(t *testing.T) {
	resetGlobals(t)
	config.SetDefaults(viper.GetViper())

	viper.Set("agent.max_steps", 0)
	_, err := resolveConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_steps")

	viper.Set("agent.max_steps", 5)
	viper.Set("llm.provider", "alien")
	_, err = resolveConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider")
}

func TestDisplayExcerpt(t *testing.T) {
	assert.Equal(t, "abc", displayExcerpt("abc", 10))
	assert.Equal(t, "ab…", displayExcerpt("abcdef", 2))
	// Never cuts a rune in half.
	assert.Equal(t, "a…", displayExcerpt("aébc", 2))
}
