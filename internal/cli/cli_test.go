package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const program = `
name: greet
prompts:
  - name: hello
    fields:
      - name: greeting
`

const brokenProgram = `
name: broken
prompts:
  - name: hello
    fields:
      - name: greeting
    flows:
      - label: onward
        prompt: nowhere
`

// setup writes a program and a config that scripts an oracle model and keeps
// runs on disk.
func setup(t *testing.T, prog string) Options {
	t.Helper()
	dir := t.TempDir()
	progPath := filepath.Join(dir, "greet.yaml")
	require.NoError(t, os.WriteFile(progPath, []byte(prog), 0o644))

	cfg := "log_level: error\n" +
		"model:\n  kind: oracle\n  script:\n    - \"> greeting(text(64)): hello\\nnext: return\"\n" +
		"store:\n  kind: file\n  path: " + filepath.Join(dir, "runs") + "\n" +
		"tools: \"\"\n"
	cfgPath := filepath.Join(dir, "cogflow.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return Options{ProgramPath: progPath, ConfigPath: cfgPath}
}

func TestRun_JSON(t *testing.T) {
	opts := setup(t, program)
	var buf bytes.Buffer
	require.NoError(t, Run(context.Background(), RunOptions{Options: opts, JSON: true}, &buf))

	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, map[string]any{"greeting": "hello"}, out)
}

func TestRun_Markdown(t *testing.T) {
	opts := setup(t, program)
	var buf bytes.Buffer
	require.NoError(t, Run(context.Background(), RunOptions{Options: opts, Entry: "main"}, &buf))
	assert.Contains(t, buf.String(), "## Outputs")
	assert.Contains(t, buf.String(), "**greeting**: hello")
}

func TestRunsListAndShow(t *testing.T) {
	opts := setup(t, program)
	require.NoError(t, Run(context.Background(), RunOptions{Options: opts, JSON: true}, &bytes.Buffer{}))

	var list bytes.Buffer
	require.NoError(t, ListRuns(context.Background(), opts, &list))
	ids := strings.Fields(list.String())
	require.Len(t, ids, 1)

	var show bytes.Buffer
	require.NoError(t, ShowRun(context.Background(), opts, ids[0], &show))
	assert.Contains(t, show.String(), "hello")

	assert.Error(t, ShowRun(context.Background(), opts, "missing", &bytes.Buffer{}))
}

func TestValidate(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Validate(setup(t, program), &buf))
	assert.Contains(t, buf.String(), "Program greet is valid")

	buf.Reset()
	assert.Error(t, Validate(setup(t, brokenProgram), &buf))
	assert.Contains(t, buf.String(), "Validation failed")
	assert.Contains(t, buf.String(), "nowhere")
}

func TestWatchValidate_FileLoaderCannotWatch(t *testing.T) {
	err := WatchValidate(context.Background(), setup(t, program), &bytes.Buffer{})
	assert.Error(t, err)
}

func TestGraph(t *testing.T) {
	opts := setup(t, program)

	var buf bytes.Buffer
	require.NoError(t, Graph(context.Background(), GraphOptions{Options: opts}, &buf))
	assert.Contains(t, buf.String(), "entry_main")

	buf.Reset()
	require.NoError(t, Graph(context.Background(), GraphOptions{Options: opts, Kind: "abstract"}, &buf))
	assert.True(t, strings.HasPrefix(buf.String(), "graph TD"))

	require.NoError(t, Run(context.Background(), RunOptions{Options: opts, JSON: true}, &bytes.Buffer{}))
	var list bytes.Buffer
	require.NoError(t, ListRuns(context.Background(), opts, &list))
	buf.Reset()
	require.NoError(t, Graph(context.Background(), GraphOptions{Options: opts, RunID: strings.TrimSpace(list.String())}, &buf))
	assert.Contains(t, buf.String(), "classDef visited")
}

func TestLoadConfig_Overrides(t *testing.T) {
	opts := setup(t, program)
	opts.Debug = true
	cfg, err := LoadConfig(opts)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "oracle", cfg.Model.Kind)

	_, err = CreateLogger("loud")
	assert.Error(t, err)
}
