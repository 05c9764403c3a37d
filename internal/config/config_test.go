package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParse_OverridesOnlyMentionedKeys(t *testing.T) {
	cfg := Default()
	err := Parse([]byte(`
log_level: debug
model:
  kind: oracle
  script: ["> a(text): x\nnext: return"]
retry:
  base_delay: 250ms
generation:
  scoring: local
  width: "3"
store:
  kind: redis
  ttl: 24h
  mask: ["(?i)email"]
syntax:
  prompt_indent: "- "
`), &cfg)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "oracle", cfg.Model.Kind)
	assert.Len(t, cfg.Model.Script, 1)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.BaseDelay)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, "local", cfg.Generation.Scoring)
	assert.Equal(t, 3, cfg.Generation.Width)
	assert.Equal(t, 64, cfg.Generation.CompletionLength)
	assert.Equal(t, 24*time.Hour, cfg.Store.TTL)
	assert.Equal(t, []string{"(?i)email"}, cfg.Store.Mask)
	assert.Equal(t, "- ", cfg.Syntax.PromptIndent)
	assert.NotEmpty(t, cfg.Syntax.HeaderMechanic)
}

func TestParse_RejectsUnknownKeys(t *testing.T) {
	cfg := Default()
	assert.Error(t, Parse([]byte("modle:\n  kind: random\n"), &cfg))
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"COGFLOW_STORE":            "file",
		"COGFLOW_MODEL_ENDPOINT":   "http://gpu:9000",
		"COGFLOW_MODEL_VOCAB_SIZE": "128",
	}
	cfg := Default()
	require.NoError(t, ApplyEnv(&cfg, func(k string) (string, bool) { v, ok := env[k]; return v, ok }))
	assert.Equal(t, "file", cfg.Store.Kind)
	assert.Equal(t, "http://gpu:9000", cfg.Model.Endpoint)
	assert.Equal(t, 128, cfg.Model.VocabSize)

	env["COGFLOW_MODEL_VOCAB_SIZE"] = "many"
	assert.Error(t, ApplyEnv(&cfg, func(k string) (string, bool) { v, ok := env[k]; return v, ok }))
}
