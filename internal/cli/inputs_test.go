package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInputs(t *testing.T) {
	in, err := ParseInputs(`{"n": 1, "tags": ["a"]}`, []string{"name=bob", "n=3", "ok=true"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": 3, "tags": []any{"a"}, "name": "bob", "ok": true}, in)

	in, err = ParseInputs("", nil)
	require.NoError(t, err)
	assert.Empty(t, in)

	_, err = ParseInputs("[1]", nil)
	assert.Error(t, err)

	_, err = ParseInputs("", []string{"novalue"})
	assert.Error(t, err)
}
