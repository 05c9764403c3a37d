// Package testutils holds helpers shared by tests that need program documents on disk.
package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/stretchr/testify/require"
)

// WriteDocuments writes files (name to content) under dir, creating
// subdirectories as needed.
func WriteDocuments(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// SeedRepo writes files into a fresh temporary directory and initializes a
// loam repository over it. It returns the absolute path and the repository.
func SeedRepo(t *testing.T, files map[string]string, opts ...loam.Option) (string, core.Repository) {
	t.Helper()

	dir, err := filepath.Abs(t.TempDir())
	require.NoError(t, err)
	WriteDocuments(t, dir, files)

	repo, err := loam.Init(dir, opts...)
	require.NoError(t, err, "failed to init loam repo")
	return dir, repo
}
