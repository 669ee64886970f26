package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetbuild/fleet/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadLinksDeclaredDependencies(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	writeFile(t, filepath.Join(root, "fleet.yml"), "projects:\n  - services/*\n")
	writeFile(t, filepath.Join(root, "services", "api", "project.yml"), "name: api\ndependencies: [lib]\nscripts:\n  build: go build ./...\n")
	writeFile(t, filepath.Join(root, "services", "lib", "project.yml"), "name: lib\nscripts:\n  build: go build ./...\n")

	projects, err := config.Load(root)
	require.NoError(t, err)
	require.Len(t, projects, 2)

	byName := projects.ByName()
	api := byName["api"]
	require.NotNil(t, api)
	require.Len(t, api.Dependencies(), 1)
	assert.Equal(t, "lib", api.Dependencies()[0].Name)
}

func TestLoadFailsOnUnknownDependency(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	writeFile(t, filepath.Join(root, "fleet.yml"), "projects:\n  - services/*\n")
	writeFile(t, filepath.Join(root, "services", "api", "project.yml"), "name: api\ndependencies: [ghost]\n")

	_, err := config.Load(root)
	require.Error(t, err)
}

func TestLoadMissingRootManifestFails(t *testing.T) {
	t.Parallel()

	_, err := config.Load(t.TempDir())
	require.Error(t, err)
}
