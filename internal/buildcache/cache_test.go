package buildcache_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetbuild/fleet/internal/buildcache"
	"github.com/fleetbuild/fleet/internal/changeanalyzer"
)

func TestRestoreMissesWhenEmpty(t *testing.T) {
	t.Parallel()

	cache, err := buildcache.NewLocalCache(t.TempDir(), false)
	require.NoError(t, err)

	result, err := cache.TryRestore(context.Background(), "deadbeef", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, buildcache.Miss, result)
}

func TestStoreThenRestoreRoundTrip(t *testing.T) {
	t.Parallel()

	cache, err := buildcache.NewLocalCache(t.TempDir(), false)
	require.NoError(t, err)

	out := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(out, "artifact.txt"), []byte("hello"), 0o644))

	stored, err := cache.TryStore(context.Background(), "abc123", out, true)
	require.NoError(t, err)
	assert.Equal(t, buildcache.Stored, stored)

	restoreDir := t.TempDir()
	result, err := cache.TryRestore(context.Background(), "abc123", restoreDir)
	require.NoError(t, err)
	assert.Equal(t, buildcache.Restored, result)

	data, err := os.ReadFile(filepath.Join(restoreDir, "artifact.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestReadOnlyCacheSkipsStore(t *testing.T) {
	t.Parallel()

	cache, err := buildcache.NewLocalCache(t.TempDir(), true)
	require.NoError(t, err)

	result, err := cache.TryStore(context.Background(), "abc123", t.TempDir(), true)
	require.NoError(t, err)
	assert.Equal(t, buildcache.Skipped, result)
}

func TestIneligibleProjectSkipsStore(t *testing.T) {
	t.Parallel()

	cache, err := buildcache.NewLocalCache(t.TempDir(), false)
	require.NoError(t, err)

	result, err := cache.TryStore(context.Background(), "abc123", t.TempDir(), false)
	require.NoError(t, err)
	assert.Equal(t, buildcache.Skipped, result)
}

func TestFingerprintIsDeterministic(t *testing.T) {
	t.Parallel()

	files := changeanalyzer.FileHashMap{Files: []changeanalyzer.FileEntry{
		{Path: "a.go", Hash: "1"},
		{Path: "b.go", Hash: "2"},
	}}

	fp1 := buildcache.Fingerprint("echo hi", files, "config-tag")
	fp2 := buildcache.Fingerprint("echo hi", files, "config-tag")
	assert.Equal(t, fp1, fp2)

	fp3 := buildcache.Fingerprint("echo bye", files, "config-tag")
	assert.NotEqual(t, fp1, fp3)
}
