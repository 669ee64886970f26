package changeanalyzer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fleetbuild/fleet/internal/changeanalyzer"
)

func TestFileHashMapEqual(t *testing.T) {
	t.Parallel()

	a := changeanalyzer.FileHashMap{Files: []changeanalyzer.FileEntry{
		{Path: "a.go", Hash: "1"},
		{Path: "b.go", Hash: "2"},
	}}

	b := changeanalyzer.FileHashMap{Files: []changeanalyzer.FileEntry{
		{Path: "a.go", Hash: "1"},
		{Path: "b.go", Hash: "2"},
	}}

	assert.True(t, a.Equal(b))
}

func TestFileHashMapNotEqualOnHashChange(t *testing.T) {
	t.Parallel()

	a := changeanalyzer.FileHashMap{Files: []changeanalyzer.FileEntry{{Path: "a.go", Hash: "1"}}}
	b := changeanalyzer.FileHashMap{Files: []changeanalyzer.FileEntry{{Path: "a.go", Hash: "2"}}}

	assert.False(t, a.Equal(b))
}

func TestFileHashMapNotEqualOnLengthChange(t *testing.T) {
	t.Parallel()

	a := changeanalyzer.FileHashMap{Files: []changeanalyzer.FileEntry{{Path: "a.go", Hash: "1"}}}
	b := changeanalyzer.FileHashMap{}

	assert.False(t, a.Equal(b))
}
