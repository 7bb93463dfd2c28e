package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	SomeField int
}

func TestWriteJsonReadJson(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.json")

	written := &testConfig{SomeField: 123}
	require.NoError(t, WriteJson(path, written))

	read := &testConfig{}
	_, err := ReadJson(path, read)
	require.NoError(t, err)
	assert.Equal(t, written, read)
}

func TestWriteJsonLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, WriteJson(path, &testConfig{SomeField: 1}))
	require.NoError(t, WriteJson(path, &testConfig{SomeField: 2}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestReadJsonMissingFile(t *testing.T) {
	_, err := ReadJson(filepath.Join(t.TempDir(), "nope.json"), &testConfig{})
	assert.Error(t, err)
}

func TestReadJsonInvalidContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := ReadJson(path, &testConfig{})
	assert.Error(t, err)
}
