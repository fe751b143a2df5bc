package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestMergeConfigFile_FillsUnsetFieldsFromConfig(t *testing.T) {
	path := writeConfig(t, `
trace = true
enable_peephole = false
threads = 4

[allocator]
coalesce = true
split = true
`)

	opt := DefaultOptions()
	require.NoError(t, MergeConfigFile(&opt, path, map[string]bool{}))

	assert.True(t, opt.Trace)
	assert.False(t, opt.EnablePeephole)
	assert.Equal(t, 4, opt.Threads)
	assert.True(t, opt.AllocCoalesce)
	assert.True(t, opt.AllocSplit)
}

func TestMergeConfigFile_CLIFlagsTakePrecedence(t *testing.T) {
	path := writeConfig(t, `
enable_peephole = false
threads = 4
`)

	opt := DefaultOptions()
	opt.EnablePeephole = true
	opt.Threads = 2
	cliSet := map[string]bool{"enable-peephole": true, "threads": true}

	require.NoError(t, MergeConfigFile(&opt, path, cliSet))

	assert.True(t, opt.EnablePeephole, "a CLI-set flag must not be overwritten by the config file")
	assert.Equal(t, 2, opt.Threads)
}

func TestMergeConfigFile_MissingFileReturnsError(t *testing.T) {
	opt := DefaultOptions()
	err := MergeConfigFile(&opt, filepath.Join(t.TempDir(), "missing.toml"), nil)
	assert.Error(t, err)
}

func TestDefaultOptions_PeepholeOnAllocatorTogglesOff(t *testing.T) {
	opt := DefaultOptions()
	assert.True(t, opt.EnablePeephole)
	assert.False(t, opt.AllocCoalesce)
	assert.False(t, opt.AllocSplit)
	assert.Greater(t, opt.Threads, 0)
}
