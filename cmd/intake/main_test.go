package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePaths(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(good, []byte(`
fields:
  - name: code
    validation_pattern: "[unclosed"
`), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte(`
fields:
  - name: "bad name"
    field_type: color
`), 0o644))

	var out bytes.Buffer
	require.NoError(t, validatePaths(&out, []string{good}))
	assert.Contains(t, out.String(), "✓ "+good)
	assert.Contains(t, out.String(), `! field "code"`)

	out.Reset()
	err := validatePaths(&out, []string{good, bad})
	assert.EqualError(t, err, "1 of 2 configurations are invalid")
	assert.Contains(t, out.String(), "✗ "+bad)
	assert.Contains(t, out.String(), "unsupported field_type")
}

func TestShippedConfigsAreValid(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("..", "..", "configs", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	var out bytes.Buffer
	assert.NoError(t, validatePaths(&out, paths), out.String())
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, rootCmd.Execute())
	assert.Regexp(t, `^intake version \S+\n$`, out.String())
}
