package tui

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "1.2.3\n")

	out := buf.String()
	assert.Contains(t, out, "|_|_| |_|")
	assert.Contains(t, out, "v1.2.3")
	assert.NotContains(t, out, "\x1b[", "non-terminal output must not carry escape codes")
}

func TestNewRenderer(t *testing.T) {
	render := NewRenderer(60)
	out, err := render("Could you please provide your **email**?")
	require.NoError(t, err)
	assert.Contains(t, out, "Could you please provide your")
	assert.Contains(t, out, "email")
}

func TestStyles(t *testing.T) {
	assert.Contains(t, SystemStyle("Session abc is active."), "Session abc is active.")
	assert.Contains(t, Label("name"), "name")
	assert.Contains(t, Error("boom"), "boom")
}

func TestIsTerminal(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()

	assert.False(t, IsTerminal(f))
	assert.Equal(t, 0, Width(f))
}
