package tui

import (
	"strings"

	"github.com/aretw0/intake/pkg/runner"
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a runner.ContentRenderer that renders markdown using glamour.
// Replies fall back to plain text when the renderer cannot be built.
func NewRenderer(width int) runner.ContentRenderer {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return func(s string) (string, error) { return s, nil }
	}

	return func(markdown string) (string, error) {
		out, err := r.Render(markdown)
		if err != nil {
			return markdown, err
		}
		return strings.TrimRight(out, "\n") + "\n", nil
	}
}
