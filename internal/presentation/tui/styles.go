package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	systemStyle = lipgloss.NewStyle().Faint(true).Italic(true)
	labelStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2dd4bf"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f87171"))
)

// SystemStyle dims meta-messages so they read apart from agent replies.
func SystemStyle(s string) string {
	return systemStyle.Render(s)
}

// Label highlights a key in a key/value listing.
func Label(s string) string {
	return labelStyle.Render(s)
}

// Error renders an error line.
func Error(s string) string {
	return errorStyle.Render(s)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Width returns the terminal width of f, or 0 when it is not a terminal.
func Width(f *os.File) int {
	if !IsTerminal(f) {
		return 0
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return w
}
