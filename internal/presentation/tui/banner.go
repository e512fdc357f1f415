package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

var bannerLines = []string{
	"  _       _        _",
	" (_)_ __ | |_ __ _| | _____",
	" | | '_ \\| __/ _` | |/ / _ \\",
	" | | | | | || (_| |   <  __/",
	" |_|_| |_|\\__\\__,_|_|\\_\\___|",
}

var bannerColors = []string{"#34d399", "#2dd4bf", "#22d3ee", "#38bdf8", "#60a5fa"}

// PrintBanner writes the intake banner and version to w.
// Colors degrade to the profile of the terminal; plain text when w is not a TTY.
func PrintBanner(w io.Writer, version string) {
	p := termenv.NewOutput(w).ColorProfile()

	fmt.Fprintln(w)
	for i, line := range bannerLines {
		fmt.Fprintln(w, p.String(line).Foreground(p.Color(bannerColors[i])))
	}
	fmt.Fprintln(w, p.String("  v"+strings.TrimSpace(version)).Faint())
	fmt.Fprintln(w)
}
