package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/intake/internal/runtime"
)

// Overlay marks the nodes a turn visited so the diagram can highlight them.
type Overlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// OverlayFromPath builds an overlay from the path of a turn; the last node is current.
func OverlayFromPath(path []string) *Overlay {
	if len(path) == 0 {
		return nil
	}
	return &Overlay{VisitedNodes: path, CurrentNode: path[len(path)-1]}
}

// GenerateMermaid produces a Mermaid flowchart of the turn state machine.
// It applies semantic styling:
// - Entry: ((Circle))
// - Reply (terminal) nodes: [/Parallelogram/]
// - Decisions: {Rhombus}
// - Default: [Rectangle]
// It also applies overlay styles (Visited/Current) if provided.
func GenerateMermaid(overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range runtime.Nodes() {
		opener, closer := shape(node)
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", sanitizeMermaidID(string(node)), opener, node, closer)
	}

	for _, t := range runtime.Transitions() {
		arrow := "-->"
		if t.Condition != "" {
			arrow = fmt.Sprintf("-- \"%s\" -->", strings.ReplaceAll(t.Condition, "\"", "'"))
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(string(t.From)), arrow, sanitizeMermaidID(string(t.To)))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		current := sanitizeMermaidID(overlay.CurrentNode)
		visitedSet := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safeID := sanitizeMermaidID(id)
			if safeID != "" && safeID != current && !visitedSet[safeID] {
				visitedSet[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		if current != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", current)
		}
	}

	return sb.String()
}

func shape(node runtime.NodeID) (string, string) {
	switch {
	case node == runtime.EntryNode:
		return "((", "))"
	case node.Terminal():
		return "[/", "/]"
	case node == runtime.NodeCheckCorrection || node == runtime.NodeCheckOffTopic:
		return "{", "}"
	}
	return "[", "]"
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return strings.TrimSpace(s)
}
