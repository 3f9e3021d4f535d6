package graph

import (
	"fmt"
	"strings"
)

// Overlay highlights a run on top of the topology.
type Overlay struct {
	VisitedNodes []string
	CurrentNode  string
}

// Mermaid renders the compiled topology as a Mermaid flowchart:
// START/END as circles, routers as rhombi, other nodes as rectangles.
// Conditional transitions are dotted and labelled with their router key.
func Mermaid(c *Compiled, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	fmt.Fprintf(&sb, "    %s((\"start\"))\n", mermaidID(START))

	for _, name := range c.Nodes() {
		opener, closer := "[", "]"
		if c.IsRouter(name) {
			opener, closer = "{", "}"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", mermaidID(name), opener, name, closer)
	}

	fmt.Fprintf(&sb, "    %s((\"end\"))\n", mermaidID(END))

	for _, e := range c.Edges() {
		arrow := "-->"
		if e.Label != "" {
			arrow = fmt.Sprintf("-. \"%s\" .->", strings.ReplaceAll(e.Label, "\"", "'"))
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", mermaidID(e.From), arrow, mermaidID(e.To))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Run overlay\n")
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.VisitedNodes {
			safe := mermaidID(id)
			if safe != "" && !seen[safe] {
				seen[safe] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safe)
			}
		}

		if overlay.CurrentNode != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", mermaidID(overlay.CurrentNode))
		}
	}

	return sb.String()
}

var mermaidReplacer = strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_")

func mermaidID(id string) string {
	switch id {
	case START:
		return "START"
	case END:
		return "END"
	}
	return mermaidReplacer.Replace(id)
}
