package cliui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/x/ansi"

	"github.com/papercomputeco/askstream/pkg/ask"
)

// RenderSources writes one line per source: its index, score and the
// first line of its chunk, truncated to width cells.
func RenderSources(w io.Writer, sources []ask.Source, width int) {
	if len(sources) == 0 {
		return
	}

	fmt.Fprintf(w, "  %s\n", KeyStyle.Render("Sources:"))
	for _, s := range sources {
		prefix := fmt.Sprintf("  [%g] %.2f", s.Index, s.Score)
		chunk, _, _ := strings.Cut(strings.TrimSpace(s.Chunk), "\n")

		avail := width - ansi.StringWidth(prefix) - 1
		if avail > 1 {
			chunk = ansi.Truncate(chunk, avail, "…")
		}

		fmt.Fprintf(w, "%s %s\n", DimStyle.Render(prefix), ValueStyle.Render(chunk))
	}
}
