package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// minReportWidth keeps narrow terminals from collapsing report tables.
const minReportWidth = 40

// markdownRenderer renders the statistics report and keeps one glamour renderer per wrap width.
type markdownRenderer struct {
	width    int
	renderer *glamour.TermRenderer
}

// render returns ANSI output, or the markdown itself when glamour cannot render it.
func (r *markdownRenderer) render(markdown string, width int) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}
	wrapWidth := max(width, minReportWidth)
	if r.renderer == nil || r.width != wrapWidth {
		renderer, err := newReportRenderer(wrapWidth)
		if err != nil {
			return markdown
		}
		r.renderer = renderer
		r.width = wrapWidth
	}
	rendered, err := r.renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(rendered, "\n")
}

// newReportRenderer builds the glamour renderer shared by the TUI and `daybox stats --render`.
func newReportRenderer(width int) (*glamour.TermRenderer, error) {
	return glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
}

// RenderReport renders a markdown report for a plain terminal at width.
func RenderReport(markdown string, width int) (string, error) {
	renderer, err := newReportRenderer(max(width, minReportWidth))
	if err != nil {
		return "", err
	}
	out, err := renderer.Render(markdown)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}
