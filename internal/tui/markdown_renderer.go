package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// reportView renders report markdown once per wrap width and keeps the resulting lines for scrolling.
type reportView struct {
	markdown string
	width    int
	renderer *glamour.TermRenderer
	lines    []string
}

// setMarkdown replaces the source document and drops cached lines when it changed.
func (v *reportView) setMarkdown(markdown string) {
	markdown = strings.TrimSpace(markdown)
	if markdown == v.markdown {
		return
	}
	v.markdown = markdown
	v.lines = nil
}

// linesAt returns the rendered report lines wrapped at width.
func (v *reportView) linesAt(width int) []string {
	if v.markdown == "" {
		return nil
	}
	wrapWidth := max(24, width)
	if v.lines != nil && v.width == wrapWidth {
		return v.lines
	}
	if v.renderer == nil || v.width != wrapWidth {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(wrapWidth),
		)
		if err != nil {
			v.width = wrapWidth
			v.lines = strings.Split(v.markdown, "\n")
			return v.lines
		}
		v.renderer = renderer
		v.width = wrapWidth
	}
	rendered, err := v.renderer.Render(v.markdown)
	if err != nil {
		rendered = v.markdown
	}
	v.lines = strings.Split(strings.TrimRight(rendered, "\n"), "\n")
	return v.lines
}
