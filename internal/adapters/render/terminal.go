package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/evanschultz/selftrack/internal/domain"
)

// Terminal renders the markdown report as ANSI-styled text wrapped at width.
func Terminal(report domain.FinalReport, width int) (string, error) {
	if width <= 0 {
		width = 100
	}
	if width < 24 {
		width = 24
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("configure terminal renderer: %w", err)
	}
	rendered, err := renderer.Render(Markdown(report))
	if err != nil {
		return "", fmt.Errorf("render terminal report: %w", err)
	}
	return strings.TrimRight(rendered, "\n"), nil
}
