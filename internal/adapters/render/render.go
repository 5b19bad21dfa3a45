// Package render serializes finalized activity reports into documents.
package render

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/evanschultz/selftrack/internal/domain"
)

// Format names one report renderer.
type Format string

// FormatMarkdown and related constants define the supported renderers.
const (
	FormatMarkdown Format = "markdown"
	FormatTerminal Format = "terminal"
	FormatJSON     Format = "json"
	FormatXLSX     Format = "xlsx"
)

// Options tunes rendering.
type Options struct {
	// Width is the terminal wrap width; zero selects 100 columns.
	Width int
}

// ParseFormat parses a renderer name, accepting common aliases.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "markdown", "md":
		return FormatMarkdown, nil
	case "terminal", "term", "tty":
		return FormatTerminal, nil
	case "json":
		return FormatJSON, nil
	case "xlsx", "excel", "spreadsheet":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unknown report format %q", raw)
	}
}

// Extension returns the file extension for format.
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatJSON:
		return ".json"
	case FormatXLSX:
		return ".xlsx"
	default:
		return ".txt"
	}
}

// Binary reports whether the format should not be written to a terminal.
func (f Format) Binary() bool {
	return f == FormatXLSX
}

// FileName returns the export file name for one batch label.
func FileName(label string, format Format) string {
	label = strings.TrimSpace(label)
	if label == "" {
		label = "report"
	}
	replacer := strings.NewReplacer("/", "-", "\\", "-", ":", "-", " ", "_")
	return "activity_report_" + replacer.Replace(label) + format.Extension()
}

// ExportPath resolves out: a directory receives FileName(label, format), anything else is used as is.
func ExportPath(out string, isDir bool, label string, format Format) string {
	if isDir {
		return filepath.Join(out, FileName(label, format))
	}
	return out
}

// Write renders report in format to w.
func Write(w io.Writer, format Format, report domain.FinalReport, opts Options) error {
	switch format {
	case FormatMarkdown:
		_, err := io.WriteString(w, Markdown(report))
		return err
	case FormatTerminal:
		out, err := Terminal(report, opts.Width)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out+"\n")
		return err
	case FormatJSON:
		return JSON(w, report)
	case FormatXLSX:
		return XLSX(w, report)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// reportTotal renders a report-level active or inactive total; omitted totals show as N/A.
func reportTotal(value string) string {
	return domain.OrNotApplicable(value)
}

// nodeTotal renders a node-level total; totals that summed to exactly zero show as zero.
func nodeTotal(value string) string {
	if value == "" {
		return domain.FormatDuration(0)
	}
	return value
}

// label renders a grouping label; the empty project is shown as N/A.
func label(value string) string {
	return domain.OrNotApplicable(value)
}
