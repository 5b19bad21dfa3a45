package render

import (
	"strings"

	"github.com/evanschultz/selftrack/internal/domain"
)

// Markdown renders the report as a markdown document.
func Markdown(report domain.FinalReport) string {
	var b strings.Builder
	b.WriteString("# Activity report\n\n")
	b.WriteString("| Start | End | Total | Active | Inactive |\n")
	b.WriteString("| --- | --- | --- | --- | --- |\n")
	writeRow(&b,
		report.StartDate,
		report.EndDate,
		report.TotalDuration,
		reportTotal(report.TotalActiveDuration),
		reportTotal(report.TotalInactiveDuration),
	)

	for _, program := range report.Activities {
		b.WriteString("\n## ")
		b.WriteString(escapeInline(program.Program))
		if program.Executable != "" {
			b.WriteString(" (`")
			b.WriteString(strings.ReplaceAll(program.Executable, "`", "'"))
			b.WriteString("`)")
		}
		b.WriteString("\n\n")
		writeTotals(&b, program.TotalDuration, program.TotalActiveDuration, program.TotalInactiveDuration)

		for _, project := range program.Projects {
			b.WriteString("\n### ")
			b.WriteString(escapeInline(label(project.Project)))
			b.WriteString("\n\n")
			writeTotals(&b, project.TotalDuration, project.TotalActiveDuration, project.TotalInactiveDuration)
			b.WriteString("\n| Start | End | Duration | Interaction | Details |\n")
			b.WriteString("| --- | --- | --- | --- | --- |\n")
			for _, period := range project.Periods {
				writeRow(&b, period.StartDate, period.EndDate, period.Duration, string(period.Interactive), period.Details)
			}
		}
	}
	return b.String()
}

func writeTotals(b *strings.Builder, total, active, inactive string) {
	b.WriteString("- Total: ")
	b.WriteString(total)
	b.WriteString("\n- Active: ")
	b.WriteString(nodeTotal(active))
	b.WriteString("\n- Inactive: ")
	b.WriteString(nodeTotal(inactive))
	b.WriteString("\n")
}

func writeRow(b *strings.Builder, cells ...string) {
	b.WriteString("|")
	for _, cell := range cells {
		b.WriteString(" ")
		b.WriteString(escapeCell(cell))
		b.WriteString(" |")
	}
	b.WriteString("\n")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func escapeInline(s string) string {
	return strings.NewReplacer("#", `\#`, "*", `\*`, "_", `\_`, "\n", " ").Replace(s)
}
