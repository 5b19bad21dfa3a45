package rules

import (
	"strings"

	"github.com/evanschultz/selftrack/internal/domain"
)

// VSCodeProgram labels Visual Studio Code windows.
const VSCodeProgram = "Visual Studio Code"

// vsCodeTitleSeparator splits "file - folder - Visual Studio Code" titles.
const vsCodeTitleSeparator = " - "

// VSCodeRules classifies Visual Studio Code windows by workspace folder.
func VSCodeRules() []domain.Rule {
	return []domain.Rule{
		{
			Family:          "vscode",
			OperatingSystem: domain.OSLinux,
			Executables:     []string{"code"},
			Program:         VSCodeProgram,
			Project:         vsCodeProject,
			Details:         vsCodeDetails,
		},
		{
			Family:          "vscode",
			OperatingSystem: domain.OSWindows,
			Executables:     []string{"Code.exe"},
			Program:         VSCodeProgram,
			Project:         vsCodeProject,
			Details:         vsCodeDetails,
		},
	}
}

// vsCodeProject returns the workspace segment of the title.
// Titles with more than three segments are kept whole.
func vsCodeProject(period domain.ActivityPeriod) string {
	parts := strings.Split(period.Details.Title, vsCodeTitleSeparator)
	switch {
	case len(parts) == 3:
		return parts[1]
	case len(parts) == 2:
		return parts[0]
	case len(parts) < 2:
		return ""
	default:
		return period.Details.Title
	}
}

// vsCodeDetails returns the open file segment of the title.
func vsCodeDetails(period domain.ActivityPeriod) string {
	parts := strings.Split(period.Details.Title, vsCodeTitleSeparator)
	switch {
	case len(parts) == 3:
		return parts[0]
	case len(parts) < 3:
		return ""
	default:
		return period.Details.Title
	}
}
