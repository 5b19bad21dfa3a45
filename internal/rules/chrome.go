package rules

import (
	"strings"

	"github.com/evanschultz/selftrack/internal/domain"
)

// ChromeProgram labels Google Chrome windows.
const ChromeProgram = "Google Chrome"

// chromeTitleSuffix is appended by Chrome to every window title.
const chromeTitleSuffix = " - Google Chrome"

// ChromeRules classifies Google Chrome windows; the project label is always empty.
func ChromeRules() []domain.Rule {
	return []domain.Rule{
		{
			Family:          "chrome",
			OperatingSystem: domain.OSLinux,
			Executables:     []string{"chrome"},
			Program:         ChromeProgram,
			Project:         chromeProject,
			Details:         chromeDetails,
		},
		{
			Family:          "chrome",
			OperatingSystem: domain.OSWindows,
			Executables:     []string{"chrome.exe"},
			Program:         ChromeProgram,
			Project:         chromeProject,
			Details:         chromeDetails,
		},
	}
}

func chromeProject(domain.ActivityPeriod) string {
	return ""
}

// chromeDetails strips the first browser suffix from the title.
func chromeDetails(period domain.ActivityPeriod) string {
	return strings.Replace(period.Details.Title, chromeTitleSuffix, "", 1)
}
