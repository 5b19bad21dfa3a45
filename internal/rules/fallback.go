package rules

import "github.com/evanschultz/selftrack/internal/domain"

// UnknownProgram labels windows no family rule matched.
const UnknownProgram = "Unknown Software"

// DefaultRules returns one fallback rule per platform with built-in families.
// darwin has no built-in fallback and needs a configured one.
func DefaultRules() []domain.Rule {
	project := func(domain.ActivityPeriod) string { return "" }
	details := func(period domain.ActivityPeriod) string { return period.Details.Title }
	return []domain.Rule{
		{
			Family:          "default",
			OperatingSystem: domain.OSLinux,
			Program:         UnknownProgram,
			Project:         project,
			Details:         details,
		},
		{
			Family:          "default",
			OperatingSystem: domain.OSWindows,
			Program:         UnknownProgram,
			Project:         project,
			Details:         details,
		},
	}
}
