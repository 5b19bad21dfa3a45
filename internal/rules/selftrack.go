package rules

import "github.com/evanschultz/selftrack/internal/domain"

// SelfTrackProgram labels time spent in the tracker itself.
const SelfTrackProgram = "Self Track (Me :D!)"

// SelfTrackRules classifies the tracker's own windows.
func SelfTrackRules() []domain.Rule {
	empty := func(domain.ActivityPeriod) string { return "" }
	return []domain.Rule{
		{
			Family:          "self-track",
			OperatingSystem: domain.OSLinux,
			Executables:     []string{"self-track"},
			Program:         SelfTrackProgram,
			Project:         empty,
			Details:         empty,
		},
		{
			Family:          "self-track",
			OperatingSystem: domain.OSWindows,
			Executables:     []string{"self-track.exe"},
			Program:         SelfTrackProgram,
			Project:         empty,
			Details:         empty,
		},
	}
}
