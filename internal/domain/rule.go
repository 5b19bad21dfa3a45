package domain

import (
	"fmt"
	"slices"
	"strings"
)

// LabelFunc derives one label from an activity period.
type LabelFunc func(ActivityPeriod) string

// Rule classifies periods produced by one software family on one platform.
// A rule with no executables is the fallback rule for its platform.
type Rule struct {
	Family          string
	OperatingSystem OperatingSystem
	Executables     []string
	Program         string
	Project         LabelFunc
	Details         LabelFunc
}

// IsDefault reports whether the rule is a fallback rule.
func (r Rule) IsDefault() bool {
	return len(r.Executables) == 0
}

// MatchesExecutable reports whether any matcher is a substring of executable.
// Matching is case-sensitive and unnormalized.
func (r Rule) MatchesExecutable(executable string) bool {
	for _, matcher := range r.Executables {
		if strings.Contains(executable, matcher) {
			return true
		}
	}
	return false
}

// ProjectLabel returns the project label for a period.
func (r Rule) ProjectLabel(period ActivityPeriod) string {
	if r.Project == nil {
		return ""
	}
	return r.Project(period)
}

// DetailsLabel returns the cleaned details string for a period.
func (r Rule) DetailsLabel(period ActivityPeriod) string {
	if r.Details == nil {
		return ""
	}
	return r.Details(period)
}

// Validate checks that the rule can be registered in a catalog.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.Program) == "" {
		return fmt.Errorf("%w: program label is required", ErrInvalidRule)
	}
	if !slices.Contains(SupportedOperatingSystems(), r.OperatingSystem) {
		return fmt.Errorf("%w: %w: %q", ErrInvalidRule, ErrUnknownOperatingSystem, string(r.OperatingSystem))
	}
	for idx, matcher := range r.Executables {
		if matcher == "" {
			return fmt.Errorf("%w: executables[%d] is empty", ErrInvalidRule, idx)
		}
	}
	return nil
}

// Clone returns a copy that does not share the matcher slice.
func (r Rule) Clone() Rule {
	r.Executables = slices.Clone(r.Executables)
	return r
}
