package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/evanschultz/selftrack/internal/domain"
)

// Definition describes one user-configured rule.
type Definition struct {
	Family          string
	OperatingSystem string
	Executables     []string
	Program         string
	DetailsStrip    []string
	ProjectPattern  string
	DetailsPattern  string
}

// FromDefinition builds a rule from a user-configured definition.
//
// The project label is the first submatch of ProjectPattern (or the whole match when
// the pattern has no group), and empty when the pattern is unset or does not match.
// Details start from the title with each DetailsStrip substring removed once; when
// DetailsPattern matches the stripped title its first submatch is used instead.
func FromDefinition(def Definition) (domain.Rule, error) {
	os, err := domain.ParseOperatingSystem(def.OperatingSystem)
	if err != nil {
		return domain.Rule{}, fmt.Errorf("%w: %w", domain.ErrInvalidRule, err)
	}
	projectRE, err := compileOptional(def.ProjectPattern)
	if err != nil {
		return domain.Rule{}, fmt.Errorf("%w: project_pattern: %w", domain.ErrInvalidRule, err)
	}
	detailsRE, err := compileOptional(def.DetailsPattern)
	if err != nil {
		return domain.Rule{}, fmt.Errorf("%w: details_pattern: %w", domain.ErrInvalidRule, err)
	}
	strip := append([]string(nil), def.DetailsStrip...)

	family := strings.TrimSpace(def.Family)
	if family == "" {
		family = "custom"
	}
	rule := domain.Rule{
		Family:          family,
		OperatingSystem: os,
		Executables:     append([]string(nil), def.Executables...),
		Program:         strings.TrimSpace(def.Program),
		Project: func(period domain.ActivityPeriod) string {
			return firstSubmatch(projectRE, period.Details.Title)
		},
		Details: func(period domain.ActivityPeriod) string {
			title := period.Details.Title
			for _, s := range strip {
				if s == "" {
					continue
				}
				title = strings.Replace(title, s, "", 1)
			}
			if detailsRE == nil {
				return title
			}
			if match := detailsRE.FindStringSubmatch(title); match != nil {
				return pickSubmatch(match)
			}
			return title
		},
	}
	if err := rule.Validate(); err != nil {
		return domain.Rule{}, err
	}
	return rule, nil
}

// FromDefinitions builds rules for every definition, preserving order.
func FromDefinitions(defs []Definition) ([]domain.Rule, error) {
	out := make([]domain.Rule, 0, len(defs))
	for idx, def := range defs {
		rule, err := FromDefinition(def)
		if err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", idx, err)
		}
		out = append(out, rule)
	}
	return out, nil
}

// compileOptional compiles a pattern, returning nil for blank patterns.
func compileOptional(pattern string) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, nil
	}
	return regexp.Compile(pattern)
}

// firstSubmatch returns the first capture group, the whole match, or "".
func firstSubmatch(re *regexp.Regexp, s string) string {
	if re == nil {
		return ""
	}
	match := re.FindStringSubmatch(s)
	if match == nil {
		return ""
	}
	return pickSubmatch(match)
}

func pickSubmatch(match []string) string {
	if len(match) > 1 {
		return match[1]
	}
	return match[0]
}
