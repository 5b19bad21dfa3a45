package rules

import "github.com/evanschultz/selftrack/internal/domain"

// Resolve picks the rule for one period on one platform.
//
// The first rule for os whose matchers contain a substring of the executable wins.
// Without such a rule the first fallback rule for os is used, and without a fallback
// Resolve fails with a *domain.ConfigurationError.
func (c *Catalog) Resolve(period domain.ActivityPeriod, os domain.OperatingSystem) (domain.Rule, error) {
	if c != nil {
		executable := period.Details.Executable
		for _, rule := range c.rules {
			if rule.OperatingSystem == os && !rule.IsDefault() && rule.MatchesExecutable(executable) {
				return rule, nil
			}
		}
		for _, rule := range c.rules {
			if rule.OperatingSystem == os && rule.IsDefault() {
				return rule, nil
			}
		}
	}
	return domain.Rule{}, &domain.ConfigurationError{OperatingSystem: os}
}
