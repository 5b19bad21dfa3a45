// Package rules holds the ordered rule catalog and the resolver that picks one rule per period.
package rules

import (
	"fmt"
	"slices"

	"github.com/evanschultz/selftrack/internal/domain"
)

// Catalog is an ordered, read-only collection of classification rules.
type Catalog struct {
	rules []domain.Rule
}

// NewCatalog validates and registers rules in the given order.
func NewCatalog(rules ...domain.Rule) (*Catalog, error) {
	registered := make([]domain.Rule, 0, len(rules))
	for idx, rule := range rules {
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("register rule %d (%s): %w", idx, rule.Program, err)
		}
		registered = append(registered, rule.Clone())
	}
	return &Catalog{rules: registered}, nil
}

// Builtin returns the catalog of built-in software families followed by the platform defaults.
func Builtin() *Catalog {
	catalog, err := WithCustom(nil)
	if err != nil {
		panic(fmt.Sprintf("builtin rule catalog: %v", err))
	}
	return catalog
}

// WithCustom registers custom rules ahead of the built-in families.
// Platform defaults are always registered last.
func WithCustom(custom []domain.Rule) (*Catalog, error) {
	all := make([]domain.Rule, 0, len(custom)+16)
	all = append(all, custom...)
	all = append(all, FamilyRules()...)
	all = append(all, DefaultRules()...)
	return NewCatalog(all...)
}

// FamilyRules returns the built-in software family rules in registration order.
func FamilyRules() []domain.Rule {
	return slices.Concat(SelfTrackRules(), VSCodeRules(), ChromeRules())
}

// Rules returns a copy of the registered rules in order.
func (c *Catalog) Rules() []domain.Rule {
	if c == nil {
		return nil
	}
	out := make([]domain.Rule, 0, len(c.rules))
	for _, rule := range c.rules {
		out = append(out, rule.Clone())
	}
	return out
}

// Len returns the number of registered rules.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.rules)
}

// HasDefault reports whether a fallback rule exists for os.
func (c *Catalog) HasDefault(os domain.OperatingSystem) bool {
	if c == nil {
		return false
	}
	return slices.ContainsFunc(c.rules, func(rule domain.Rule) bool {
		return rule.OperatingSystem == os && rule.IsDefault()
	})
}
