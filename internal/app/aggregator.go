package app

import (
	"fmt"
	"time"

	"github.com/evanschultz/selftrack/internal/domain"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// RuleResolver selects the classification rule for one period.
type RuleResolver interface {
	Resolve(domain.ActivityPeriod, domain.OperatingSystem) (domain.Rule, error)
}

// AggregatorConfig holds configuration for the aggregator.
type AggregatorConfig struct {
	OperatingSystem domain.OperatingSystem
	Location        *time.Location
}

// Aggregator folds ordered activity periods into a FinalReport.
// It holds no mutable state, so one value may serve concurrent calls.
type Aggregator struct {
	resolver RuleResolver
	os       domain.OperatingSystem
	location *time.Location
}

// NewAggregator constructs an aggregator for one operating system.
// An empty OperatingSystem selects the running platform and fails when it has no tag.
func NewAggregator(resolver RuleResolver, cfg AggregatorConfig) (*Aggregator, error) {
	if cfg.OperatingSystem == "" {
		current, err := domain.CurrentOperatingSystem()
		if err != nil {
			return nil, fmt.Errorf("resolve aggregator operating system: %w", err)
		}
		cfg.OperatingSystem = current
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Aggregator{
		resolver: resolver,
		os:       cfg.OperatingSystem,
		location: cfg.Location,
	}, nil
}

// OperatingSystem returns the platform tag used for rule resolution.
func (a *Aggregator) OperatingSystem() domain.OperatingSystem {
	return a.os
}

// Aggregate classifies every period and returns the finalized report.
// The whole batch fails on the first validation or classification error.
func (a *Aggregator) Aggregate(periods []domain.ActivityPeriod) (domain.FinalReport, error) {
	if err := domain.ValidatePeriods(periods); err != nil {
		return domain.FinalReport{}, err
	}
	if a.resolver == nil {
		return domain.FinalReport{}, &domain.ConfigurationError{OperatingSystem: a.os}
	}

	b := newReportBuilder(a.location)
	for idx, period := range periods {
		rule, err := a.resolver.Resolve(period, a.os)
		if err != nil {
			return domain.FinalReport{}, fmt.Errorf("classify period %d: %w", idx, err)
		}
		b.add(rule, period)
	}
	first, last := periods[0], periods[len(periods)-1]
	return b.finalize(first.Start, last.End), nil
}

// runningTotals tracks millisecond counters and whether each counter was ever touched.
type runningTotals struct {
	total        int64
	active       int64
	inactive     int64
	seenActive   bool
	seenInactive bool
}

func (t *runningTotals) add(duration int64, interaction domain.Interaction) {
	t.total += duration
	switch interaction {
	case domain.InteractionActive:
		t.active += duration
		t.seenActive = true
	case domain.InteractionInactive:
		t.inactive += duration
		t.seenInactive = true
	}
}

func (t runningTotals) millis() domain.Totals {
	return domain.Totals{Total: t.total, Active: t.active, Inactive: t.inactive}
}

// nodeDuration formats one node-level active or inactive counter: "N/A" when no period
// contributed, "" when contributions summed to exactly zero, otherwise FormatDuration,
// so a sub-second sum still reads "0 seconds".
func nodeDuration(millis int64, seen bool) string {
	switch {
	case !seen:
		return domain.NotApplicable
	case millis == 0:
		return ""
	default:
		return domain.FormatDuration(millis)
	}
}

type projectNode struct {
	label   string
	periods []domain.PeriodRecord
	totals  runningTotals
}

type programNode struct {
	label      string
	executable string
	projects   *orderedmap.OrderedMap[string, *projectNode]
	totals     runningTotals
}

// reportBuilder is the mutable arena used during one fold.
type reportBuilder struct {
	location *time.Location
	programs *orderedmap.OrderedMap[string, *programNode]
	totals   runningTotals
}

func newReportBuilder(loc *time.Location) *reportBuilder {
	return &reportBuilder{
		location: loc,
		programs: orderedmap.New[string, *programNode](),
	}
}

func (b *reportBuilder) add(rule domain.Rule, period domain.ActivityPeriod) {
	program, ok := b.programs.Get(rule.Program)
	if !ok {
		program = &programNode{
			label:      rule.Program,
			executable: period.Details.Executable,
			projects:   orderedmap.New[string, *projectNode](),
		}
		b.programs.Set(rule.Program, program)
	}

	projectLabel := rule.ProjectLabel(period)
	project, ok := program.projects.Get(projectLabel)
	if !ok {
		project = &projectNode{label: projectLabel}
		program.projects.Set(projectLabel, project)
	}

	duration := period.DurationMillis()
	project.periods = append(project.periods, domain.PeriodRecord{
		StartDate:   domain.FormatTimestamp(period.Start, b.location),
		EndDate:     domain.FormatTimestamp(period.End, b.location),
		Duration:    domain.FormatDuration(duration),
		Details:     rule.DetailsLabel(period),
		Interactive: period.Details.Interactive,
	})
	project.totals.add(duration, period.Details.Interactive)
	program.totals.add(duration, period.Details.Interactive)
	b.totals.add(duration, period.Details.Interactive)
}

// finalize materializes the frozen report; the builder must not be reused.
func (b *reportBuilder) finalize(start, end int64) domain.FinalReport {
	report := domain.FinalReport{
		StartDate:     domain.FormatTimestamp(start, b.location),
		EndDate:       domain.FormatTimestamp(end, b.location),
		TotalDuration: domain.FormatDuration(end - start),
		Activities:    make([]domain.ProgramActivity, 0, b.programs.Len()),
		Millis: domain.Totals{
			Total:    end - start,
			Active:   b.totals.active,
			Inactive: b.totals.inactive,
		},
	}
	if b.totals.seenActive {
		report.TotalActiveDuration = domain.FormatDuration(b.totals.active)
	}
	if b.totals.seenInactive {
		report.TotalInactiveDuration = domain.FormatDuration(b.totals.inactive)
	}

	for pair := b.programs.Oldest(); pair != nil; pair = pair.Next() {
		program := pair.Value
		activity := domain.ProgramActivity{
			Program:               program.label,
			Executable:            program.executable,
			Projects:              make([]domain.ProjectActivity, 0, program.projects.Len()),
			TotalDuration:         domain.FormatDuration(program.totals.total),
			TotalActiveDuration:   nodeDuration(program.totals.active, program.totals.seenActive),
			TotalInactiveDuration: nodeDuration(program.totals.inactive, program.totals.seenInactive),
			Millis:                program.totals.millis(),
		}
		for projectPair := program.projects.Oldest(); projectPair != nil; projectPair = projectPair.Next() {
			project := projectPair.Value
			activity.Projects = append(activity.Projects, domain.ProjectActivity{
				Project:               project.label,
				Periods:               append([]domain.PeriodRecord(nil), project.periods...),
				TotalDuration:         domain.FormatDuration(project.totals.total),
				TotalActiveDuration:   nodeDuration(project.totals.active, project.totals.seenActive),
				TotalInactiveDuration: nodeDuration(project.totals.inactive, project.totals.seenInactive),
				Millis:                project.totals.millis(),
			})
		}
		report.Activities = append(report.Activities, activity)
	}
	return report
}
