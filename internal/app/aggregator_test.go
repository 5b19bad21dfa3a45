package app

import (
	"errors"
	"testing"
	"time"

	"github.com/evanschultz/selftrack/internal/domain"
	"github.com/evanschultz/selftrack/internal/rules"
)

func activePeriod(start, end int64, executable, title string) domain.ActivityPeriod {
	return domain.ActivityPeriod{
		Start: start,
		End:   end,
		Details: domain.ActivityDetails{
			Title:       title,
			Executable:  executable,
			Interactive: domain.InteractionActive,
		},
	}
}

func newLinuxAggregator(t *testing.T) *Aggregator {
	t.Helper()
	agg, err := NewAggregator(rules.Builtin(), AggregatorConfig{
		OperatingSystem: domain.OSLinux,
		Location:        time.UTC,
	})
	if err != nil {
		t.Fatalf("NewAggregator() error = %v", err)
	}
	return agg
}

func TestAggregateSingleProjectEditor(t *testing.T) {
	periods := []domain.ActivityPeriod{
		activePeriod(0, 600_000, "code", "main.ts - myproj - Visual Studio Code"),
		activePeriod(600_000, 900_000, "code", "README.md - myproj - Visual Studio Code"),
	}
	report, err := newLinuxAggregator(t).Aggregate(periods)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(report.Activities) != 1 {
		t.Fatalf("expected one program, got %d", len(report.Activities))
	}
	program := report.Activities[0]
	if program.Program != rules.VSCodeProgram || program.Executable != "code" {
		t.Fatalf("unexpected program node %q/%q", program.Program, program.Executable)
	}
	if len(program.Projects) != 1 {
		t.Fatalf("expected one project, got %d", len(program.Projects))
	}
	project := program.Projects[0]
	if project.Project != "myproj" {
		t.Fatalf("project = %q, want myproj", project.Project)
	}
	if len(project.Periods) != 2 {
		t.Fatalf("expected two period records, got %d", len(project.Periods))
	}
	if project.Periods[0].Details != "main.ts" || project.Periods[1].Details != "README.md" {
		t.Fatalf("unexpected details %#v", project.Periods)
	}
	if project.TotalDuration != "15 minutes" || project.TotalActiveDuration != "15 minutes" {
		t.Fatalf("unexpected project totals %q/%q", project.TotalDuration, project.TotalActiveDuration)
	}
	if project.TotalInactiveDuration != domain.NotApplicable {
		t.Fatalf("inactive = %q, want N/A", project.TotalInactiveDuration)
	}
	if report.TotalActiveDuration != "15 minutes" || report.TotalInactiveDuration != "" {
		t.Fatalf("unexpected report totals %q/%q", report.TotalActiveDuration, report.TotalInactiveDuration)
	}
	if report.StartDate != "1970-01-01 00:00:00" || report.EndDate != "1970-01-01 00:15:00" {
		t.Fatalf("unexpected report dates %q..%q", report.StartDate, report.EndDate)
	}
	if project.Periods[1].Duration != "5 minutes" {
		t.Fatalf("period duration = %q", project.Periods[1].Duration)
	}
}

func TestAggregateInactiveBrowser(t *testing.T) {
	period := activePeriod(1_000, 61_000, "chrome", "Inbox - Google Chrome")
	period.Details.Interactive = domain.InteractionInactive
	report, err := newLinuxAggregator(t).Aggregate([]domain.ActivityPeriod{period})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	program, ok := report.Program(rules.ChromeProgram)
	if !ok {
		t.Fatalf("expected %q program", rules.ChromeProgram)
	}
	project, ok := program.Project("")
	if !ok {
		t.Fatal("expected uncategorized project")
	}
	if project.TotalInactiveDuration != "1 minute" || project.TotalActiveDuration != domain.NotApplicable {
		t.Fatalf("unexpected totals active=%q inactive=%q", project.TotalActiveDuration, project.TotalInactiveDuration)
	}
	if project.Periods[0].Details != "Inbox" {
		t.Fatalf("details = %q", project.Periods[0].Details)
	}
	if report.TotalInactiveDuration != "1 minute" || report.TotalActiveDuration != "" {
		t.Fatalf("unexpected report totals active=%q inactive=%q", report.TotalActiveDuration, report.TotalInactiveDuration)
	}
}

func TestAggregateMissingFallback(t *testing.T) {
	catalog, err := rules.NewCatalog(rules.FamilyRules()...)
	if err != nil {
		t.Fatalf("NewCatalog() error = %v", err)
	}
	agg, err := NewAggregator(catalog, AggregatorConfig{OperatingSystem: domain.OSLinux, Location: time.UTC})
	if err != nil {
		t.Fatalf("NewAggregator() error = %v", err)
	}
	_, err = agg.Aggregate([]domain.ActivityPeriod{
		activePeriod(0, 1_000, "code", "a - b - c"),
		activePeriod(1_000, 2_000, "gimp", "image.png"),
	})
	var cfgErr *domain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if cfgErr.OperatingSystem != domain.OSLinux {
		t.Fatalf("unexpected os %q", cfgErr.OperatingSystem)
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	_, err := newLinuxAggregator(t).Aggregate(nil)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAggregateRejectsMalformedInput(t *testing.T) {
	_, err := newLinuxAggregator(t).Aggregate([]domain.ActivityPeriod{
		activePeriod(5_000, 6_000, "code", "x"),
		activePeriod(1_000, 2_000, "code", "y"),
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAggregateFirstSeenOrdering(t *testing.T) {
	periods := []domain.ActivityPeriod{
		activePeriod(0, 1_000, "chrome", "A - Google Chrome"),
		activePeriod(1_000, 2_000, "code", "f - beta - Visual Studio Code"),
		activePeriod(2_000, 3_000, "gimp", "img"),
		activePeriod(3_000, 4_000, "code", "f - alpha - Visual Studio Code"),
		activePeriod(4_000, 5_000, "chrome", "B - Google Chrome"),
		activePeriod(5_000, 6_000, "code-insiders", "g - beta - Visual Studio Code"),
	}
	report, err := newLinuxAggregator(t).Aggregate(periods)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	wantPrograms := []string{rules.ChromeProgram, rules.VSCodeProgram, rules.UnknownProgram}
	if len(report.Activities) != len(wantPrograms) {
		t.Fatalf("expected %d programs, got %d", len(wantPrograms), len(report.Activities))
	}
	for idx, want := range wantPrograms {
		if report.Activities[idx].Program != want {
			t.Fatalf("activities[%d] = %q, want %q", idx, report.Activities[idx].Program, want)
		}
	}
	editor := report.Activities[1]
	if editor.Executable != "code" {
		t.Fatalf("executable = %q, want first-seen code", editor.Executable)
	}
	if len(editor.Projects) != 2 || editor.Projects[0].Project != "beta" || editor.Projects[1].Project != "alpha" {
		t.Fatalf("unexpected project order %#v", editor.Projects)
	}
	if len(editor.Projects[0].Periods) != 2 {
		t.Fatalf("expected two beta periods, got %d", len(editor.Projects[0].Periods))
	}
	if editor.Millis.Total != 3_000 || editor.Millis.Active != 3_000 {
		t.Fatalf("unexpected program millis %#v", editor.Millis)
	}
	if report.PeriodCount() != len(periods) {
		t.Fatalf("PeriodCount() = %d", report.PeriodCount())
	}
}

func TestAggregateOtherInteractionCountsTowardTotalOnly(t *testing.T) {
	period := activePeriod(0, 10_000, "gimp", "img")
	period.Details.Interactive = "unknown"
	report, err := newLinuxAggregator(t).Aggregate([]domain.ActivityPeriod{period})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	project := report.Activities[0].Projects[0]
	if project.TotalDuration != "10 seconds" {
		t.Fatalf("total = %q", project.TotalDuration)
	}
	if project.TotalActiveDuration != domain.NotApplicable || project.TotalInactiveDuration != domain.NotApplicable {
		t.Fatalf("expected N/A totals, got %q/%q", project.TotalActiveDuration, project.TotalInactiveDuration)
	}
	if report.TotalActiveDuration != "" || report.TotalInactiveDuration != "" {
		t.Fatal("expected report active/inactive totals to be omitted")
	}
}

func TestAggregateZeroLengthContributionIsEmptyNotNA(t *testing.T) {
	report, err := newLinuxAggregator(t).Aggregate([]domain.ActivityPeriod{
		activePeriod(1_000, 1_000, "gimp", "img"),
	})
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	project := report.Activities[0].Projects[0]
	if project.TotalActiveDuration != "" {
		t.Fatalf("active = %q, want empty for a zero sum", project.TotalActiveDuration)
	}
	if project.TotalInactiveDuration != domain.NotApplicable {
		t.Fatalf("inactive = %q, want N/A", project.TotalInactiveDuration)
	}
	if report.TotalActiveDuration != "0 seconds" {
		t.Fatalf("report active = %q", report.TotalActiveDuration)
	}
}

func TestAggregateAdditivity(t *testing.T) {
	periods := []domain.ActivityPeriod{
		activePeriod(0, 7_300, "code", "a - p1 - Visual Studio Code"),
		activePeriod(7_300, 9_000, "chrome", "docs - Google Chrome"),
		activePeriod(9_000, 20_100, "code", "b - p2 - Visual Studio Code"),
		activePeriod(21_000, 30_000, "code", "c - p1 - Visual Studio Code"),
		activePeriod(30_000, 45_500, "gimp", "img"),
	}
	periods[3].Details.Interactive = domain.InteractionInactive

	agg := newLinuxAggregator(t)
	full, err := agg.Aggregate(periods)
	if err != nil {
		t.Fatalf("Aggregate(full) error = %v", err)
	}
	for split := 1; split < len(periods); split++ {
		left, err := agg.Aggregate(periods[:split])
		if err != nil {
			t.Fatalf("Aggregate(left) error = %v", err)
		}
		right, err := agg.Aggregate(periods[split:])
		if err != nil {
			t.Fatalf("Aggregate(right) error = %v", err)
		}
		for _, program := range full.Activities {
			for _, project := range program.Projects {
				sum := projectMillis(left, program.Program, project.Project).Total +
					projectMillis(right, program.Program, project.Project).Total
				if sum != project.Millis.Total {
					t.Fatalf("split %d: %s/%s total %d, want %d", split, program.Program, project.Project, sum, project.Millis.Total)
				}
			}
		}
	}
}

func projectMillis(report domain.FinalReport, program, project string) domain.Totals {
	node, ok := report.Program(program)
	if !ok {
		return domain.Totals{}
	}
	leaf, ok := node.Project(project)
	if !ok {
		return domain.Totals{}
	}
	return leaf.Millis
}

func TestAggregateIsDeterministic(t *testing.T) {
	periods := []domain.ActivityPeriod{
		activePeriod(0, 1_000, "code", "x - p - Visual Studio Code"),
		activePeriod(1_000, 2_500, "chrome", "t - Google Chrome"),
	}
	agg := newLinuxAggregator(t)
	first, err := agg.Aggregate(periods)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	second, err := agg.Aggregate(periods)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if first.TotalDuration != second.TotalDuration || len(first.Activities) != len(second.Activities) {
		t.Fatal("expected identical reports")
	}
	for idx := range first.Activities {
		if first.Activities[idx].Program != second.Activities[idx].Program {
			t.Fatalf("program order differs at %d", idx)
		}
	}
}

func TestNewAggregatorDefaultsToRunningPlatform(t *testing.T) {
	want, wantErr := domain.CurrentOperatingSystem()
	agg, err := NewAggregator(rules.Builtin(), AggregatorConfig{})
	if wantErr != nil {
		if !errors.Is(err, domain.ErrUnknownOperatingSystem) {
			t.Fatalf("expected ErrUnknownOperatingSystem, got %v", err)
		}
		if agg != nil {
			t.Fatalf("expected nil aggregator on error, got %#v", agg)
		}
		return
	}
	if err != nil {
		t.Fatalf("NewAggregator() error = %v", err)
	}
	if agg.OperatingSystem() == "" || agg.OperatingSystem() != want {
		t.Fatalf("OperatingSystem() = %q, want %q", agg.OperatingSystem(), want)
	}
	if agg.location != time.Local {
		t.Fatalf("expected local time zone default, got %v", agg.location)
	}
}
