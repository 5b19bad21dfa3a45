package domain

// PeriodRecord is one classified period inside a project node.
type PeriodRecord struct {
	StartDate   string      `json:"startDate"`
	EndDate     string      `json:"endDate"`
	Duration    string      `json:"duration"`
	Details     string      `json:"details"`
	Interactive Interaction `json:"interactive"`
}

// Totals carries the millisecond counters behind the formatted durations.
type Totals struct {
	Total    int64 `json:"total"`
	Active   int64 `json:"active"`
	Inactive int64 `json:"inactive"`
}

// ProjectActivity groups the periods of one project within a program.
// Active and inactive durations hold NotApplicable when no period contributed.
type ProjectActivity struct {
	Project               string         `json:"project"`
	Periods               []PeriodRecord `json:"periods"`
	TotalDuration         string         `json:"totalDuration"`
	TotalActiveDuration   string         `json:"totalActiveDuration"`
	TotalInactiveDuration string         `json:"totalInactiveDuration"`
	Millis                Totals         `json:"millis"`
}

// ProgramActivity groups the projects observed for one program label.
type ProgramActivity struct {
	Program               string            `json:"program"`
	Executable            string            `json:"executable"`
	Projects              []ProjectActivity `json:"projectPeriods"`
	TotalDuration         string            `json:"totalDuration"`
	TotalActiveDuration   string            `json:"totalActiveDuration"`
	TotalInactiveDuration string            `json:"totalInactiveDuration"`
	Millis                Totals            `json:"millis"`
}

// FinalReport is the aggregated output of one batch.
// Report-level active and inactive durations are empty when no period matched.
type FinalReport struct {
	StartDate             string            `json:"startDate"`
	EndDate               string            `json:"endDate"`
	TotalDuration         string            `json:"totalDuration"`
	TotalActiveDuration   string            `json:"totalActiveDuration,omitempty"`
	TotalInactiveDuration string            `json:"totalInactiveDuration,omitempty"`
	Activities            []ProgramActivity `json:"activities"`
	Millis                Totals            `json:"millis"`
}

// PeriodCount returns the number of period records in the report.
func (r FinalReport) PeriodCount() int {
	count := 0
	for _, program := range r.Activities {
		for _, project := range program.Projects {
			count += len(project.Periods)
		}
	}
	return count
}

// Program returns the program node with the given label.
func (r FinalReport) Program(label string) (ProgramActivity, bool) {
	for _, program := range r.Activities {
		if program.Program == label {
			return program, true
		}
	}
	return ProgramActivity{}, false
}

// Project returns the project node with the given label.
func (p ProgramActivity) Project(label string) (ProjectActivity, bool) {
	for _, project := range p.Projects {
		if project.Project == label {
			return project, true
		}
	}
	return ProjectActivity{}, false
}
