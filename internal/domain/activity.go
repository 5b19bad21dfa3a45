package domain

import (
	"fmt"
	"time"
)

// Interaction tags a period as active or idle.
type Interaction string

// InteractionActive and related constants define the idle-detection tags.
const (
	InteractionActive   Interaction = "active"
	InteractionInactive Interaction = "inactive"
)

// ActivityDetails describes the window that was focused during one period.
type ActivityDetails struct {
	Title       string      `json:"title"`
	Executable  string      `json:"executable"`
	ClassName   string      `json:"className,omitempty"`
	Interactive Interaction `json:"interactive"`
}

// ActivityPeriod is one contiguous interval with the same focused window.
// Start and End are epoch milliseconds.
type ActivityPeriod struct {
	Start   int64           `json:"start"`
	End     int64           `json:"end"`
	Details ActivityDetails `json:"details"`
}

// DurationMillis returns End - Start.
func (p ActivityPeriod) DurationMillis() int64 {
	return p.End - p.Start
}

// StartTime returns the period start as a time value.
func (p ActivityPeriod) StartTime() time.Time {
	return time.UnixMilli(p.Start)
}

// EndTime returns the period end as a time value.
func (p ActivityPeriod) EndTime() time.Time {
	return time.UnixMilli(p.End)
}

// ValidatePeriods checks that a batch is non-empty, ordered by start, and non-overlapping.
func ValidatePeriods(periods []ActivityPeriod) error {
	if len(periods) == 0 {
		return &InputError{Index: -1, Reason: "empty period sequence"}
	}
	for idx, period := range periods {
		if period.End < period.Start {
			return &InputError{Index: idx, Reason: fmt.Sprintf("end %d is before start %d", period.End, period.Start)}
		}
		if idx == 0 {
			continue
		}
		prev := periods[idx-1]
		if period.Start < prev.Start {
			return &InputError{Index: idx, Reason: fmt.Sprintf("start %d is before previous start %d", period.Start, prev.Start)}
		}
		if period.Start < prev.End {
			return &InputError{Index: idx, Reason: fmt.Sprintf("start %d overlaps previous period ending %d", period.Start, prev.End)}
		}
	}
	return nil
}
