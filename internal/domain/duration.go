package domain

import (
	"strconv"
	"strings"
	"time"
)

// NotApplicable marks a node total that never received a contributing period.
const NotApplicable = "N/A"

// TimestampLayout is the report date layout.
const TimestampLayout = "2006-01-02 15:04:05"

// FormatDuration renders milliseconds as hours, minutes and seconds.
// Seconds are rounded half-up, zero units are omitted, and zero renders as "0 seconds".
func FormatDuration(millis int64) string {
	if millis < 0 {
		millis = 0
	}
	totalSeconds := (millis + 500) / 1000
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	parts := make([]string, 0, 3)
	if hours > 0 {
		parts = append(parts, pluralize(hours, "hour"))
	}
	if minutes > 0 {
		parts = append(parts, pluralize(minutes, "minute"))
	}
	if seconds > 0 {
		parts = append(parts, pluralize(seconds, "second"))
	}
	if len(parts) == 0 {
		return "0 seconds"
	}
	return strings.Join(parts, ", ")
}

// FormatTimestamp renders epoch milliseconds with TimestampLayout in loc.
func FormatTimestamp(millis int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(millis).In(loc).Format(TimestampLayout)
}

// OrNotApplicable returns value, or NotApplicable when value is empty.
func OrNotApplicable(value string) string {
	if value == "" {
		return NotApplicable
	}
	return value
}

// pluralize renders one unit count.
func pluralize(n int64, unit string) string {
	s := strconv.FormatInt(n, 10) + " " + unit
	if n != 1 {
		s += "s"
	}
	return s
}
