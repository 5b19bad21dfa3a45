// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"
	"time"

	"github.com/evanschultz/selftrack/internal/domain"
)

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrRulesUnavailable reports a rule catalog that cannot classify the requested periods.
var ErrRulesUnavailable = errors.New("rules unavailable")

// AggregateRequest carries one caller-supplied batch of periods.
type AggregateRequest struct {
	Periods []domain.ActivityPeriod `json:"periods"`
}

// RangeRequest selects stored periods fully contained in [From, To]. Both ends are RFC3339.
type RangeRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// BatchItem describes one stored batch to transport callers.
type BatchItem struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	OperatingSystem string     `json:"operating_system"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	PeriodCount     int        `json:"period_count"`
}

// ReportService exposes aggregation operations to transports.
type ReportService interface {
	AggregatePeriods(context.Context, AggregateRequest) (domain.FinalReport, error)
	ListBatches(context.Context) ([]BatchItem, error)
	BatchReport(context.Context, string) (domain.FinalReport, error)
	RangeReport(context.Context, RangeRequest) (domain.FinalReport, error)
}
