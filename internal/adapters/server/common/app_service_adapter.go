package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evanschultz/selftrack/internal/app"
	"github.com/evanschultz/selftrack/internal/domain"
)

// AppServiceAdapter maps transport contracts onto app.Service report APIs.
type AppServiceAdapter struct {
	service *app.Service
}

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

// AggregatePeriods aggregates caller-supplied periods without storing them.
func (a *AppServiceAdapter) AggregatePeriods(ctx context.Context, in AggregateRequest) (domain.FinalReport, error) {
	if err := a.ready(); err != nil {
		return domain.FinalReport{}, err
	}
	report, err := a.service.AggregatePeriods(ctx, in.Periods)
	if err != nil {
		return domain.FinalReport{}, mapAppError("aggregate periods", err)
	}
	return report, nil
}

// ListBatches lists stored batches in start order.
func (a *AppServiceAdapter) ListBatches(ctx context.Context) ([]BatchItem, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	summaries, err := a.service.ListBatches(ctx)
	if err != nil {
		return nil, mapAppError("list batches", err)
	}
	out := make([]BatchItem, 0, len(summaries))
	for _, summary := range summaries {
		out = append(out, mapBatchSummary(summary))
	}
	return out, nil
}

// BatchReport aggregates every stored period of one batch.
func (a *AppServiceAdapter) BatchReport(ctx context.Context, batchID string) (domain.FinalReport, error) {
	if err := a.ready(); err != nil {
		return domain.FinalReport{}, err
	}
	batchID = strings.TrimSpace(batchID)
	if batchID == "" {
		return domain.FinalReport{}, fmt.Errorf("batch_id is required: %w", ErrInvalidRequest)
	}
	report, err := a.service.ReportForBatch(ctx, batchID)
	if err != nil {
		return domain.FinalReport{}, mapAppError(fmt.Sprintf("report batch %q", batchID), err)
	}
	return report, nil
}

// RangeReport aggregates stored periods inside one time range.
func (a *AppServiceAdapter) RangeReport(ctx context.Context, in RangeRequest) (domain.FinalReport, error) {
	if err := a.ready(); err != nil {
		return domain.FinalReport{}, err
	}
	from, err := parseRFC3339("from", in.From)
	if err != nil {
		return domain.FinalReport{}, err
	}
	to, err := parseRFC3339("to", in.To)
	if err != nil {
		return domain.FinalReport{}, err
	}
	report, err := a.service.ReportBetween(ctx, from, to)
	if err != nil {
		return domain.FinalReport{}, mapAppError("report range", err)
	}
	return report, nil
}

// ready reports whether the adapter has a backing service.
func (a *AppServiceAdapter) ready() error {
	if a == nil || a.service == nil {
		return fmt.Errorf("app service adapter is not configured: %w", ErrRulesUnavailable)
	}
	return nil
}

// mapBatchSummary converts one app batch summary into its transport shape.
func mapBatchSummary(in app.BatchSummary) BatchItem {
	return BatchItem{
		ID:              in.Batch.ID,
		Name:            in.Batch.Name,
		OperatingSystem: string(in.Batch.OperatingSystem),
		StartedAt:       in.Batch.StartedAt,
		EndedAt:         in.Batch.EndedAt,
		PeriodCount:     in.PeriodCount,
	}
}

// parseRFC3339 parses one required timestamp field.
func parseRFC3339(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("%s is required: %w", field, ErrInvalidRequest)
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be RFC3339: %w", field, errors.Join(ErrInvalidRequest, err))
	}
	return ts, nil
}

// mapAppError maps app/domain errors into transport-layer error sentinels.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrNotFound, err))
	case errors.Is(err, domain.ErrConfiguration):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrRulesUnavailable, err))
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, app.ErrInvalidRange),
		errors.Is(err, app.ErrBatchFinished):
		return fmt.Errorf("%s: %w", operation, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
}
