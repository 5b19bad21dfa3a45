package app

import (
	"context"
	"fmt"
	"time"

	"github.com/evanschultz/selftrack/internal/domain"
)

// IDGenerator returns unique identifiers for new batches.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// BatchSummary pairs a batch with the number of stored periods.
type BatchSummary struct {
	Batch       domain.Batch
	PeriodCount int
}

// Service coordinates batch storage and report aggregation.
type Service struct {
	store      PeriodStore
	aggregator *Aggregator
	idGen      IDGenerator
	clock      Clock
}

// NewService constructs a new value for this package.
func NewService(store PeriodStore, aggregator *Aggregator, idGen IDGenerator, clock Clock) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		store:      store,
		aggregator: aggregator,
		idGen:      idGen,
		clock:      clock,
	}
}

// Aggregator returns the aggregator used for reports.
func (s *Service) Aggregator() *Aggregator {
	return s.aggregator
}

// StartBatch opens a new tracking batch for the aggregator's operating system.
func (s *Service) StartBatch(ctx context.Context, name string) (domain.Batch, error) {
	batch, err := domain.NewBatch(s.idGen(), name, s.aggregator.OperatingSystem(), s.clock())
	if err != nil {
		return domain.Batch{}, err
	}
	if err := s.store.CreateBatch(ctx, batch); err != nil {
		return domain.Batch{}, err
	}
	return batch, nil
}

// RecordPeriods appends captured periods to an open batch.
func (s *Service) RecordPeriods(ctx context.Context, batchID string, periods []domain.ActivityPeriod) error {
	if len(periods) == 0 {
		return nil
	}
	batch, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}
	if batch.Finished() {
		return fmt.Errorf("%w: %s", ErrBatchFinished, batch.ID)
	}
	if err := domain.ValidatePeriods(periods); err != nil {
		return err
	}
	return s.store.AppendPeriods(ctx, batch.ID, periods)
}

// FinishBatch marks a batch as ended. Finishing twice keeps the first end time.
func (s *Service) FinishBatch(ctx context.Context, batchID string) (domain.Batch, error) {
	batch, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		return domain.Batch{}, err
	}
	if batch.Finished() {
		return batch, nil
	}
	batch.Finish(s.clock())
	if err := s.store.UpdateBatch(ctx, batch); err != nil {
		return domain.Batch{}, err
	}
	return batch, nil
}

// GetBatch returns one batch.
func (s *Service) GetBatch(ctx context.Context, batchID string) (domain.Batch, error) {
	return s.store.GetBatch(ctx, batchID)
}

// ListBatches returns stored batches with their period counts.
func (s *Service) ListBatches(ctx context.Context) ([]BatchSummary, error) {
	batches, err := s.store.ListBatches(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]BatchSummary, 0, len(batches))
	for _, batch := range batches {
		periods, err := s.store.ListPeriods(ctx, batch.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, BatchSummary{Batch: batch, PeriodCount: len(periods)})
	}
	return out, nil
}

// ListPeriods returns the captured periods of one batch in start order.
func (s *Service) ListPeriods(ctx context.Context, batchID string) ([]domain.ActivityPeriod, error) {
	if _, err := s.store.GetBatch(ctx, batchID); err != nil {
		return nil, err
	}
	return s.store.ListPeriods(ctx, batchID)
}

// ReportForBatch aggregates every period of one batch.
func (s *Service) ReportForBatch(ctx context.Context, batchID string) (domain.FinalReport, error) {
	periods, err := s.ListPeriods(ctx, batchID)
	if err != nil {
		return domain.FinalReport{}, err
	}
	return s.aggregator.Aggregate(periods)
}

// ReportBetween aggregates stored periods fully contained in [from, to].
func (s *Service) ReportBetween(ctx context.Context, from, to time.Time) (domain.FinalReport, error) {
	if to.Before(from) {
		return domain.FinalReport{}, fmt.Errorf("%w: %s is before %s", ErrInvalidRange, to.Format(time.RFC3339), from.Format(time.RFC3339))
	}
	periods, err := s.store.ListPeriodsBetween(ctx, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return domain.FinalReport{}, err
	}
	return s.aggregator.Aggregate(periods)
}

// AggregatePeriods aggregates an already-captured batch that is not stored.
func (s *Service) AggregatePeriods(_ context.Context, periods []domain.ActivityPeriod) (domain.FinalReport, error) {
	return s.aggregator.Aggregate(periods)
}
