package app

import (
	"context"

	"github.com/evanschultz/selftrack/internal/domain"
)

// PeriodStore persists tracking batches and their captured periods.
type PeriodStore interface {
	CreateBatch(context.Context, domain.Batch) error
	UpdateBatch(context.Context, domain.Batch) error
	GetBatch(context.Context, string) (domain.Batch, error)
	ListBatches(context.Context) ([]domain.Batch, error)

	AppendPeriods(context.Context, string, []domain.ActivityPeriod) error
	ListPeriods(context.Context, string) ([]domain.ActivityPeriod, error)
	ListPeriodsBetween(context.Context, int64, int64) ([]domain.ActivityPeriod, error)
}
