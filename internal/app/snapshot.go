package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/evanschultz/selftrack/internal/domain"
)

// SnapshotVersion defines a package constant value.
const SnapshotVersion = "selftrack.snapshot.v1"

// Snapshot is the portable JSON form of stored batches.
type Snapshot struct {
	Version    string          `json:"version"`
	ExportedAt time.Time       `json:"exported_at"`
	Batches    []SnapshotBatch `json:"batches"`
}

// SnapshotBatch represents one batch and its periods in a snapshot.
type SnapshotBatch struct {
	ID              string                  `json:"id"`
	Name            string                  `json:"name"`
	OperatingSystem domain.OperatingSystem  `json:"operating_system"`
	StartedAt       time.Time               `json:"started_at"`
	EndedAt         *time.Time              `json:"ended_at,omitempty"`
	Periods         []domain.ActivityPeriod `json:"periods"`
}

// ExportSnapshot exports the requested batches, or every batch when none are named.
func (s *Service) ExportSnapshot(ctx context.Context, batchIDs ...string) (Snapshot, error) {
	var batches []domain.Batch
	if len(batchIDs) == 0 {
		all, err := s.store.ListBatches(ctx)
		if err != nil {
			return Snapshot{}, err
		}
		batches = all
	} else {
		for _, id := range batchIDs {
			batch, err := s.store.GetBatch(ctx, strings.TrimSpace(id))
			if err != nil {
				return Snapshot{}, err
			}
			batches = append(batches, batch)
		}
	}

	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: s.clock().UTC(),
		Batches:    make([]SnapshotBatch, 0, len(batches)),
	}
	for _, batch := range batches {
		periods, err := s.store.ListPeriods(ctx, batch.ID)
		if err != nil {
			return Snapshot{}, err
		}
		sb := snapshotBatchFromDomain(batch)
		sb.Periods = periods
		snap.Batches = append(snap.Batches, sb)
	}
	snap.sort()
	return snap, nil
}

// ImportSnapshot creates missing batches with their periods.
// Batches that already exist keep their stored periods and only have their metadata updated.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	snap.sort()

	for _, sb := range snap.Batches {
		batch := sb.toDomain()
		if _, err := s.store.GetBatch(ctx, batch.ID); err == nil {
			if err := s.store.UpdateBatch(ctx, batch); err != nil {
				return err
			}
			continue
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := s.store.CreateBatch(ctx, batch); err != nil {
			return err
		}
		if len(sb.Periods) == 0 {
			continue
		}
		if err := s.store.AppendPeriods(ctx, batch.ID, sb.Periods); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the requested operation.
func (s *Snapshot) Validate() error {
	if s.Version != "" && s.Version != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version: %q", s.Version)
	}
	ids := map[string]struct{}{}
	for i, b := range s.Batches {
		if strings.TrimSpace(b.ID) == "" {
			return fmt.Errorf("batches[%d].id is required", i)
		}
		if _, exists := ids[b.ID]; exists {
			return fmt.Errorf("duplicate batch id: %q", b.ID)
		}
		ids[b.ID] = struct{}{}
		if b.StartedAt.IsZero() {
			return fmt.Errorf("batches[%d].started_at is required", i)
		}
		if _, err := domain.ParseOperatingSystem(string(b.OperatingSystem)); err != nil {
			return fmt.Errorf("batches[%d].operating_system: %w", i, err)
		}
		if len(b.Periods) == 0 {
			continue
		}
		if err := domain.ValidatePeriods(b.Periods); err != nil {
			return fmt.Errorf("batches[%d]: %w", i, err)
		}
	}
	return nil
}

// DecodePeriods reads a raw batch file. It accepts a bare JSON array of periods
// or a snapshot whose batches are concatenated in start order.
func DecodePeriods(data []byte) ([]domain.ActivityPeriod, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &domain.InputError{Index: -1, Reason: "empty batch file"}
	}
	if trimmed[0] == '[' {
		var periods []domain.ActivityPeriod
		if err := json.Unmarshal(trimmed, &periods); err != nil {
			return nil, fmt.Errorf("%w: decode periods: %w", domain.ErrInvalidInput, err)
		}
		return periods, nil
	}
	var snap Snapshot
	if err := json.Unmarshal(trimmed, &snap); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %w", domain.ErrInvalidInput, err)
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}
	snap.sort()
	out := make([]domain.ActivityPeriod, 0)
	for _, b := range snap.Batches {
		out = append(out, b.Periods...)
	}
	return out, nil
}

// sort orders batches by start time, then id.
func (s *Snapshot) sort() {
	sort.SliceStable(s.Batches, func(i, j int) bool {
		a := s.Batches[i]
		b := s.Batches[j]
		if a.StartedAt.Equal(b.StartedAt) {
			return a.ID < b.ID
		}
		return a.StartedAt.Before(b.StartedAt)
	})
}

// snapshotBatchFromDomain handles snapshot batch from domain.
func snapshotBatchFromDomain(b domain.Batch) SnapshotBatch {
	return SnapshotBatch{
		ID:              b.ID,
		Name:            b.Name,
		OperatingSystem: b.OperatingSystem,
		StartedAt:       b.StartedAt.UTC(),
		EndedAt:         copyTimePtr(b.EndedAt),
	}
}

func (b SnapshotBatch) toDomain() domain.Batch {
	return domain.Batch{
		ID:              strings.TrimSpace(b.ID),
		Name:            strings.TrimSpace(b.Name),
		OperatingSystem: b.OperatingSystem,
		StartedAt:       b.StartedAt.UTC(),
		EndedAt:         copyTimePtr(b.EndedAt),
	}
}

func copyTimePtr(in *time.Time) *time.Time {
	if in == nil {
		return nil
	}
	out := in.UTC()
	return &out
}
