package domain

import (
	"strings"
	"time"
)

// Batch is one tracking session whose periods are aggregated together.
type Batch struct {
	ID              string
	Name            string
	OperatingSystem OperatingSystem
	StartedAt       time.Time
	EndedAt         *time.Time
}

// NewBatch constructs a new tracking session.
func NewBatch(id, name string, os OperatingSystem, now time.Time) (Batch, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" {
		return Batch{}, ErrInvalidID
	}
	if name == "" {
		name = now.UTC().Format("20060102-150405")
	}
	return Batch{
		ID:              id,
		Name:            name,
		OperatingSystem: os,
		StartedAt:       now.UTC(),
	}, nil
}

// Finish marks the batch as ended.
func (b *Batch) Finish(now time.Time) {
	ts := now.UTC()
	b.EndedAt = &ts
}

// Finished reports whether the batch has ended.
func (b Batch) Finished() bool {
	return b.EndedAt != nil
}
