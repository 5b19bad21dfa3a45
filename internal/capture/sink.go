package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/evanschultz/selftrack/internal/domain"
)

// MultiSink fans periods out to every sink in order and joins their errors.
type MultiSink []Sink

// RecordPeriods records periods in every sink.
func (m MultiSink) RecordPeriods(ctx context.Context, periods []domain.ActivityPeriod) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.RecordPeriods(ctx, periods); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RawFileSink keeps the raw period list of one session in a JSON file.
// The file is rewritten through a temp file on every record so it always holds a valid array.
type RawFileSink struct {
	path string

	mu      sync.Mutex
	periods []domain.ActivityPeriod
}

// NewRawFileSink constructs a sink writing to path.
func NewRawFileSink(path string) *RawFileSink {
	return &RawFileSink{path: path}
}

// Path returns the raw file path.
func (s *RawFileSink) Path() string {
	return s.path
}

// RecordPeriods appends periods and rewrites the file.
func (s *RawFileSink) RecordPeriods(_ context.Context, periods []domain.ActivityPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.periods = append(s.periods, periods...)

	data, err := json.MarshalIndent(s.periods, "", "  ")
	if err != nil {
		return fmt.Errorf("encode raw periods: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create raw dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write raw periods: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace raw periods: %w", err)
	}
	return nil
}
