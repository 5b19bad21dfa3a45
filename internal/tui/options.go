package tui

import "github.com/evanschultz/selftrack/internal/domain"

// Option customizes a Model.
type Option func(*Model)

// WithInitialBatch preselects the batch with the given id once batches load.
func WithInitialBatch(batchID string) Option {
	return func(m *Model) {
		m.pendingBatchID = batchID
	}
}

// WithStaticReport shows one precomputed report instead of stored batches.
func WithStaticReport(label string, report domain.FinalReport) Option {
	return func(m *Model) {
		m.static = true
		m.batches = []batchEntry{{id: label, name: label, periods: report.PeriodCount()}}
		m.setReport(label, report)
	}
}

// WithClipboard replaces the clipboard writer used by the copy binding.
func WithClipboard(write func(string) error) Option {
	return func(m *Model) {
		if write != nil {
			m.copyText = write
		}
	}
}
