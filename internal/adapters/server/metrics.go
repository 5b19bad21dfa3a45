package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evanschultz/selftrack/internal/adapters/server/common"
	"github.com/evanschultz/selftrack/internal/domain"
)

// Metrics holds the report counters exported on the metrics endpoint.
type Metrics struct {
	registry      *prometheus.Registry
	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	periods       prometheus.Counter
	trackedMillis *prometheus.CounterVec
}

// NewMetrics registers report metrics on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		registry: registry,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "selftrack",
			Name:      "report_requests_total",
			Help:      "Report operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "selftrack",
			Name:      "report_duration_seconds",
			Help:      "Report operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"operation"}),
		periods: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "selftrack",
			Name:      "aggregated_periods_total",
			Help:      "Periods classified by successful report operations.",
		}),
		trackedMillis: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "selftrack",
			Name:      "aggregated_milliseconds_total",
			Help:      "Aggregated time by interaction.",
		}, []string{"interaction"}),
	}
}

// Handler returns the exposition handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the backing registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Instrument wraps one report service with request and aggregation counters.
func (m *Metrics) Instrument(next common.ReportService) common.ReportService {
	if m == nil || next == nil {
		return next
	}
	return &instrumentedService{next: next, metrics: m}
}

// observe records one finished operation.
func (m *Metrics) observe(operation string, started time.Time, err error) {
	m.duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	m.requests.WithLabelValues(operation, outcome(err)).Inc()
}

// observeReport records the size of one successful report.
func (m *Metrics) observeReport(report domain.FinalReport) {
	m.periods.Add(float64(report.PeriodCount()))
	m.trackedMillis.WithLabelValues(string(domain.InteractionActive)).Add(float64(report.Millis.Active))
	m.trackedMillis.WithLabelValues(string(domain.InteractionInactive)).Add(float64(report.Millis.Inactive))
}

// outcome classifies one operation result as a metric label.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, common.ErrNotFound):
		return "not_found"
	case errors.Is(err, common.ErrRulesUnavailable):
		return "configuration"
	default:
		return "error"
	}
}

// instrumentedService decorates a report service with metrics.
type instrumentedService struct {
	next    common.ReportService
	metrics *Metrics
}

// AggregatePeriods records metrics around the wrapped call.
func (s *instrumentedService) AggregatePeriods(ctx context.Context, req common.AggregateRequest) (domain.FinalReport, error) {
	started := time.Now()
	report, err := s.next.AggregatePeriods(ctx, req)
	s.metrics.observe("aggregate_periods", started, err)
	if err == nil {
		s.metrics.observeReport(report)
	}
	return report, err
}

// ListBatches records metrics around the wrapped call.
func (s *instrumentedService) ListBatches(ctx context.Context) ([]common.BatchItem, error) {
	started := time.Now()
	items, err := s.next.ListBatches(ctx)
	s.metrics.observe("list_batches", started, err)
	return items, err
}

// BatchReport records metrics around the wrapped call.
func (s *instrumentedService) BatchReport(ctx context.Context, batchID string) (domain.FinalReport, error) {
	started := time.Now()
	report, err := s.next.BatchReport(ctx, batchID)
	s.metrics.observe("batch_report", started, err)
	if err == nil {
		s.metrics.observeReport(report)
	}
	return report, err
}

// RangeReport records metrics around the wrapped call.
func (s *instrumentedService) RangeReport(ctx context.Context, req common.RangeRequest) (domain.FinalReport, error) {
	started := time.Now()
	report, err := s.next.RangeReport(ctx, req)
	s.metrics.observe("range_report", started, err)
	if err == nil {
		s.metrics.observeReport(report)
	}
	return report, err
}
