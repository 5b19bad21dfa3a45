package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/evanschultz/selftrack/internal/domain"
)

// Logger is the logging surface used by the tracker.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

// charmLogger adapts a charm logger to Logger.
type charmLogger struct {
	l *log.Logger
}

func (c charmLogger) Debug(msg string, keyvals ...any) { c.l.Debug(msg, keyvals...) }
func (c charmLogger) Info(msg string, keyvals ...any)  { c.l.Info(msg, keyvals...) }
func (c charmLogger) Warn(msg string, keyvals ...any)  { c.l.Warn(msg, keyvals...) }
func (c charmLogger) Error(msg string, keyvals ...any) { c.l.Error(msg, keyvals...) }

// recordError marks a sink failure, which stops the polling loop.
type recordError struct {
	err error
}

func (e *recordError) Error() string { return "record period: " + e.err.Error() }
func (e *recordError) Unwrap() error { return e.err }

// Sink receives closed activity periods in start order.
type Sink interface {
	RecordPeriods(context.Context, []domain.ActivityPeriod) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(context.Context, []domain.ActivityPeriod) error

// RecordPeriods calls f.
func (f SinkFunc) RecordPeriods(ctx context.Context, periods []domain.ActivityPeriod) error {
	return f(ctx, periods)
}

// TrackerConfig holds configuration for the tracker.
type TrackerConfig struct {
	PollInterval  time.Duration
	IdleThreshold time.Duration
	Now           func() time.Time
	Logger        Logger
}

// Tracker polls the focused window and turns consecutive equal observations into periods.
type Tracker struct {
	snapshotter Snapshotter
	idle        IdleSource
	sink        Sink
	interval    time.Duration
	threshold   time.Duration
	now         func() time.Time
	logger      Logger

	mu       sync.Mutex
	open     *domain.ActivityPeriod
	openID   string
	recorded int
}

// NewTracker constructs a tracker. Nil idle sources never report idle time.
func NewTracker(snapshotter Snapshotter, idle IdleSource, sink Sink, cfg TrackerConfig) *Tracker {
	if idle == nil {
		idle = NeverIdle{}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.IdleThreshold <= 0 {
		cfg.IdleThreshold = 20 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = charmLogger{l: log.Default()}
	}
	return &Tracker{
		snapshotter: snapshotter,
		idle:        idle,
		sink:        sink,
		interval:    cfg.PollInterval,
		threshold:   cfg.IdleThreshold,
		now:         cfg.Now,
		logger:      cfg.Logger,
	}
}

// Recorded returns the number of periods handed to the sink.
func (t *Tracker) Recorded() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recorded
}

// Observe takes one snapshot at the given instant.
// A changed observation closes the open period at that instant and opens a new one.
// A failed snapshot closes the open period so the gap is not attributed to it.
func (t *Tracker) Observe(ctx context.Context, at time.Time) error {
	win, err := t.snapshotter.ActiveWindow(ctx)
	if err != nil {
		closeErr := t.close(ctx, at)
		if errors.Is(err, ErrNoActiveWindow) {
			return closeErr
		}
		return errors.Join(fmt.Errorf("capture active window: %w", err), closeErr)
	}

	interaction := domain.InteractionActive
	if idle, idleErr := t.idle.IdleTime(ctx); idleErr != nil {
		t.logger.Warn("idle time unavailable", "err", idleErr)
	} else {
		interaction = Classify(idle, t.threshold)
	}
	obs := Observation{Window: win, Interactive: interaction}
	id := obs.ID()

	t.mu.Lock()
	if t.open != nil && t.openID == id {
		t.open.End = max(t.open.End, at.UnixMilli())
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	if err := t.close(ctx, at); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	ms := at.UnixMilli()
	t.open = &domain.ActivityPeriod{Start: ms, End: ms, Details: obs.Details()}
	t.openID = id
	t.logger.Debug("window observed", "executable", win.Executable, "title", win.Title, "interactive", interaction)
	return nil
}

// Flush closes the open period at the given instant.
func (t *Tracker) Flush(ctx context.Context, at time.Time) error {
	return t.close(ctx, at)
}

// close ends the open period at `at` and hands it to the sink.
func (t *Tracker) close(ctx context.Context, at time.Time) error {
	t.mu.Lock()
	if t.open == nil {
		t.mu.Unlock()
		return nil
	}
	period := *t.open
	period.End = max(period.End, at.UnixMilli())
	t.open = nil
	t.openID = ""
	t.mu.Unlock()

	if err := t.sink.RecordPeriods(ctx, []domain.ActivityPeriod{period}); err != nil {
		return &recordError{err: err}
	}
	t.mu.Lock()
	t.recorded++
	t.mu.Unlock()
	return nil
}

// Run polls until ctx is cancelled, then flushes the open period.
// Snapshot failures are logged and polling continues; sink failures stop the loop.
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.Info("tracking started", "poll_interval", t.interval, "idle_threshold", t.threshold)
	if err := t.poll(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			// The caller's context is done; the final write gets its own.
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := t.Flush(flushCtx, t.now()); err != nil {
				return err
			}
			t.logger.Info("tracking stopped", "periods", t.Recorded())
			return nil
		case <-ticker.C:
			if err := t.poll(ctx); err != nil {
				return err
			}
		}
	}
}

func (t *Tracker) poll(ctx context.Context) error {
	err := t.Observe(ctx, t.now())
	if err == nil {
		return nil
	}
	var recordErr *recordError
	if errors.As(err, &recordErr) {
		return err
	}
	if ctx.Err() != nil {
		return nil
	}
	t.logger.Warn("snapshot failed", "err", err)
	return nil
}
