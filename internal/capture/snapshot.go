// Package capture observes the focused window and folds observations into activity periods.
package capture

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/evanschultz/selftrack/internal/domain"
)

// ErrNoActiveWindow reports that no window currently has focus.
var ErrNoActiveWindow = errors.New("no active window")

// ErrUnsupportedPlatform reports a platform without a snapshot implementation.
var ErrUnsupportedPlatform = errors.New("window capture is not supported on this platform")

// Window describes the focused window at one instant.
type Window struct {
	Title      string `json:"title"`
	Executable string `json:"executable"`
	ClassName  string `json:"className,omitempty"`
}

// Snapshotter reads the currently focused window.
type Snapshotter interface {
	ActiveWindow(context.Context) (Window, error)
}

// IdleSource reports how long the user has been idle.
type IdleSource interface {
	IdleTime(context.Context) (time.Duration, error)
}

// Observation is one window snapshot tagged with an interaction state.
type Observation struct {
	Window
	Interactive domain.Interaction `json:"interactive"`
}

// Details converts the observation to period details.
func (o Observation) Details() domain.ActivityDetails {
	return domain.ActivityDetails{
		Title:       o.Title,
		Executable:  o.Executable,
		ClassName:   o.ClassName,
		Interactive: o.Interactive,
	}
}

// ID returns a content hash identifying equal observations.
func (o Observation) ID() string {
	raw, err := json.Marshal(o)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Classify tags idle time against threshold; idle strictly above threshold is inactive.
func Classify(idle, threshold time.Duration) domain.Interaction {
	if idle > threshold {
		return domain.InteractionInactive
	}
	return domain.InteractionActive
}

// NeverIdle is an IdleSource for platforms without idle detection.
type NeverIdle struct{}

// IdleTime always reports zero idle time.
func (NeverIdle) IdleTime(context.Context) (time.Duration, error) {
	return 0, nil
}

// NewPlatformSnapshotter returns the snapshotter for os.
func NewPlatformSnapshotter(os domain.OperatingSystem) (Snapshotter, error) {
	switch os {
	case domain.OSLinux:
		return NewXpropSnapshotter(nil, nil), nil
	default:
		return nil, ErrUnsupportedPlatform
	}
}

// NewPlatformIdleSource returns the idle source for os.
func NewPlatformIdleSource(os domain.OperatingSystem) IdleSource {
	switch os {
	case domain.OSLinux:
		return NewXprintidleSource(nil)
	default:
		return NeverIdle{}
	}
}
