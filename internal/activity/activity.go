// Package activity tracks user interaction so the keep-alive layer can tell
// an active performer from an abandoned session.
package activity

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ThrottleWindow is the trailing-edge throttle applied to Touch. A burst of
// events inside one window costs one timestamp update at the leading edge
// and one at the trailing edge, so the recorded timestamp is never staler
// than the window while events keep arriving.
const ThrottleWindow = 500 * time.Millisecond

// Source is anything that produces user-activity events. Start attaches the
// notify callback; implementations call it once per event and must stop
// calling it after Stop returns.
type Source interface {
	Start(notify func()) error
	Stop()
}

// FuncSource adapts start/stop closures to the Source interface.
type FuncSource struct {
	StartFn func(notify func()) error
	StopFn  func()
}

func (f *FuncSource) Start(notify func()) error {
	if f.StartFn == nil {
		return nil
	}
	return f.StartFn(notify)
}

func (f *FuncSource) Stop() {
	if f.StopFn != nil {
		f.StopFn()
	}
}

// Tracker records the timestamp of the most recent user activity across any
// number of sources. Safe for concurrent use.
type Tracker struct {
	logger *logrus.Logger

	mu      sync.Mutex
	sources []Source
	started bool
	last    time.Time
	timer   *time.Timer
	pending bool

	// Injectable clock and timer for tests.
	now       func() time.Time
	afterFunc func(d time.Duration, f func()) *time.Timer
}

// NewTracker creates a stopped tracker.
func NewTracker(logger *logrus.Logger) *Tracker {
	return &Tracker{
		logger:    logger,
		now:       time.Now,
		afterFunc: time.AfterFunc,
	}
}

// AddSource registers a source. Sources added while the tracker runs are
// started immediately.
func (t *Tracker) AddSource(src Source) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sources = append(t.sources, src)
	if t.started {
		return src.Start(t.Touch)
	}
	return nil
}

// Start attaches all registered sources and seeds the activity timestamp
// with the current time, so a fresh session counts as active. Calling Start
// on a running tracker is a no-op.
func (t *Tracker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return nil
	}

	for i, src := range t.sources {
		if err := src.Start(t.Touch); err != nil {
			for _, started := range t.sources[:i] {
				started.Stop()
			}
			t.logger.WithField("error", err).Error("Failed to start activity source")
			return err
		}
	}

	t.started = true
	t.last = t.now()
	t.logger.WithField("sources", len(t.sources)).Debug("Activity tracker started")
	return nil
}

// Stop detaches all sources and cancels the pending trailing-edge timer.
// Idempotent.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.started {
		return
	}
	t.started = false

	for _, src := range t.sources {
		src.Stop()
	}
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.pending = false
	t.logger.Debug("Activity tracker stopped")
}

// Touch records user activity. The first event in a throttle window updates
// the timestamp immediately; further events inside the window coalesce into
// a single trailing-edge update.
func (t *Tracker) Touch() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.pending = true
		return
	}

	t.last = t.now()
	t.timer = t.afterFunc(ThrottleWindow, t.trailingEdge)
}

func (t *Tracker) trailingEdge() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.timer = nil
	if !t.pending {
		return
	}
	t.pending = false
	t.last = t.now()
	t.timer = t.afterFunc(ThrottleWindow, t.trailingEdge)
}

// TimeSinceActivity returns how long ago the last activity was recorded.
// Before the first Start it reports the age of the zero time, which reads as
// "idle forever".
func (t *Tracker) TimeSinceActivity() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.now().Sub(t.last)
}
