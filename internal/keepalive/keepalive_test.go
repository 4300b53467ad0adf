package keepalive

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMonitor struct {
	idle    time.Duration
	stopped int
}

func (m *fakeMonitor) TimeSinceActivity() time.Duration { return m.idle }
func (m *fakeMonitor) Stop()                            { m.stopped++ }

func newTestScheduler(monitor *fakeMonitor) *Scheduler {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewScheduler(logger, monitor, Options{})
}

func TestDefaults(t *testing.T) {
	s := newTestScheduler(&fakeMonitor{})

	assert.Equal(t, 45*time.Second, s.opts.Period)
	assert.Equal(t, 2*time.Minute, s.opts.ActivityTimeout)
}

func TestTickPingsWhileActive(t *testing.T) {
	monitor := &fakeMonitor{idle: 119 * time.Second}
	s := newTestScheduler(monitor)

	pings := 0
	s.SetPing(func(context.Context) error {
		pings++
		return nil
	})

	s.tick(context.Background())
	assert.Equal(t, 1, pings, "idle just under the cutoff must ping")
}

func TestTickSkipsWhenIdlePastCutoff(t *testing.T) {
	monitor := &fakeMonitor{idle: 121 * time.Second}
	s := newTestScheduler(monitor)

	pings := 0
	s.SetPing(func(context.Context) error {
		pings++
		return nil
	})

	s.tick(context.Background())
	assert.Zero(t, pings, "idle past the cutoff must not ping")

	// The cutoff itself is exclusive.
	monitor.idle = 2 * time.Minute
	s.tick(context.Background())
	assert.Zero(t, pings)
}

func TestTickSwallowsPingFailure(t *testing.T) {
	s := newTestScheduler(&fakeMonitor{idle: time.Second})
	s.SetPing(func(context.Context) error {
		return errors.New("write failed")
	})

	assert.NotPanics(t, func() { s.tick(context.Background()) })
}

func TestStartWithoutPing(t *testing.T) {
	s := newTestScheduler(&fakeMonitor{})

	err := s.Start(context.Background())
	assert.ErrorIs(t, err, ErrNoPing)

	// Stop on a never-started scheduler is safe.
	s.Stop()
}

func TestStartStopLifecycle(t *testing.T) {
	monitor := &fakeMonitor{idle: time.Second}
	s := newTestScheduler(monitor)
	s.SetPing(func(context.Context) error { return nil })

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()), "second start is a no-op")

	s.Stop()
	assert.Equal(t, 1, monitor.stopped, "stop forwards to the activity monitor")

	s.Stop()
	assert.Equal(t, 1, monitor.stopped, "stop is idempotent")
}

func TestLoopPingsOnPeriod(t *testing.T) {
	monitor := &fakeMonitor{idle: time.Second}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	s := NewScheduler(logger, monitor, Options{Period: 5 * time.Millisecond})

	pinged := make(chan struct{}, 1)
	s.SetPing(func(context.Context) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return nil
	})

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	select {
	case <-pinged:
	case <-time.After(time.Second):
		t.Fatal("expected a ping within the period")
	}
}
