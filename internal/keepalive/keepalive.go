// Package keepalive pings the device on a fixed period while the user is
// active, preventing the firmware's idle disconnect without keeping an
// abandoned session alive forever.
package keepalive

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"

	"github.com/srg/levctl/internal/groutine"
)

// ErrNoPing is returned by Start when no ping function was configured.
var ErrNoPing = errors.New("keepalive: ping function not configured")

// ActivityMonitor supplies the idle time that gates pings. Stop is forwarded
// from Scheduler.Stop so the two lifecycles stay coupled.
type ActivityMonitor interface {
	TimeSinceActivity() time.Duration
	Stop()
}

// Options configures the scheduler.
type Options struct {
	// Period between pings while the session is considered active.
	Period time.Duration `yaml:"period" default:"45s"`

	// ActivityTimeout is the idle cutoff. A tick with idle time at or past
	// the cutoff sends no ping, letting the device's own idle disconnect
	// reclaim the link.
	ActivityTimeout time.Duration `yaml:"activity_timeout" default:"2m"`
}

// Scheduler drives periodic keep-alive pings. It is an idle/running state
// machine; Start and Stop are both idempotent.
type Scheduler struct {
	logger  *logrus.Logger
	monitor ActivityMonitor
	opts    Options

	mu      sync.Mutex
	ping    func(ctx context.Context) error
	running bool
	cancel  context.CancelFunc
}

// NewScheduler creates an idle scheduler. Zero-valued options fall back to
// their defaults.
func NewScheduler(logger *logrus.Logger, monitor ActivityMonitor, opts Options) *Scheduler {
	defaults.SetDefaults(&opts)
	return &Scheduler{
		logger:  logger,
		monitor: monitor,
		opts:    opts,
	}
}

// SetPing configures the ping callback. Must be called before Start.
func (s *Scheduler) SetPing(ping func(ctx context.Context) error) {
	s.mu.Lock()
	s.ping = ping
	s.mu.Unlock()
}

// Start moves the scheduler to running. Starting without a ping function is
// a configuration bug; it is logged and reported, never a panic.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ping == nil {
		s.logger.Error("Keep-alive started without a ping function")
		return ErrNoPing
	}
	if s.running {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel

	s.logger.WithFields(logrus.Fields{
		"period":           s.opts.Period,
		"activity_timeout": s.opts.ActivityTimeout,
	}).Debug("Keep-alive started")

	groutine.Go(loopCtx, "keepalive-scheduler", s.loop)
	return nil
}

// Stop cancels the ping loop and stops the activity monitor. Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.monitor.Stop()
	s.logger.Debug("Keep-alive stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// tick sends one ping if the user has been active recently enough. Ping
// failures are logged and swallowed: a failed keep-alive must never take the
// session down, the transport's own disconnect detection owns that call.
func (s *Scheduler) tick(ctx context.Context) {
	idle := s.monitor.TimeSinceActivity()
	if idle >= s.opts.ActivityTimeout {
		s.logger.WithFields(logrus.Fields{
			"idle":             idle,
			"activity_timeout": s.opts.ActivityTimeout,
		}).Debug("Skipping keep-alive ping, user idle past cutoff")
		return
	}

	s.mu.Lock()
	ping := s.ping
	s.mu.Unlock()

	if err := ping(ctx); err != nil {
		s.logger.WithField("error", err).Warn("Keep-alive ping failed")
		return
	}
	s.logger.WithField("idle", idle).Debug("Keep-alive ping sent")
}
