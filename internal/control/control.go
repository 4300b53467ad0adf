// Package control implements the real-time control change channel: validated,
// rate-limited, fire-and-forget sends that never disturb a performance.
package control

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/srg/levctl/internal/transport"
	"github.com/srg/levctl/internal/wire"
)

// MinSendInterval is the minimum spacing between control sends. Events
// arriving inside the window are dropped, not queued: a stale controller
// value is worse than a missing one, the next movement supersedes it anyway.
const MinSendInterval = 8 * time.Millisecond

// Sender is the slice of the transport session the channel needs.
type Sender interface {
	Capabilities() transport.Capabilities
	SendToChannel(ctx context.Context, ch transport.Channel, frame []byte) error
}

// Channel sends control change values to the device's real-time
// characteristic. Safe for concurrent use.
type Channel struct {
	logger *logrus.Logger
	sender Sender

	mu       sync.Mutex
	lastSend time.Time

	// Injectable clock for tests.
	now func() time.Time
}

// NewChannel creates a control channel over the given sender.
func NewChannel(logger *logrus.Logger, sender Sender) *Channel {
	return &Channel{
		logger: logger,
		sender: sender,
		now:    time.Now,
	}
}

// Send transmits one control change. Invalid arguments and a missing
// realtime capability are reported to the caller; transport failures are
// logged and swallowed, and rate-limited events are dropped silently. The
// rate limit window only advances on a successful write, so a failed send
// does not suppress the next one.
func (c *Channel) Send(ctx context.Context, controllerID, value int) error {
	frame, err := wire.EncodeControlChange(controllerID, value)
	if err != nil {
		return err
	}

	if !c.sender.Capabilities().RealtimeControl {
		return &transport.SessionError{Kind: transport.FeatureUnsupported, Msg: "realtime control"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if since := now.Sub(c.lastSend); !c.lastSend.IsZero() && since < MinSendInterval {
		c.logger.WithFields(logrus.Fields{
			"controller_id": controllerID,
			"value":         value,
			"since_last":    since,
		}).Debug("Control change dropped by rate limit")
		return nil
	}

	if err := c.sender.SendToChannel(ctx, transport.ChannelControl, frame); err != nil {
		c.logger.WithFields(logrus.Fields{
			"controller_id": controllerID,
			"value":         value,
			"error":         err,
		}).Warn("Control change send failed")
		return nil
	}

	c.lastSend = now
	return nil
}
