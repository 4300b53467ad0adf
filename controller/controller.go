// Package controller synchronizes the client's view of a lever controller
// with the device itself: canonical settings, device-side presets and the
// keep-alive lifecycle around one transport session.
package controller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/srg/levctl/internal/activity"
	"github.com/srg/levctl/internal/control"
	"github.com/srg/levctl/internal/keepalive"
	"github.com/srg/levctl/internal/transport"
	"github.com/srg/levctl/internal/wire"
)

// EmptyPresetName is how unoccupied preset slots are presented. The codec
// reports empty names verbatim; the placeholder is a presentation concern
// and belongs here.
const EmptyPresetName = "[Empty]"

// ErrOperationInProgress is returned when a device operation is rejected
// because another one is in flight. Operations are single-flight: the second
// caller fails fast instead of queueing behind a slow radio.
var ErrOperationInProgress = errors.New("device operation already in progress")

// Options configures the controller.
type Options struct {
	Connect   transport.ConnectOptions `yaml:"connect"`
	KeepAlive keepalive.Options        `yaml:"keep_alive"`
}

// Controller owns the canonical settings model and the preset snapshot for
// one device. All device operations share a single-flight gate; cached reads
// never touch the transport.
type Controller struct {
	logger  *logrus.Logger
	session transport.Session
	opts    Options

	tracker   *activity.Tracker
	keepalive *keepalive.Scheduler
	control   *control.Channel

	// busy is the single-flight gate for device operations.
	busy atomic.Bool

	mu          sync.RWMutex
	settings    wire.Settings
	hasSettings bool
	presets     []wire.PresetMetadata
	onChange    func(wire.Settings)
}

// New creates a controller over the given session. The session is expected
// to be disconnected; Connect establishes the link.
func New(logger *logrus.Logger, session transport.Session, opts Options) *Controller {
	c := &Controller{
		logger:  logger,
		session: session,
		opts:    opts,
		tracker: activity.NewTracker(logger),
	}
	c.keepalive = keepalive.NewScheduler(logger, c.tracker, opts.KeepAlive)
	c.keepalive.SetPing(c.ping)
	c.control = control.NewChannel(logger, session)
	return c
}

// Tracker exposes the activity tracker so callers can attach input sources
// before Connect.
func (c *Controller) Tracker() *activity.Tracker {
	return c.tracker
}

// Control returns the rate-limited real-time control channel. Control sends
// bypass the single-flight gate; they must never wait behind a slow settings
// operation.
func (c *Controller) Control() *control.Channel {
	return c.control
}

// SetOnSettingsChange registers a callback invoked whenever the canonical
// settings model changes, whether from a local operation or a device push.
// Pass nil to remove it. The callback runs outside the controller's lock.
func (c *Controller) SetOnSettingsChange(fn func(wire.Settings)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Connect establishes the session, subscribes to device-pushed settings,
// eagerly loads the preset snapshot when supported and starts the keep-alive
// loop. The preset refresh is best-effort; a failure degrades the cache, not
// the connection.
func (c *Controller) Connect(ctx context.Context, address string) error {
	if err := c.session.Connect(ctx, address, &c.opts.Connect); err != nil {
		return err
	}

	c.session.SubscribeData(c.onSettingsNotification)

	if c.session.Capabilities().DevicePresets {
		if _, err := c.ListDevicePresets(ctx); err != nil {
			c.logger.WithField("error", err).Warn("Initial preset list refresh failed")
		}
	}

	if err := c.tracker.Start(); err != nil {
		c.logger.WithField("error", err).Warn("Activity tracker failed to start")
	}
	if err := c.keepalive.Start(ctx); err != nil {
		c.logger.WithField("error", err).Error("Keep-alive failed to start")
	}

	return nil
}

// Disconnect stops the keep-alive loop (which stops the activity tracker)
// and tears the session down. An apply in flight surfaces a transport
// failure once the client is gone; nothing blocks on it here.
func (c *Controller) Disconnect() error {
	c.keepalive.Stop()
	c.session.SubscribeData(nil)
	return c.session.Disconnect()
}

// HasDevicePresetSupport reports whether the connected device exposes the
// full preset characteristic set.
func (c *Controller) HasDevicePresetSupport() bool {
	return c.session.Capabilities().DevicePresets
}

// Capabilities reports the connected device's capability set.
func (c *Controller) Capabilities() transport.Capabilities {
	return c.session.Capabilities()
}

// Settings returns the cached canonical settings. ok is false before the
// first successful read or apply.
func (c *Controller) Settings() (s wire.Settings, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings, c.hasSettings
}

// Presets returns the cached preset snapshot from the last refresh.
func (c *Controller) Presets() []wire.PresetMetadata {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]wire.PresetMetadata(nil), c.presets...)
}

// ApplySettings validates, encodes and writes the full settings model. The
// canonical model is only adopted once the device has acknowledged the
// write; on any failure it stays at the last known-good state.
func (c *Controller) ApplySettings(ctx context.Context, next wire.Settings) error {
	frame, err := wire.EncodeSettings(next)
	if err != nil {
		return err
	}

	return c.withGate(func() error {
		if err := c.session.SendData(ctx, frame); err != nil {
			c.logger.WithField("error", err).Error("Settings apply failed, keeping previous state")
			return err
		}

		c.adoptSettings(next)
		c.logger.Info("Settings applied")
		return nil
	})
}

// ReadSettings reads the device's current settings and adopts them as
// canonical. The device is authoritative; whatever it reports replaces the
// local model.
func (c *Controller) ReadSettings(ctx context.Context) (wire.Settings, error) {
	var settings wire.Settings
	err := c.withGate(func() error {
		var err error
		settings, err = c.readSettings(ctx)
		return err
	})
	return settings, err
}

// ListDevicePresets reads the preset directory from the device and refreshes
// the cached snapshot.
func (c *Controller) ListDevicePresets(ctx context.Context) ([]wire.PresetMetadata, error) {
	if err := c.requirePresetSupport(); err != nil {
		return nil, err
	}

	var presets []wire.PresetMetadata
	err := c.withGate(func() error {
		var err error
		presets, err = c.refreshPresets(ctx)
		return err
	})
	return presets, err
}

// SaveDevicePreset stores the device's active settings into a slot, then
// refreshes the preset snapshot so the cache reflects the new directory.
func (c *Controller) SaveDevicePreset(ctx context.Context, slot int, name string) error {
	if err := c.requirePresetSupport(); err != nil {
		return err
	}

	frame, err := wire.EncodePresetSave(slot, name)
	if err != nil {
		return err
	}

	return c.withGate(func() error {
		if err := c.session.SendToChannel(ctx, transport.ChannelPresetSave, frame); err != nil {
			return err
		}
		c.logger.WithFields(logrus.Fields{
			"slot": slot,
			"name": name,
		}).Info("Preset saved")

		if _, err := c.refreshPresets(ctx); err != nil {
			c.logger.WithField("error", err).Warn("Preset list refresh after save failed")
		}
		return nil
	})
}

// LoadDevicePreset recalls a slot on the device, then reads the settings
// back so the canonical model matches what the device now runs.
func (c *Controller) LoadDevicePreset(ctx context.Context, slot int) (wire.Settings, error) {
	if err := c.requirePresetSupport(); err != nil {
		return wire.Settings{}, err
	}

	frame, err := wire.EncodePresetLoad(slot)
	if err != nil {
		return wire.Settings{}, err
	}

	var settings wire.Settings
	err = c.withGate(func() error {
		if err := c.session.SendToChannel(ctx, transport.ChannelPresetLoad, frame); err != nil {
			return err
		}
		c.logger.WithField("slot", slot).Info("Preset loaded")

		var err error
		settings, err = c.readSettings(ctx)
		return err
	})
	return settings, err
}

// DeleteDevicePreset clears a slot and refreshes the preset snapshot.
func (c *Controller) DeleteDevicePreset(ctx context.Context, slot int) error {
	if err := c.requirePresetSupport(); err != nil {
		return err
	}

	frame, err := wire.EncodePresetDelete(slot)
	if err != nil {
		return err
	}

	return c.withGate(func() error {
		if err := c.session.SendToChannel(ctx, transport.ChannelPresetDelete, frame); err != nil {
			return err
		}
		c.logger.WithField("slot", slot).Info("Preset deleted")

		if _, err := c.refreshPresets(ctx); err != nil {
			c.logger.WithField("error", err).Warn("Preset list refresh after delete failed")
		}
		return nil
	})
}

// withGate runs fn under the single-flight gate. A second concurrent device
// operation fails fast with ErrOperationInProgress.
func (c *Controller) withGate(fn func() error) error {
	if !c.busy.CompareAndSwap(false, true) {
		return ErrOperationInProgress
	}
	defer c.busy.Store(false)
	return fn()
}

// ping is the keep-alive callback: a settings read doubling as liveness
// probe. A busy gate means a real operation is already exercising the link,
// which proves liveness on its own, so the ping is skipped rather than
// queued.
func (c *Controller) ping(ctx context.Context) error {
	if !c.busy.CompareAndSwap(false, true) {
		c.logger.Debug("Keep-alive ping skipped, device operation in flight")
		return nil
	}
	defer c.busy.Store(false)

	_, err := c.readSettings(ctx)
	return err
}

// readSettings performs the read-decode-adopt cycle. Caller must hold the
// gate.
func (c *Controller) readSettings(ctx context.Context) (wire.Settings, error) {
	frame, err := c.session.ReadData(ctx)
	if err != nil {
		return wire.Settings{}, err
	}

	settings, err := wire.DecodeSettings(frame)
	if err != nil {
		c.logger.WithField("error", err).Error("Device returned an undecodable settings frame")
		return wire.Settings{}, err
	}

	c.adoptSettings(settings)
	return settings, nil
}

// refreshPresets reads and decodes the preset directory and replaces the
// cached snapshot. Caller must hold the gate.
func (c *Controller) refreshPresets(ctx context.Context) ([]wire.PresetMetadata, error) {
	frame, err := c.session.ReadFromChannel(ctx, transport.ChannelPresetList)
	if err != nil {
		return nil, err
	}

	presets, err := wire.DecodePresetList(frame)
	if err != nil {
		c.logger.WithField("error", err).Error("Device returned an undecodable preset list")
		return nil, err
	}

	for i := range presets {
		if presets[i].Name == "" {
			presets[i].Name = EmptyPresetName
		}
	}

	c.mu.Lock()
	c.presets = presets
	c.mu.Unlock()

	return append([]wire.PresetMetadata(nil), presets...), nil
}

func (c *Controller) adoptSettings(settings wire.Settings) {
	c.mu.Lock()
	c.settings = settings
	c.hasSettings = true
	notify := c.onChange
	c.mu.Unlock()

	if notify != nil {
		notify(settings)
	}
}

// onSettingsNotification adopts settings frames the device pushes on its
// own, for example after a front-panel preset recall.
func (c *Controller) onSettingsNotification(frame []byte) {
	settings, err := wire.DecodeSettings(frame)
	if err != nil {
		c.logger.WithField("error", err).Warn("Ignoring undecodable settings notification")
		return
	}
	c.adoptSettings(settings)
	c.logger.Debug("Settings updated from device notification")
}

func (c *Controller) requirePresetSupport() error {
	if !c.session.Capabilities().DevicePresets {
		return &transport.SessionError{Kind: transport.FeatureUnsupported, Msg: "device presets"}
	}
	return nil
}
