// Package goble implements transport.Session on top of the go-ble stack.
package goble

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/srg/levctl/internal/groutine"
	"github.com/srg/levctl/internal/ringchan"
	"github.com/srg/levctl/internal/transport"
)

const (
	// DefaultConnectTimeout bounds dialing plus profile discovery when the
	// caller does not set one.
	DefaultConnectTimeout = 10 * time.Second

	// DefaultReadTimeout bounds individual characteristic reads so an
	// unresponsive device cannot block a caller indefinitely.
	DefaultReadTimeout = 5 * time.Second

	// statusBuffer is the capacity of the status event ring. Old events are
	// dropped in favor of new ones, so only the size of retained history is
	// at stake.
	statusBuffer = 16
)

// gattClient is the slice of ble.Client the session actually uses. Keeping
// it narrow lets tests substitute a fake without implementing the full
// client surface.
type gattClient interface {
	DiscoverProfile(force bool) (*ble.Profile, error)
	ReadCharacteristic(c *ble.Characteristic) ([]byte, error)
	WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error
	Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error
	Unsubscribe(c *ble.Characteristic, ind bool) error
	CancelConnection() error
}

// dial establishes the raw BLE link. Package var so tests can substitute a
// fake client without any radio hardware.
var dial = func(ctx context.Context, address string) (gattClient, error) {
	dev, err := DeviceFactory()
	if err != nil {
		return nil, &transport.SessionError{Kind: transport.TransportUnavailable, Msg: "failed to create BLE device", Err: err}
	}
	ble.SetDefaultDevice(dev)

	client, err := ble.Dial(ctx, ble.NewAddr(address))
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Session is the go-ble implementation of transport.Session.
type Session struct {
	logger *logrus.Logger

	connMutex   sync.RWMutex
	client      gattClient
	address     string
	caps        transport.Capabilities
	chars       map[transport.Channel]*ble.Characteristic
	readTimeout time.Duration
	ctx         context.Context
	cancel      context.CancelCauseFunc

	// writeMutex serializes characteristic writes; the underlying ATT
	// bearer handles one request at a time.
	writeMutex sync.Mutex

	handlerMutex sync.RWMutex
	handler      func(frame []byte)

	status *ringchan.Ring[transport.Status]
}

// NewSession creates a disconnected session.
func NewSession(logger *logrus.Logger) *Session {
	return &Session{
		logger: logger,
		chars:  make(map[transport.Channel]*ble.Characteristic),
		status: ringchan.New[transport.Status](statusBuffer),
	}
}

// Connect dials the device, discovers the configuration service and derives
// capabilities. The mandatory settings characteristic must be present;
// everything else degrades gracefully.
func (s *Session) Connect(ctx context.Context, address string, opts *transport.ConnectOptions) error {
	s.connMutex.Lock()
	defer s.connMutex.Unlock()

	if strings.TrimSpace(address) == "" {
		s.logger.Error("Connection attempt with empty address")
		return &transport.SessionError{Kind: transport.DeviceNotSelected, Msg: "device address is empty"}
	}
	if s.client != nil {
		s.logger.WithField("address", address).Warn("Connection attempt while already connected")
		return transport.ErrAlreadyConnected
	}

	if opts == nil {
		opts = &transport.ConnectOptions{}
	}
	connectTimeout := opts.ConnectTimeout
	if connectTimeout == 0 {
		connectTimeout = DefaultConnectTimeout
	}
	s.readTimeout = opts.ReadTimeout

	s.logger.WithFields(logrus.Fields{
		"address": address,
		"timeout": connectTimeout,
	}).Info("Connecting to controller...")

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := dial(dialCtx, address)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"address": address,
			"error":   err,
		}).Error("Failed to dial device")
		if ctx.Err() != nil {
			return &transport.SessionError{Kind: transport.DeviceNotSelected, Msg: "device selection cancelled", Err: ctx.Err()}
		}
		if serr, ok := err.(*transport.SessionError); ok {
			return serr
		}
		return &transport.SessionError{Kind: transport.TransportUnavailable, Msg: "dial failed", Err: err}
	}

	s.logger.WithField("address", address).Debug("Discovering GATT profile...")
	profile, err := client.DiscoverProfile(true)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"address": address,
			"error":   err,
		}).Error("Failed to discover profile")
		if cancelErr := client.CancelConnection(); cancelErr != nil {
			s.logger.WithField("cancel_error", cancelErr).Warn("Failed to cancel connection after discovery failure")
		}
		return &transport.SessionError{Kind: transport.TransportUnavailable, Msg: "profile discovery failed", Err: err}
	}

	chars := mapChannels(profile)
	settings, ok := chars[transport.ChannelSettings]
	if !ok {
		s.logger.WithField("address", address).Error("Settings characteristic not found")
		if cancelErr := client.CancelConnection(); cancelErr != nil {
			s.logger.WithField("cancel_error", cancelErr).Warn("Failed to cancel connection after discovery failure")
		}
		return &transport.SessionError{Kind: transport.CharacteristicMissing, Msg: "settings characteristic " + transport.SettingsCharUUID}
	}

	caps := deriveCapabilities(chars)

	// Notify subscription is best-effort. Without it the session still
	// works; reads just become the only way to observe device state.
	if settings.Property&ble.CharNotify != 0 {
		err := client.Subscribe(settings, false, func(data []byte) {
			s.dispatch(data)
		})
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"address": address,
				"error":   err,
			}).Warn("Settings notify subscription failed, degrading to polling-only")
		} else {
			caps.Notifications = true
		}
	} else {
		s.logger.WithField("address", address).Debug("Settings characteristic does not advertise notify")
	}

	s.client = client
	s.address = address
	s.caps = caps
	s.chars = chars
	s.ctx, s.cancel = context.WithCancelCause(ctx)

	// Spontaneous disconnects surface through the client's Disconnected()
	// channel where the platform supports it.
	if dc, ok := client.(interface{ Disconnected() <-chan struct{} }); ok {
		monitorCtx := s.ctx
		groutine.Go(context.Background(), "session-disconnect-monitor", func(context.Context) {
			select {
			case <-dc.Disconnected():
				s.logger.WithField("address", address).Warn("Device reported spontaneous disconnection")
				s.handleSpontaneousDisconnect()
			case <-monitorCtx.Done():
			}
		})
	} else {
		s.logger.Debug("Client does not expose a Disconnected() channel")
	}

	s.logger.WithFields(logrus.Fields{
		"address":          address,
		"device_presets":   caps.DevicePresets,
		"notifications":    caps.Notifications,
		"realtime_control": caps.RealtimeControl,
	}).Info("Controller connected")

	s.status.Send(transport.Status{Connected: true, Address: address})
	return nil
}

// Disconnect tears down the link. Calling it while disconnected is a no-op.
func (s *Session) Disconnect() error {
	client, address, settings, cancel := s.teardown()
	if client == nil {
		s.logger.Debug("Disconnect called but already disconnected")
		return nil
	}

	cancel(nil)

	// Unsubscribe is best-effort; the link is going away regardless.
	if settings != nil && settings.Property&ble.CharNotify != 0 {
		if err := client.Unsubscribe(settings, false); err != nil {
			s.logger.WithField("error", err).Warn("Failed to unsubscribe from settings notifications")
		}
	}

	err := client.CancelConnection()
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"address": address,
			"error":   err,
		}).Warn("Controller disconnected with errors")
	} else {
		s.logger.WithField("address", address).Info("Controller disconnected")
	}

	s.status.Send(transport.Status{Connected: false, Address: address})
	return err
}

func (s *Session) handleSpontaneousDisconnect() {
	client, address, _, cancel := s.teardown()
	if client == nil {
		return
	}
	cancel(transport.ErrNotConnected)
	s.status.Send(transport.Status{Connected: false, Address: address, Err: transport.ErrNotConnected})
}

// teardown clears connection state under the lock and hands back what the
// caller needs for the network-facing cleanup. Returns a nil client when the
// session was already disconnected.
func (s *Session) teardown() (gattClient, string, *ble.Characteristic, context.CancelCauseFunc) {
	s.connMutex.Lock()
	defer s.connMutex.Unlock()

	if s.client == nil {
		return nil, "", nil, nil
	}

	client := s.client
	address := s.address
	settings := s.chars[transport.ChannelSettings]
	cancel := s.cancel

	s.client = nil
	s.address = ""
	s.caps = transport.Capabilities{}
	s.chars = make(map[transport.Channel]*ble.Characteristic)
	s.ctx = nil
	s.cancel = nil

	return client, address, settings, cancel
}

func (s *Session) IsConnected() bool {
	s.connMutex.RLock()
	defer s.connMutex.RUnlock()
	return s.client != nil
}

func (s *Session) Address() string {
	s.connMutex.RLock()
	defer s.connMutex.RUnlock()
	return s.address
}

func (s *Session) Capabilities() transport.Capabilities {
	s.connMutex.RLock()
	defer s.connMutex.RUnlock()
	return s.caps
}

// SendData writes a frame to the settings characteristic.
func (s *Session) SendData(ctx context.Context, frame []byte) error {
	return s.SendToChannel(ctx, transport.ChannelSettings, frame)
}

// ReadData reads the current settings frame.
func (s *Session) ReadData(ctx context.Context) ([]byte, error) {
	return s.ReadFromChannel(ctx, transport.ChannelSettings)
}

// SendToChannel writes a frame to the given channel. The control channel
// uses write-without-response; everything else expects an ATT response.
func (s *Session) SendToChannel(ctx context.Context, ch transport.Channel, frame []byte) error {
	client, char, err := s.snapshotChannel(ch)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return &transport.SessionError{Kind: transport.WriteFailed, Msg: string(ch), Err: err}
	}

	noRsp := ch == transport.ChannelControl

	s.writeMutex.Lock()
	err = client.WriteCharacteristic(char, frame, noRsp)
	s.writeMutex.Unlock()

	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"channel": ch,
			"bytes":   len(frame),
			"error":   err,
		}).Error("Characteristic write failed")
		return &transport.SessionError{Kind: transport.WriteFailed, Msg: string(ch), Err: err}
	}

	s.logger.WithFields(logrus.Fields{
		"channel": ch,
		"bytes":   len(frame),
	}).Debug("Characteristic write completed")
	return nil
}

// ReadFromChannel reads a frame from the given channel. The read runs on its
// own goroutine so a stuck device surfaces as a timeout instead of a hang.
func (s *Session) ReadFromChannel(ctx context.Context, ch transport.Channel) ([]byte, error) {
	client, char, err := s.snapshotChannel(ch)
	if err != nil {
		return nil, err
	}

	s.connMutex.RLock()
	timeout := s.readTimeout
	s.connMutex.RUnlock()
	if timeout == 0 {
		timeout = DefaultReadTimeout
	}

	type readResult struct {
		data []byte
		err  error
	}
	resultCh := make(chan readResult, 1)
	go func() {
		data, err := client.ReadCharacteristic(char)
		resultCh <- readResult{data: data, err: err}
	}()

	var data []byte
	select {
	case result := <-resultCh:
		data, err = result.data, result.err
	case <-time.After(timeout):
		err = context.DeadlineExceeded
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"channel": ch,
			"error":   err,
		}).Error("Characteristic read failed")
		return nil, &transport.SessionError{Kind: transport.ReadFailed, Msg: string(ch), Err: err}
	}

	s.logger.WithFields(logrus.Fields{
		"channel": ch,
		"bytes":   len(data),
	}).Debug("Characteristic read completed")
	return data, nil
}

// SubscribeData registers the notification handler. Passing nil clears it.
func (s *Session) SubscribeData(handler func(frame []byte)) {
	s.handlerMutex.Lock()
	s.handler = handler
	s.handlerMutex.Unlock()
}

// StatusEvents returns the connection state stream.
func (s *Session) StatusEvents() <-chan transport.Status {
	return s.status.C()
}

func (s *Session) dispatch(frame []byte) {
	s.handlerMutex.RLock()
	handler := s.handler
	s.handlerMutex.RUnlock()

	if handler != nil {
		handler(frame)
	}
}

// snapshotChannel resolves a channel to its live client and characteristic
// under the read lock, so the network call itself runs lock-free.
func (s *Session) snapshotChannel(ch transport.Channel) (gattClient, *ble.Characteristic, error) {
	s.connMutex.RLock()
	defer s.connMutex.RUnlock()

	if s.client == nil {
		return nil, nil, transport.ErrNotConnected
	}
	char, ok := s.chars[ch]
	if !ok {
		return nil, nil, &transport.SessionError{Kind: transport.FeatureUnsupported, Msg: string(ch)}
	}
	return s.client, char, nil
}

// mapChannels walks the discovered profile and binds each known
// characteristic UUID to its logical channel. Unknown services and
// characteristics are ignored.
func mapChannels(profile *ble.Profile) map[transport.Channel]*ble.Characteristic {
	byUUID := map[string]transport.Channel{
		transport.NormalizeUUID(transport.SettingsCharUUID): transport.ChannelSettings,
		transport.NormalizeUUID(transport.PresetSaveUUID):   transport.ChannelPresetSave,
		transport.NormalizeUUID(transport.PresetLoadUUID):   transport.ChannelPresetLoad,
		transport.NormalizeUUID(transport.PresetListUUID):   transport.ChannelPresetList,
		transport.NormalizeUUID(transport.PresetDeleteUUID): transport.ChannelPresetDelete,
		transport.NormalizeUUID(transport.ControlCharUUID):  transport.ChannelControl,
	}

	chars := make(map[transport.Channel]*ble.Characteristic)
	for _, svc := range profile.Services {
		for _, char := range svc.Characteristics {
			if ch, ok := byUUID[transport.NormalizeUUID(char.UUID.String())]; ok {
				chars[ch] = char
			}
		}
	}
	return chars
}

// deriveCapabilities computes the capability set from the channel map.
// Notifications is decided later by the subscription outcome.
func deriveCapabilities(chars map[transport.Channel]*ble.Characteristic) transport.Capabilities {
	_, save := chars[transport.ChannelPresetSave]
	_, load := chars[transport.ChannelPresetLoad]
	_, list := chars[transport.ChannelPresetList]
	_, del := chars[transport.ChannelPresetDelete]
	_, control := chars[transport.ChannelControl]

	return transport.Capabilities{
		DevicePresets:   save && load && list && del,
		RealtimeControl: control,
	}
}
