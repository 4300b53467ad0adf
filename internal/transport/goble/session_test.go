package goble

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/srg/levctl/internal/transport"
)

type writeRecord struct {
	uuid  string
	data  []byte
	noRsp bool
}

// fakeClient implements gattClient plus the optional Disconnected() channel.
type fakeClient struct {
	mu sync.Mutex

	profile      *ble.Profile
	discoverErr  error
	reads        map[string][]byte
	readErr      error
	writes       []writeRecord
	writeErr     error
	subscribeErr error
	notifyFn     ble.NotificationHandler
	cancelCalls  int
	disconnected chan struct{}
}

func newFakeClient(profile *ble.Profile) *fakeClient {
	return &fakeClient{
		profile:      profile,
		reads:        make(map[string][]byte),
		disconnected: make(chan struct{}),
	}
}

func (f *fakeClient) DiscoverProfile(bool) (*ble.Profile, error) {
	if f.discoverErr != nil {
		return nil, f.discoverErr
	}
	return f.profile, nil
}

func (f *fakeClient) ReadCharacteristic(c *ble.Characteristic) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.reads[transport.NormalizeUUID(c.UUID.String())], nil
}

func (f *fakeClient) WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, writeRecord{
		uuid:  transport.NormalizeUUID(c.UUID.String()),
		data:  append([]byte(nil), value...),
		noRsp: noRsp,
	})
	return nil
}

func (f *fakeClient) Subscribe(_ *ble.Characteristic, _ bool, h ble.NotificationHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.notifyFn = h
	return nil
}

func (f *fakeClient) Unsubscribe(*ble.Characteristic, bool) error {
	return nil
}

func (f *fakeClient) CancelConnection() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelCalls++
	return nil
}

func (f *fakeClient) Disconnected() <-chan struct{} {
	return f.disconnected
}

func (f *fakeClient) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func (f *fakeClient) lastWrite() writeRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes[len(f.writes)-1]
}

func (f *fakeClient) notify(frame []byte) {
	f.mu.Lock()
	fn := f.notifyFn
	f.mu.Unlock()
	if fn != nil {
		fn(frame)
	}
}

func newChar(uuid string, prop ble.Property) *ble.Characteristic {
	return &ble.Characteristic{UUID: ble.MustParse(uuid), Property: prop}
}

// fullProfile includes every characteristic of the GATT contract.
func fullProfile() *ble.Profile {
	return &ble.Profile{
		Services: []*ble.Service{
			{
				UUID: ble.MustParse(transport.ConfigServiceUUID),
				Characteristics: []*ble.Characteristic{
					newChar(transport.SettingsCharUUID, ble.CharRead|ble.CharWrite|ble.CharNotify),
					newChar(transport.PresetSaveUUID, ble.CharWrite),
					newChar(transport.PresetLoadUUID, ble.CharWrite),
					newChar(transport.PresetListUUID, ble.CharRead),
					newChar(transport.PresetDeleteUUID, ble.CharWrite),
				},
			},
			{
				UUID: ble.MustParse(transport.ControlServiceUUID),
				Characteristics: []*ble.Characteristic{
					newChar(transport.ControlCharUUID, ble.CharWriteNR),
				},
			},
		},
	}
}

// minimalProfile carries only the mandatory settings characteristic.
func minimalProfile() *ble.Profile {
	return &ble.Profile{
		Services: []*ble.Service{
			{
				UUID: ble.MustParse(transport.ConfigServiceUUID),
				Characteristics: []*ble.Characteristic{
					newChar(transport.SettingsCharUUID, ble.CharRead|ble.CharWrite|ble.CharNotify),
				},
			},
		},
	}
}

type SessionTestSuite struct {
	suite.Suite
	logger *logrus.Logger
}

func (s *SessionTestSuite) SetupTest() {
	s.logger = logrus.New()
	s.logger.SetOutput(io.Discard)
}

func (s *SessionTestSuite) stubDial(client gattClient, err error) {
	orig := dial
	dial = func(context.Context, string) (gattClient, error) {
		return client, err
	}
	s.T().Cleanup(func() { dial = orig })
}

func (s *SessionTestSuite) connect(client gattClient) *Session {
	s.stubDial(client, nil)
	sess := NewSession(s.logger)
	s.Require().NoError(sess.Connect(context.Background(), "aa:bb:cc:dd:ee:ff", nil))
	return sess
}

func (s *SessionTestSuite) TestConnectFullProfile() {
	client := newFakeClient(fullProfile())
	sess := s.connect(client)

	s.True(sess.IsConnected())
	s.Equal("aa:bb:cc:dd:ee:ff", sess.Address())
	s.Equal(transport.Capabilities{
		DevicePresets:   true,
		Notifications:   true,
		RealtimeControl: true,
	}, sess.Capabilities())

	select {
	case status := <-sess.StatusEvents():
		s.True(status.Connected)
		s.Equal("aa:bb:cc:dd:ee:ff", status.Address)
		s.NoError(status.Err)
	default:
		s.Fail("expected a connected status event")
	}
}

func (s *SessionTestSuite) TestConnectMinimalProfile() {
	sess := s.connect(newFakeClient(minimalProfile()))

	caps := sess.Capabilities()
	s.False(caps.DevicePresets)
	s.False(caps.RealtimeControl)
	s.True(caps.Notifications)
}

func (s *SessionTestSuite) TestConnectMissingSettingsCharacteristic() {
	client := newFakeClient(&ble.Profile{
		Services: []*ble.Service{
			{
				UUID: ble.MustParse(transport.ConfigServiceUUID),
				Characteristics: []*ble.Characteristic{
					newChar(transport.PresetSaveUUID, ble.CharWrite),
				},
			},
		},
	})
	s.stubDial(client, nil)

	sess := NewSession(s.logger)
	err := sess.Connect(context.Background(), "aa:bb:cc:dd:ee:ff", nil)

	s.True(transport.IsKind(err, transport.CharacteristicMissing))
	s.False(sess.IsConnected())
	s.Equal(1, client.cancelCalls, "failed discovery must tear the link down")
}

func (s *SessionTestSuite) TestConnectWhileConnected() {
	sess := s.connect(newFakeClient(fullProfile()))

	err := sess.Connect(context.Background(), "11:22:33:44:55:66", nil)
	s.ErrorIs(err, transport.ErrAlreadyConnected)
	s.Equal("aa:bb:cc:dd:ee:ff", sess.Address(), "original link stays up")
}

func (s *SessionTestSuite) TestConnectEmptyAddress() {
	sess := NewSession(s.logger)
	err := sess.Connect(context.Background(), "  ", nil)
	s.True(transport.IsKind(err, transport.DeviceNotSelected))
}

func (s *SessionTestSuite) TestConnectDialFailure() {
	s.stubDial(nil, errors.New("hci: no adapter"))

	sess := NewSession(s.logger)
	err := sess.Connect(context.Background(), "aa:bb:cc:dd:ee:ff", nil)

	s.True(transport.IsKind(err, transport.TransportUnavailable))
	s.False(sess.IsConnected())
}

func (s *SessionTestSuite) TestConnectCancelledContext() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.stubDial(nil, context.Canceled)

	sess := NewSession(s.logger)
	err := sess.Connect(ctx, "aa:bb:cc:dd:ee:ff", nil)

	s.True(transport.IsKind(err, transport.DeviceNotSelected))
}

func (s *SessionTestSuite) TestSubscriptionFailureDegradesToPolling() {
	client := newFakeClient(fullProfile())
	client.subscribeErr = errors.New("cccd write rejected")
	sess := s.connect(client)

	caps := sess.Capabilities()
	s.False(caps.Notifications)
	s.True(caps.DevicePresets, "other capabilities are unaffected")
}

func (s *SessionTestSuite) TestSendDataWritesSettingsWithResponse() {
	client := newFakeClient(fullProfile())
	sess := s.connect(client)

	frame := []byte{1, 2, 3}
	s.Require().NoError(sess.SendData(context.Background(), frame))

	w := client.lastWrite()
	s.Equal(transport.NormalizeUUID(transport.SettingsCharUUID), w.uuid)
	s.Equal(frame, w.data)
	s.False(w.noRsp)
}

func (s *SessionTestSuite) TestControlChannelWritesWithoutResponse() {
	client := newFakeClient(fullProfile())
	sess := s.connect(client)

	s.Require().NoError(sess.SendToChannel(context.Background(), transport.ChannelControl, []byte("7,64")))

	w := client.lastWrite()
	s.Equal(transport.NormalizeUUID(transport.ControlCharUUID), w.uuid)
	s.True(w.noRsp)
}

func (s *SessionTestSuite) TestSendToMissingChannel() {
	client := newFakeClient(minimalProfile())
	sess := s.connect(client)

	err := sess.SendToChannel(context.Background(), transport.ChannelPresetSave, []byte{0})

	s.True(transport.IsKind(err, transport.FeatureUnsupported))
	s.Zero(client.writeCount(), "unsupported channel must not reach the device")
}

func (s *SessionTestSuite) TestReadData() {
	client := newFakeClient(fullProfile())
	client.reads[transport.NormalizeUUID(transport.SettingsCharUUID)] = []byte{9, 8, 7}
	sess := s.connect(client)

	data, err := sess.ReadData(context.Background())
	s.Require().NoError(err)
	s.Equal([]byte{9, 8, 7}, data)
}

func (s *SessionTestSuite) TestReadFailure() {
	client := newFakeClient(fullProfile())
	client.readErr = errors.New("att timeout")
	sess := s.connect(client)

	_, err := sess.ReadFromChannel(context.Background(), transport.ChannelPresetList)
	s.True(transport.IsKind(err, transport.ReadFailed))
}

func (s *SessionTestSuite) TestWriteFailure() {
	client := newFakeClient(fullProfile())
	client.writeErr = errors.New("att timeout")
	sess := s.connect(client)

	err := sess.SendData(context.Background(), []byte{1})
	s.True(transport.IsKind(err, transport.WriteFailed))
}

func (s *SessionTestSuite) TestOperationsWhileDisconnected() {
	sess := NewSession(s.logger)

	s.ErrorIs(sess.SendData(context.Background(), []byte{1}), transport.ErrNotConnected)
	_, err := sess.ReadData(context.Background())
	s.ErrorIs(err, transport.ErrNotConnected)
	s.Empty(sess.Address())
	s.Equal(transport.Capabilities{}, sess.Capabilities())
}

func (s *SessionTestSuite) TestNotificationDispatch() {
	client := newFakeClient(fullProfile())
	sess := s.connect(client)

	var mu sync.Mutex
	var got []byte
	sess.SubscribeData(func(frame []byte) {
		mu.Lock()
		got = append([]byte(nil), frame...)
		mu.Unlock()
	})

	client.notify([]byte{0xAB, 0xCD})

	mu.Lock()
	defer mu.Unlock()
	s.Equal([]byte{0xAB, 0xCD}, got)
}

func (s *SessionTestSuite) TestDisconnect() {
	client := newFakeClient(fullProfile())
	sess := s.connect(client)
	drainStatus(sess.StatusEvents())

	s.Require().NoError(sess.Disconnect())
	s.False(sess.IsConnected())
	s.Equal(1, client.cancelCalls)

	select {
	case status := <-sess.StatusEvents():
		s.False(status.Connected)
		s.NoError(status.Err)
	default:
		s.Fail("expected a disconnected status event")
	}

	s.NoError(sess.Disconnect(), "second disconnect is a no-op")
	s.Equal(1, client.cancelCalls)
}

func (s *SessionTestSuite) TestSpontaneousDisconnect() {
	client := newFakeClient(fullProfile())
	sess := s.connect(client)
	drainStatus(sess.StatusEvents())

	close(client.disconnected)

	s.Eventually(func() bool {
		return !sess.IsConnected()
	}, time.Second, 5*time.Millisecond)

	select {
	case status := <-sess.StatusEvents():
		s.False(status.Connected)
		s.ErrorIs(status.Err, transport.ErrNotConnected)
	case <-time.After(time.Second):
		s.Fail("expected a disconnect status event")
	}
}

func drainStatus(ch <-chan transport.Status) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

func TestSessionTestSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}

func TestMapChannels(t *testing.T) {
	chars := mapChannels(fullProfile())
	require.Len(t, chars, 6)
	assert.Contains(t, chars, transport.ChannelSettings)
	assert.Contains(t, chars, transport.ChannelControl)

	chars = mapChannels(minimalProfile())
	require.Len(t, chars, 1)
	assert.Contains(t, chars, transport.ChannelSettings)
}

func TestDeriveCapabilities(t *testing.T) {
	full := deriveCapabilities(mapChannels(fullProfile()))
	assert.True(t, full.DevicePresets)
	assert.True(t, full.RealtimeControl)
	assert.False(t, full.Notifications, "notifications are decided by the subscription outcome")

	// Dropping any one preset characteristic disables the whole preset set.
	profile := fullProfile()
	profile.Services[0].Characteristics = profile.Services[0].Characteristics[:4]
	partial := deriveCapabilities(mapChannels(profile))
	assert.False(t, partial.DevicePresets)
	assert.True(t, partial.RealtimeControl)
}
